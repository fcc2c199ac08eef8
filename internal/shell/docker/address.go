package docker

import (
	"context"
	"log/slog"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Address Resolver
// =============================================================================

// AddressResolver finds the address a container is reachable at on a network.
type AddressResolver struct {
	client Client
	logger *slog.Logger
}

// NewAddressResolver creates a new AddressResolver.
func NewAddressResolver(client Client, logger *slog.Logger) *AddressResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressResolver{client: client, logger: logger}
}

// ResolveAddress inspects network and returns the container's address, IPv6
// preferred, without a prefix length. A missing endpoint or empty addresses
// yield an *AddressError.
func (r *AddressResolver) ResolveAddress(ctx context.Context, network NetworkInfo, containerID string) (string, error) {
	details, err := r.client.InspectNetwork(ctx, network.ID)
	if err != nil {
		return "", err
	}

	endpoint, ok := details.Endpoints[containerID]
	if !ok {
		return "", &AddressError{Network: network.Name, ContainerID: containerID, Err: ErrNoAddress}
	}

	ip, err := deployment.SelectAddress(endpoint.IPv4Address, endpoint.IPv6Address)
	if err != nil {
		return "", &AddressError{Network: network.Name, ContainerID: containerID, Err: err}
	}

	r.logger.Debug("resolved address", "container", containerID, "network", network.Name, "ip", ip)
	return ip, nil
}
