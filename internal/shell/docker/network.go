package docker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Network Manager
// =============================================================================

// Network defaults.
const (
	DefaultSharedNetwork = "pemasak"
	DefaultNetworkDriver = "bridge"
	DefaultBridgeNetwork = "bridge"
)

// NetworkConfig configures a NetworkManager.
type NetworkConfig struct {
	Name          string // shared network joined by every deployment
	Driver        string
	DefaultBridge string // engine default network containers are detached from
}

// NetworkManager owns the shared network. It is created lazily and never deleted.
type NetworkManager struct {
	client Client
	config NetworkConfig
	logger *slog.Logger
}

// NewNetworkManager creates a new NetworkManager.
func NewNetworkManager(client Client, config NetworkConfig, logger *slog.Logger) *NetworkManager {
	if config.Name == "" {
		config.Name = DefaultSharedNetwork
	}
	if config.Driver == "" {
		config.Driver = DefaultNetworkDriver
	}
	if config.DefaultBridge == "" {
		config.DefaultBridge = DefaultBridgeNetwork
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkManager{client: client, config: config, logger: logger}
}

// Name returns the shared network name.
func (m *NetworkManager) Name() string {
	return m.config.Name
}

// EnsureSharedNetwork returns the shared network, creating it on first use.
// A concurrent creator winning the race is tolerated by re-listing.
func (m *NetworkManager) EnsureSharedNetwork(ctx context.Context) (NetworkInfo, error) {
	networks, err := m.client.ListNetworks(ctx, m.config.Name)
	if err != nil {
		return NetworkInfo{}, err
	}
	if len(networks) > 0 {
		return networks[0], nil
	}

	_, err = m.client.CreateNetwork(ctx, NetworkSpec{
		Name:   m.config.Name,
		Driver: m.config.Driver,
		Labels: map[string]string{deployment.LabelManaged: "true"},
	})
	switch {
	case err == nil:
		m.logger.Info("created shared network", "network", m.config.Name, "driver", m.config.Driver)
	case errors.Is(err, ErrNetworkAlreadyExists):
		m.logger.Debug("shared network created concurrently", "network", m.config.Name)
	default:
		return NetworkInfo{}, err
	}

	// Creation does not return the full descriptor.
	networks, err = m.client.ListNetworks(ctx, m.config.Name)
	if err != nil {
		return NetworkInfo{}, err
	}
	if len(networks) == 0 {
		return NetworkInfo{}, NewDockerError("EnsureSharedNetwork", "network", m.config.Name, "network missing after create", ErrResourceLookup)
	}
	return networks[0], nil
}

// Attach connects a container to the shared network.
func (m *NetworkManager) Attach(ctx context.Context, network NetworkInfo, containerID string) error {
	if err := m.client.ConnectNetwork(ctx, network.ID, containerID); err != nil {
		return err
	}
	m.logger.Debug("attached container", "network", network.Name, "container", containerID)
	return nil
}

// DetachFromDefault force-disconnects a container from the engine's default
// bridge. Failure is returned as a warning.
func (m *NetworkManager) DetachFromDefault(ctx context.Context, containerID string) []Warning {
	if err := m.client.DisconnectNetwork(ctx, m.config.DefaultBridge, containerID, true); err != nil {
		m.logger.Warn("failed to detach from default network",
			"network", m.config.DefaultBridge,
			"container", containerID,
			"error", err,
		)
		return []Warning{{Op: "detach network", Target: m.config.DefaultBridge, Err: err}}
	}
	return nil
}
