// Package docker drives the container engine for tenant deployments.
package docker

import (
	"context"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name          string
	Image         string
	Env           []string // KEY=value, in order
	Labels        map[string]string
	ExposedPorts  []int // tcp
	RestartPolicy RestartPolicy
	Resources     ResourceLimits
}

// RestartPolicy defines the container restart policy.
type RestartPolicy struct {
	Name              string // "no", "always", "on-failure", "unless-stopped"
	MaximumRetryCount int
}

// ResourceLimits defines resource constraints.
type ResourceLimits struct {
	MemoryBytes     int64 // Bytes
	MemorySwapBytes int64 // Memory plus swap, bytes
	CPUQuota        int64 // Microseconds per period
	CPUPeriod       int64 // Microseconds
}

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	State     string // "running", "exited", "created", etc.
	CreatedAt time.Time
	Labels    map[string]string
}

// =============================================================================
// Image Types
// =============================================================================

// ImageInfo contains information about a local image.
type ImageInfo struct {
	ID       string
	RepoTags []string
	Size     int64
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec describes a network to create.
type NetworkSpec struct {
	Name   string
	Driver string // "bridge", "overlay", etc.
	Labels map[string]string
}

// NetworkInfo identifies a network.
type NetworkInfo struct {
	ID     string
	Name   string
	Driver string
}

// Endpoint is one container's attachment to a network.
type Endpoint struct {
	Name        string
	IPv4Address string // may carry a /prefix suffix
	IPv6Address string // may carry a /prefix suffix
}

// NetworkDetails is a verbose network inspection result.
type NetworkDetails struct {
	NetworkInfo
	Endpoints map[string]Endpoint // keyed by container ID
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All  bool   // Include stopped containers
	Name string // Exact container name
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the container engine handle. Every component receives one
// explicitly so tests can substitute a fake engine.
type Client interface {
	// Image operations
	ListImages(ctx context.Context, reference string) ([]ImageInfo, error)
	TagImage(ctx context.Context, source, target string) error
	RemoveImage(ctx context.Context, reference string) error

	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)

	// Network operations
	ListNetworks(ctx context.Context, name string) ([]NetworkInfo, error)
	CreateNetwork(ctx context.Context, spec NetworkSpec) (networkID string, err error)
	InspectNetwork(ctx context.Context, networkID string) (*NetworkDetails, error)
	ConnectNetwork(ctx context.Context, networkID, containerID string) error
	DisconnectNetwork(ctx context.Context, networkID, containerID string, force bool) error

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}
