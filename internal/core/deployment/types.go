package deployment

import (
	"fmt"

	"github.com/pemasak/pws/internal/core/validation"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// TagLatest marks the image a container is created from.
	TagLatest = "latest"

	// TagOld marks the rollback copy kept while a replacement is built.
	TagOld = "old"

	// ServicePort is the port every tenant application listens on.
	ServicePort = 80

	// DockerfileName is the build definition looked up at the source root.
	DockerfileName = "Dockerfile"
)

// =============================================================================
// Deployment Target
// =============================================================================

// Target identifies one tenant deployment.
type Target struct {
	Owner         string
	Project       string
	ContainerName string
	SourcePath    string
}

// NewTarget builds a Target, deriving the container name from owner and project.
// Owner and project must pass validation.ValidateTargetNames.
func NewTarget(owner, project, sourcePath string) (Target, error) {
	if field, msg := validation.ValidateTargetNames(owner, project); field != "" {
		return Target{}, fmt.Errorf("%w: %s", ErrInvalidTarget, msg)
	}
	if sourcePath == "" {
		return Target{}, fmt.Errorf("%w: source path is required", ErrInvalidTarget)
	}
	return Target{
		Owner:         owner,
		Project:       project,
		ContainerName: ContainerName(owner, project),
		SourcePath:    sourcePath,
	}, nil
}

// =============================================================================
// Image Reference
// =============================================================================

// ImageRef names an image by repository and tag.
type ImageRef struct {
	Name string
	Tag  string
}

// String returns the "name:tag" reference understood by the engine.
func (r ImageRef) String() string {
	if r.Tag == "" {
		return r.Name
	}
	return r.Name + ":" + r.Tag
}

// =============================================================================
// Resource Limits
// =============================================================================

// Limits are the resource ceilings applied to both the build and the running container.
type Limits struct {
	MemoryBytes int64 // Hard memory limit
	SwapBytes   int64 // Memory plus swap
	CPUQuota    int64 // Microseconds per period
	CPUPeriod   int64 // Microseconds
}

// Default resource ceilings: 256MiB memory, 320MiB with swap, half a CPU.
const (
	DefaultMemoryBytes int64 = 256 * 1024 * 1024
	DefaultSwapBytes   int64 = 320 * 1024 * 1024
	DefaultCPUQuota    int64 = 50000
	DefaultCPUPeriod   int64 = 100000
)

// DefaultLimits returns the fallback resource ceilings.
func DefaultLimits() Limits {
	return Limits{
		MemoryBytes: DefaultMemoryBytes,
		SwapBytes:   DefaultSwapBytes,
		CPUQuota:    DefaultCPUQuota,
		CPUPeriod:   DefaultCPUPeriod,
	}
}

// WithDefaults fills every zero field with its fallback value.
func (l Limits) WithDefaults() Limits {
	if l.MemoryBytes == 0 {
		l.MemoryBytes = DefaultMemoryBytes
	}
	if l.SwapBytes == 0 {
		l.SwapBytes = DefaultSwapBytes
	}
	if l.CPUQuota == 0 {
		l.CPUQuota = DefaultCPUQuota
	}
	if l.CPUPeriod == 0 {
		l.CPUPeriod = DefaultCPUPeriod
	}
	return l
}

// CPUs returns the fraction of one CPU the quota grants.
func (l Limits) CPUs() float64 {
	if l.CPUPeriod == 0 {
		return 0
	}
	return float64(l.CPUQuota) / float64(l.CPUPeriod)
}

// =============================================================================
// Deployment Descriptor
// =============================================================================

// Descriptor is returned to the caller after a successful deployment.
type Descriptor struct {
	IP          string   `json:"ip" yaml:"ip"`
	Port        int      `json:"port" yaml:"port"`
	BuildLog    string   `json:"build_log" yaml:"build_log"`
	ContainerID string   `json:"container_id" yaml:"container_id"`
	BuildID     string   `json:"build_id" yaml:"build_id"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
