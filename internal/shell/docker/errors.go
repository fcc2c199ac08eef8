package docker

import (
	"errors"
	"fmt"

	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound      = errors.New("container not found")
	ErrContainerAlreadyExists = errors.New("container already exists")

	// Network errors
	ErrNetworkNotFound      = errors.New("network not found")
	ErrNetworkAlreadyExists = errors.New("network already exists")

	// Image errors
	ErrImageNotFound = errors.New("image not found")
	ErrImageInUse    = errors.New("image is in use")

	// Build errors
	ErrBuildFailed   = errors.New("image build failed")
	ErrInvalidSource = errors.New("invalid source path")

	// Connection errors
	ErrConnectionFailed = errors.New("docker connection failed")

	// ErrEngineConnection is returned when the engine cannot be reached at all.
	ErrEngineConnection = ErrConnectionFailed

	// ErrResourceLookup is returned when an image, network or container that
	// must exist after an operation is missing.
	ErrResourceLookup = errors.New("resource lookup failed")

	// ErrNoAddress is returned when a started container has no usable address.
	ErrNoAddress = deployment.ErrNoAddress
)

// DockerError wraps errors with additional context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, network, image)
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// =============================================================================
// Deployment Errors
// =============================================================================

// BuildError is returned when the build step exits unsuccessfully.
// Log carries everything the build wrote to its diagnostic stream.
type BuildError struct {
	Strategy deployment.StrategyKind
	Log      string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build (%s dockerfile): %v", e.Strategy, e.Err)
	}
	return fmt.Sprintf("build (%s dockerfile) failed", e.Strategy)
}

// Unwrap exposes both ErrBuildFailed and the underlying cause.
func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailed}
	}
	return []error{ErrBuildFailed, e.Err}
}

// AddressError is returned when no usable address is found for a container.
type AddressError struct {
	Network     string
	ContainerID string
	Err         error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("resolve address of container %s on network %s: %v", e.ContainerID, e.Network, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// StepError identifies the pipeline step a deployment failed in.
type StepError struct {
	Step deployment.State // last state reached before the failure
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("deploy failed after %s (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal outcome of a best-effort cleanup.
type Warning struct {
	Op     string
	Target string
	Err    error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %v", w.Op, w.Target, w.Err)
}
