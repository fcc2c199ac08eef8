package deployment

import "errors"

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	// ErrInvalidTarget is returned when a deployment target is incomplete or misnamed.
	ErrInvalidTarget = errors.New("invalid deployment target")

	// ErrConfiguration is returned when a stored environment blob is malformed.
	ErrConfiguration = errors.New("invalid environment configuration")

	// ErrNoAddress is returned when neither address family yields a usable value.
	ErrNoAddress = errors.New("no usable address")

	// ErrInvalidTransition is returned for an out-of-order pipeline step.
	ErrInvalidTransition = errors.New("invalid state transition")
)
