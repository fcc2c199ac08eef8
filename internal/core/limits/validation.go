// Package limits provides resource ceiling validation functions.
// All functions are pure (no I/O).
package limits

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/pemasak/pws/internal/core/deployment"
)

// =============================================================================
// Types
// =============================================================================

// ValidationResult represents the outcome of a limit validation check.
type ValidationResult struct {
	// Allowed indicates whether the limits can be applied by the engine
	Allowed bool

	// Reason explains why the limits were rejected (empty if Allowed is true)
	Reason string
}

// Engine bounds for CFS scheduling, in microseconds.
const (
	MinCPUPeriod = 1000
	MaxCPUPeriod = 1000000
	MinCPUQuota  = 1000

	// MinMemoryBytes is the smallest memory limit the engine accepts.
	MinMemoryBytes = 6 * 1024 * 1024
)

// =============================================================================
// Validation Functions
// =============================================================================

// Validate checks that limits can be applied to both a build and a container.
func Validate(l deployment.Limits) ValidationResult {
	if l.MemoryBytes < MinMemoryBytes {
		return ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("memory limit %s is below the minimum %s", units.BytesSize(float64(l.MemoryBytes)), units.BytesSize(MinMemoryBytes)),
		}
	}

	// Memory plus swap must cover memory; -1 means unlimited swap.
	if l.SwapBytes != -1 && l.SwapBytes < l.MemoryBytes {
		return ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("memory+swap limit %s is below memory limit %s", units.BytesSize(float64(l.SwapBytes)), units.BytesSize(float64(l.MemoryBytes))),
		}
	}

	if l.CPUPeriod < MinCPUPeriod || l.CPUPeriod > MaxCPUPeriod {
		return ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cpu period %d must be between %d and %d", l.CPUPeriod, MinCPUPeriod, MaxCPUPeriod),
		}
	}

	if l.CPUQuota < MinCPUQuota {
		return ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cpu quota %d is below the minimum %d", l.CPUQuota, MinCPUQuota),
		}
	}

	return ValidationResult{Allowed: true}
}

// ParseSize parses a human-readable memory size ("256MiB", "320m", "1g").
// An empty string yields zero so callers can fall back to defaults. "-1" means unlimited.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if s == "-1" {
		return -1, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}

// =============================================================================
// Convenience Methods
// =============================================================================

// Ok returns true if the validation passed.
func (r ValidationResult) Ok() bool {
	return r.Allowed
}

// Error returns the reason as an error if validation failed, nil otherwise.
func (r ValidationResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("resource limits rejected: %s", r.Reason)
}
