package deployment

import "fmt"

// =============================================================================
// Pipeline State
// =============================================================================

// State is a step of the deployment state machine.
type State string

const (
	StateIdle              State = "idle"
	StateImagePrepared     State = "image_prepared"
	StateBuilt             State = "built"
	StateContainerReplaced State = "container_replaced"
	StateNetworkReady      State = "network_ready"
	StateAddressResolved   State = "address_resolved"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// validTransitions defines the strict step order. Any non-terminal state may fail.
var validTransitions = map[State][]State{
	StateIdle:              {StateImagePrepared, StateFailed},
	StateImagePrepared:     {StateBuilt, StateFailed},
	StateBuilt:             {StateContainerReplaced, StateFailed},
	StateContainerReplaced: {StateNetworkReady, StateFailed},
	StateNetworkReady:      {StateAddressResolved, StateFailed},
	StateAddressResolved:   {StateDone, StateFailed},
	StateDone:              {}, // Terminal state
	StateFailed:            {}, // Terminal state
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}
