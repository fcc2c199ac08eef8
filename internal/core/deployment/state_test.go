package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// ValidateTransition Tests
// =============================================================================

func TestValidateTransition_HappyPath(t *testing.T) {
	path := []State{
		StateIdle,
		StateImagePrepared,
		StateBuilt,
		StateContainerReplaced,
		StateNetworkReady,
		StateAddressResolved,
		StateDone,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.NoError(t, ValidateTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestValidateTransition_AnyStepCanFail(t *testing.T) {
	for _, s := range []State{StateIdle, StateImagePrepared, StateBuilt, StateContainerReplaced, StateNetworkReady, StateAddressResolved} {
		assert.NoError(t, ValidateTransition(s, StateFailed), s)
	}
}

func TestValidateTransition_NoSkipping(t *testing.T) {
	assert.ErrorIs(t, ValidateTransition(StateIdle, StateBuilt), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateTransition(StateBuilt, StateImagePrepared), ErrInvalidTransition)
}

func TestValidateTransition_TerminalStates(t *testing.T) {
	assert.ErrorIs(t, ValidateTransition(StateDone, StateFailed), ErrInvalidTransition)
	assert.ErrorIs(t, ValidateTransition(StateFailed, StateIdle), ErrInvalidTransition)
	assert.True(t, StateDone.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateBuilt.IsTerminal())
}

func TestValidateTransition_UnknownState(t *testing.T) {
	assert.ErrorIs(t, ValidateTransition(State("bogus"), StateDone), ErrInvalidTransition)
}
