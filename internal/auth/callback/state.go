package callback

import (
	"errors"
	"fmt"
	"slices"
)

// State is the lifecycle position of one authentication attempt.
type State string

const (
	StateAwaitingProviderResponse State = "AWAITING_PROVIDER_RESPONSE"
	StateIdentityLoaded           State = "IDENTITY_LOADED"
	StateSessionIssued            State = "SESSION_ISSUED"
	StateFailed                   State = "FAILED"
)

var ErrInvalidTransition = errors.New("callback: invalid state transition")

// SESSION_ISSUED and FAILED are terminal.
var transitions = map[State][]State{
	StateAwaitingProviderResponse: {StateIdentityLoaded, StateFailed},
	StateIdentityLoaded:           {StateSessionIssued, StateFailed},
}

func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s State) CanTransitionTo(next State) bool {
	return slices.Contains(transitions[s], next)
}

// Attempt is one authentication attempt, from the redirect to the
// provider until the final redirect to the frontend.
type Attempt struct {
	// ID keys the handoff between phases. It is the OAuth state value.
	ID string

	ProviderKey string

	// Claims is the raw provider response, kept for re-resolution.
	Claims map[string]any

	state State
	err   error
}

func NewAttempt(id, providerKey string) *Attempt {
	return &Attempt{
		ID:          id,
		ProviderKey: providerKey,
		state:       StateAwaitingProviderResponse,
	}
}

func (a *Attempt) State() State {
	return a.state
}

// Err returns the failure that moved the attempt to FAILED, if any.
func (a *Attempt) Err() error {
	return a.err
}

func (a *Attempt) transition(next State) error {
	if !a.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, next)
	}
	a.state = next
	return nil
}
