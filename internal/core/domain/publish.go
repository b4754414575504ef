package domain

import (
	"errors"
	"time"
)

var ErrInvalidPublishTransition = errors.New("invalid publish state transition")

// =============================================================================
// Publish State
// =============================================================================

// PublishState is the position of a publish attempt in its state machine.
type PublishState string

const (
	PublishNotStarted          PublishState = "not_started"
	PublishPackaged            PublishState = "packaged"
	PublishServiceEnsured      PublishState = "service_ensured"
	PublishDeploymentSubmitted PublishState = "deployment_submitted"
	PublishVerifying           PublishState = "verifying"
	PublishComplete            PublishState = "complete"
	PublishDeclined            PublishState = "declined"
	PublishFailed              PublishState = "failed"
)

// IsTerminal returns true if no further transitions are possible.
func (s PublishState) IsTerminal() bool {
	return s == PublishComplete || s == PublishDeclined || s == PublishFailed
}

// validPublishTransitions defines the allowed state transitions.
var validPublishTransitions = map[PublishState][]PublishState{
	PublishNotStarted:          {PublishPackaged, PublishDeclined, PublishFailed},
	PublishPackaged:            {PublishServiceEnsured, PublishFailed},
	PublishServiceEnsured:      {PublishDeploymentSubmitted, PublishFailed},
	PublishDeploymentSubmitted: {PublishVerifying, PublishComplete, PublishFailed},
	PublishVerifying:           {PublishComplete, PublishFailed},
	PublishComplete:            {},
	PublishDeclined:            {},
	PublishFailed:              {},
}

// ValidatePublishTransition checks if a publish state transition is valid.
func ValidatePublishTransition(from, to PublishState) error {
	allowed, exists := validPublishTransitions[from]
	if !exists {
		return ErrInvalidPublishTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidPublishTransition
}

// =============================================================================
// Publish Attempt
// =============================================================================

// PublishAttempt tracks one publish invocation. It lives only for the
// duration of that invocation.
type PublishAttempt struct {
	Target       DeploymentTarget `json:"target"`
	State        PublishState     `json:"state"`
	CurrentStep  string           `json:"current_step,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// NewPublishAttempt starts tracking a publish to target.
func NewPublishAttempt(target DeploymentTarget) *PublishAttempt {
	now := time.Now()
	return &PublishAttempt{
		Target:    target,
		State:     PublishNotStarted,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Transition attempts to move the attempt to a new state.
func (a *PublishAttempt) Transition(to PublishState) error {
	if err := ValidatePublishTransition(a.State, to); err != nil {
		return err
	}
	a.State = to
	a.UpdatedAt = time.Now()
	if to.IsTerminal() {
		now := time.Now()
		a.CompletedAt = &now
	}
	return nil
}

// TransitionToFailed sets the failed state with an error message.
func (a *PublishAttempt) TransitionToFailed(errorMessage string) error {
	if err := a.Transition(PublishFailed); err != nil {
		return err
	}
	a.ErrorMessage = errorMessage
	return nil
}

// SetStep updates the current step description.
func (a *PublishAttempt) SetStep(step string) {
	a.CurrentStep = step
	a.UpdatedAt = time.Now()
}
