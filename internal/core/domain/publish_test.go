package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePublishTransition(t *testing.T) {
	valid := []struct{ from, to PublishState }{
		{PublishNotStarted, PublishPackaged},
		{PublishNotStarted, PublishDeclined},
		{PublishPackaged, PublishServiceEnsured},
		{PublishServiceEnsured, PublishDeploymentSubmitted},
		{PublishDeploymentSubmitted, PublishVerifying},
		{PublishDeploymentSubmitted, PublishComplete},
		{PublishVerifying, PublishComplete},
		{PublishVerifying, PublishFailed},
		{PublishPackaged, PublishFailed},
	}
	for _, tt := range valid {
		assert.NoError(t, ValidatePublishTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	invalid := []struct{ from, to PublishState }{
		{PublishNotStarted, PublishDeploymentSubmitted},
		{PublishPackaged, PublishDeclined},
		{PublishComplete, PublishFailed},
		{PublishFailed, PublishNotStarted},
		{PublishServiceEnsured, PublishComplete},
		{PublishState("bogus"), PublishPackaged},
	}
	for _, tt := range invalid {
		assert.ErrorIs(t, ValidatePublishTransition(tt.from, tt.to), ErrInvalidPublishTransition, "%s -> %s", tt.from, tt.to)
	}
}

func TestPublishAttempt_Lifecycle(t *testing.T) {
	target, err := NewDeploymentTarget("sub", "svc", "production")
	require.NoError(t, err)

	a := NewPublishAttempt(target)
	assert.Equal(t, PublishNotStarted, a.State)

	for _, s := range []PublishState{PublishPackaged, PublishServiceEnsured, PublishDeploymentSubmitted, PublishVerifying} {
		require.NoError(t, a.Transition(s))
		assert.Nil(t, a.CompletedAt)
	}
	require.NoError(t, a.Transition(PublishComplete))
	assert.NotNil(t, a.CompletedAt)
	assert.True(t, a.State.IsTerminal())
}

func TestPublishAttempt_TransitionToFailed(t *testing.T) {
	a := NewPublishAttempt(DeploymentTarget{ServiceName: "svc", Slot: SlotStaging})
	require.NoError(t, a.Transition(PublishPackaged))
	a.SetStep("Creating hosted service")

	require.NoError(t, a.TransitionToFailed("boom"))
	assert.Equal(t, PublishFailed, a.State)
	assert.Equal(t, "boom", a.ErrorMessage)
	assert.Equal(t, "Creating hosted service", a.CurrentStep)

	assert.ErrorIs(t, a.TransitionToFailed("again"), ErrInvalidPublishTransition)
}

func TestPublishError(t *testing.T) {
	target := DeploymentTarget{Subscription: "sub", ServiceName: "svc", Slot: SlotStaging}
	cause := errors.New("not found")
	err := NewPublishError(KindVerification, "verify deployment", target, cause)

	assert.Equal(t, "verify deployment: service svc slot staging: not found", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindVerification, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))

	noSlot := &PublishError{Kind: KindConfig, Op: "load settings", Err: cause}
	assert.Equal(t, "load settings: not found", noSlot.Error())
}
