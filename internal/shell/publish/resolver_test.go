package publish

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

func TestResolver_ServiceExists(t *testing.T) {
	ch := newRecordingChannel()
	r := NewResolver(ch)
	target := testTarget(t, "production")

	ok, err := r.ServiceExists(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, ok)

	ch.serviceExists = true
	ok, err = r.ServiceExists(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_DeploymentExists(t *testing.T) {
	ch := newRecordingChannel()
	r := NewResolver(ch)
	target := testTarget(t, "staging")

	ok, err := r.DeploymentExists(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, ok)

	ch.existing = deploymentWith(domain.DeploymentRunning, domain.InstanceReady)
	ok, err = r.DeploymentExists(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_OtherFaultsPropagate(t *testing.T) {
	ch := newRecordingChannel()
	ch.errs["GetHostedService"] = &channel.Fault{StatusCode: http.StatusInternalServerError}
	ch.errs["GetDeploymentBySlot"] = &channel.Fault{StatusCode: http.StatusForbidden}
	r := NewResolver(ch)
	target := testTarget(t, "staging")

	_, err := r.ServiceExists(context.Background(), target)
	assert.Error(t, err)

	_, err = r.DeploymentExists(context.Background(), target)
	assert.Error(t, err)
	assert.False(t, channel.IsNotFound(err))
}
