package publish

import (
	"context"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// Resolver answers whether the hosted service and a deployment in the
// target slot exist. An absent resource is a negative answer, never an
// error; every other fault propagates.
type Resolver struct {
	channel channel.Channel
}

// NewResolver creates a resolver over ch.
func NewResolver(ch channel.Channel) *Resolver {
	return &Resolver{channel: ch}
}

// ServiceExists reports whether the target's hosted service exists.
func (r *Resolver) ServiceExists(ctx context.Context, target domain.DeploymentTarget) (bool, error) {
	_, err := r.channel.GetHostedService(ctx, target.Subscription, target.ServiceName)
	if err == nil {
		return true, nil
	}
	if channel.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// DeploymentExists reports whether a deployment occupies the target slot.
func (r *Resolver) DeploymentExists(ctx context.Context, target domain.DeploymentTarget) (bool, error) {
	d, err := r.Deployment(ctx, target)
	return d != nil, err
}

// Deployment returns the deployment occupying the target slot, or nil when
// the slot is empty.
func (r *Resolver) Deployment(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	d, err := r.channel.GetDeploymentBySlot(ctx, target)
	if err == nil {
		return d, nil
	}
	if channel.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}
