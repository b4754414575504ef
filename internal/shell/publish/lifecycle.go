package publish

import (
	"context"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// Start starts the deployment in the target slot and waits until every role
// instance is ready.
func (o *Orchestrator) Start(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	if err := target.Validate(); err != nil {
		return nil, domain.NewPublishError(domain.KindConfig, "start deployment", target, err)
	}

	o.logger.Info("starting deployment", "target", target.String())
	if err := o.channel.UpdateDeploymentStatus(ctx, target, domain.DeploymentRunning); err != nil {
		return nil, domain.NewPublishError(domain.KindRemote, "start deployment", target, err)
	}
	return o.verify(ctx, target)
}

// Stop suspends the deployment in the target slot.
func (o *Orchestrator) Stop(ctx context.Context, target domain.DeploymentTarget) error {
	if err := target.Validate(); err != nil {
		return domain.NewPublishError(domain.KindConfig, "stop deployment", target, err)
	}

	o.logger.Info("stopping deployment", "target", target.String())
	if err := o.channel.UpdateDeploymentStatus(ctx, target, domain.DeploymentSuspended); err != nil {
		return domain.NewPublishError(domain.KindRemote, "stop deployment", target, err)
	}
	o.info(target, "deployment suspended")
	return nil
}

// Status returns the deployment in the target slot.
func (o *Orchestrator) Status(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	if err := target.Validate(); err != nil {
		return nil, domain.NewPublishError(domain.KindConfig, "get deployment status", target, err)
	}

	dep, err := o.channel.GetDeploymentBySlot(ctx, target)
	if err != nil {
		return nil, domain.NewPublishError(domain.KindRemote, "get deployment status", target, err)
	}
	return dep, nil
}
