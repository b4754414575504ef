package emulator

import (
	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/store"
)

// advance moves a deployment one step toward running with every instance
// ready. It reports whether anything changed.
func advance(d *store.Deployment) bool {
	switch d.Status {
	case domain.DeploymentDeploying, domain.DeploymentStarting, domain.DeploymentRunningTransitioning:
		d.Status = domain.DeploymentRunning
		return true
	case domain.DeploymentSuspending, domain.DeploymentSuspendedTransitioning:
		d.Status = domain.DeploymentSuspended
		return true
	case domain.DeploymentRunning:
		changed := false
		for i := range d.RoleInstances {
			if next, ok := nextInstanceStatus(d.RoleInstances[i].Status); ok {
				d.RoleInstances[i].Status = next
				changed = true
			}
		}
		return changed
	default:
		return false
	}
}

func nextInstanceStatus(s domain.InstanceStatus) (domain.InstanceStatus, bool) {
	switch s {
	case domain.InstanceInitializing:
		return domain.InstanceBusy, true
	case domain.InstanceBusy:
		return domain.InstanceReady, true
	default:
		return s, false
	}
}

// setStatus applies a requested run state. Starting resets every instance;
// a deployment already in the requested state is left alone.
func setStatus(d *store.Deployment, status domain.DeploymentStatus) bool {
	switch status {
	case domain.DeploymentRunning:
		if d.Status.IsStarted() || d.Status == domain.DeploymentRunningTransitioning {
			return false
		}
		d.Status = domain.DeploymentStarting
		setInstances(d, domain.InstanceInitializing)
	case domain.DeploymentSuspended:
		if d.Status == domain.DeploymentSuspended {
			return false
		}
		d.Status = domain.DeploymentSuspended
		setInstances(d, domain.InstanceStopped)
	default:
		return false
	}
	return true
}

func setInstances(d *store.Deployment, status domain.InstanceStatus) {
	for i := range d.RoleInstances {
		d.RoleInstances[i].Status = status
	}
}
