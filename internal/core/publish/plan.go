package publish

// =============================================================================
// Create-vs-Upgrade Planning
// =============================================================================

// DeploymentAction is the request submitted for the target slot.
type DeploymentAction string

const (
	ActionCreate  DeploymentAction = "create"
	ActionUpgrade DeploymentAction = "upgrade"
)

// Existence is what the existence resolver learned about the target.
type Existence struct {
	ServiceExists    bool
	DeploymentExists bool
}

// Plan is the sequence of remote mutations a publish performs.
type Plan struct {
	// CreateService is true when the hosted service must be created first.
	CreateService bool

	// Action is create when the slot is empty, upgrade when it is occupied.
	Action DeploymentAction
}

// DeterminePlan decides what a publish must do for the observed existence.
//
// A deployment cannot exist without its hosted service, so a missing service
// always yields a create regardless of DeploymentExists.
//
// Example:
//
//	plan := DeterminePlan(Existence{ServiceExists: true, DeploymentExists: true})
//	// plan.CreateService == false, plan.Action == ActionUpgrade
func DeterminePlan(e Existence) Plan {
	if !e.ServiceExists {
		return Plan{CreateService: true, Action: ActionCreate}
	}
	if e.DeploymentExists {
		return Plan{Action: ActionUpgrade}
	}
	return Plan{Action: ActionCreate}
}
