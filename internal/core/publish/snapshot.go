package publish

import "github.com/artpar/cloudpublish/internal/core/domain"

// InstanceTransition reports that a role instance changed status.
type InstanceTransition struct {
	RoleName     string
	InstanceName string
	From         domain.InstanceStatus // empty on first observation
	To           domain.InstanceStatus
}

// RoleInstanceSnapshot remembers the last observed status of each role
// instance. It is created empty when verification starts and only touched by
// the verifying goroutine.
type RoleInstanceSnapshot struct {
	last map[string]domain.InstanceStatus
}

// NewRoleInstanceSnapshot returns an empty snapshot.
func NewRoleInstanceSnapshot() *RoleInstanceSnapshot {
	return &RoleInstanceSnapshot{last: make(map[string]domain.InstanceStatus)}
}

// Observe records instances and returns one transition per instance whose
// status changed since the previous observation. Statuses outside busy,
// ready and initializing are remembered but never reported.
func (s *RoleInstanceSnapshot) Observe(instances []domain.RoleInstance) []InstanceTransition {
	var out []InstanceTransition
	for _, inst := range instances {
		key := instanceKey(inst)
		prev, seen := s.last[key]
		if seen && prev == inst.Status {
			continue
		}
		s.last[key] = inst.Status
		if !inst.Status.IsNotable() {
			continue
		}
		out = append(out, InstanceTransition{
			RoleName:     inst.RoleName,
			InstanceName: inst.InstanceName,
			From:         prev,
			To:           inst.Status,
		})
	}
	return out
}

// Len returns the number of instances observed so far.
func (s *RoleInstanceSnapshot) Len() int {
	return len(s.last)
}

// AllReady reports whether there is at least one instance and every instance
// reports ReadyRole.
func AllReady(instances []domain.RoleInstance) bool {
	if len(instances) == 0 {
		return false
	}
	for _, inst := range instances {
		if !inst.Status.IsReady() {
			return false
		}
	}
	return true
}

func instanceKey(inst domain.RoleInstance) string {
	if inst.RoleName == "" {
		return inst.InstanceName
	}
	return inst.RoleName + "/" + inst.InstanceName
}
