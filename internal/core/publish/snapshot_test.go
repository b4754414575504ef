package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

func inst(role, name string, status domain.InstanceStatus) domain.RoleInstance {
	return domain.RoleInstance{RoleName: role, InstanceName: name, Status: status}
}

func TestRoleInstanceSnapshot_ReportsOnlyChanges(t *testing.T) {
	s := NewRoleInstanceSnapshot()

	first := s.Observe([]domain.RoleInstance{
		inst("web", "web_IN_0", domain.InstanceInitializing),
		inst("web", "web_IN_1", domain.InstanceBusy),
	})
	assert.Len(t, first, 2)
	assert.Equal(t, domain.InstanceStatus(""), first[0].From)
	assert.Equal(t, domain.InstanceInitializing, first[0].To)

	// Same statuses again: nothing to report.
	again := s.Observe([]domain.RoleInstance{
		inst("web", "web_IN_0", domain.InstanceInitializing),
		inst("web", "web_IN_1", domain.InstanceBusy),
	})
	assert.Empty(t, again)

	changed := s.Observe([]domain.RoleInstance{
		inst("web", "web_IN_0", domain.InstanceBusy),
		inst("web", "web_IN_1", domain.InstanceBusy),
	})
	assert.Equal(t, []InstanceTransition{{
		RoleName:     "web",
		InstanceName: "web_IN_0",
		From:         domain.InstanceInitializing,
		To:           domain.InstanceBusy,
	}}, changed)
	assert.Equal(t, 2, s.Len())
}

func TestRoleInstanceSnapshot_IgnoresOtherStatuses(t *testing.T) {
	s := NewRoleInstanceSnapshot()

	assert.Empty(t, s.Observe([]domain.RoleInstance{inst("web", "web_IN_0", "StoppedVM")}))
	assert.Empty(t, s.Observe([]domain.RoleInstance{inst("web", "web_IN_0", "RestartingRole")}))

	got := s.Observe([]domain.RoleInstance{inst("web", "web_IN_0", domain.InstanceReady)})
	assert.Len(t, got, 1)
	assert.Equal(t, domain.InstanceStatus("RestartingRole"), got[0].From)
}

func TestRoleInstanceSnapshot_DistinguishesRoles(t *testing.T) {
	s := NewRoleInstanceSnapshot()
	got := s.Observe([]domain.RoleInstance{
		inst("web", "IN_0", domain.InstanceBusy),
		inst("worker", "IN_0", domain.InstanceBusy),
	})
	assert.Len(t, got, 2)
}

func TestAllReady(t *testing.T) {
	assert.False(t, AllReady(nil))
	assert.True(t, AllReady([]domain.RoleInstance{
		inst("web", "a", domain.InstanceReady),
		inst("web", "b", domain.InstanceReady),
	}))
	assert.False(t, AllReady([]domain.RoleInstance{
		inst("web", "a", domain.InstanceReady),
		inst("web", "b", domain.InstanceBusy),
	}))
	assert.False(t, AllReady([]domain.RoleInstance{
		inst("web", "a", domain.InstanceReady),
		inst("web", "b", "StoppedVM"),
	}))
}
