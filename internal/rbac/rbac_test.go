package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminHasEverything(t *testing.T) {
	for _, resource := range AllResources() {
		for _, action := range []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete} {
			assert.True(t, HasPermission(RoleAdmin, resource, action), "ADMIN %s %s", resource, action)
		}
	}
}

func TestVicePrincipalExclusions(t *testing.T) {
	assert.True(t, HasPermission(RoleVicePrincipal, ResourceStudent, ActionCreate))
	assert.True(t, HasPermission(RoleVicePrincipal, ResourceClass, ActionDelete))
	assert.True(t, HasPermission(RoleVicePrincipal, ResourceCircular, ActionUpdate))

	assert.False(t, HasPermission(RoleVicePrincipal, ResourcePayment, ActionCreate))
	assert.False(t, HasPermission(RoleVicePrincipal, ResourcePayment, ActionUpdate))
	assert.False(t, HasPermission(RoleVicePrincipal, ResourcePayment, ActionDelete))
	assert.False(t, HasPermission(RoleVicePrincipal, ResourceUser, ActionCreate))
	assert.False(t, HasPermission(RoleVicePrincipal, ResourceUser, ActionDelete))

	assert.True(t, HasPermission(RoleVicePrincipal, ResourcePayment, ActionView))
}

func TestTeacherUpdateOnly(t *testing.T) {
	assert.False(t, HasPermission(RoleTeacher, ResourceStudent, ActionCreate))
	assert.False(t, HasPermission(RoleTeacher, ResourceStudent, ActionDelete))
	assert.True(t, HasPermission(RoleTeacher, ResourceStudent, ActionUpdate))
	assert.True(t, HasPermission(RoleTeacher, ResourceAttendance, ActionUpdate))

	for _, resource := range AllResources() {
		assert.False(t, HasPermission(RoleTeacher, resource, ActionCreate), "TEACHER may never CREATE %s", resource)
		assert.False(t, HasPermission(RoleTeacher, resource, ActionDelete), "TEACHER may never DELETE %s", resource)
	}
}

func TestFinanceScope(t *testing.T) {
	assert.True(t, HasPermission(RoleFinance, ResourcePayment, ActionCreate))
	assert.True(t, HasPermission(RoleFinance, ResourcePayment, ActionUpdate))
	assert.True(t, HasPermission(RoleFinance, ResourcePayment, ActionDelete))
	assert.True(t, HasPermission(RoleFinance, ResourceMeal, ActionCreate))
	assert.True(t, HasPermission(RoleFinance, ResourceMeal, ActionUpdate))
	assert.False(t, HasPermission(RoleFinance, ResourceMeal, ActionDelete))

	assert.False(t, HasPermission(RoleFinance, ResourceStudent, ActionUpdate))
	assert.True(t, HasPermission(RoleFinance, ResourceStudent, ActionView))
	assert.False(t, HasPermission(RoleFinance, ResourceTransport, ActionCreate))
	assert.False(t, HasPermission(RoleFinance, ResourceUser, ActionUpdate))
}

func TestUnknownRoleDenied(t *testing.T) {
	assert.False(t, HasPermission(Role("JANITOR"), ResourceStudent, ActionView))
	assert.False(t, HasPermission(Role(""), ResourceStudent, ActionUpdate))
}

func TestCapabilitiesCoverAllResources(t *testing.T) {
	caps := Capabilities(RoleFinance)
	assert.Len(t, caps, len(AllResources()))
	assert.Contains(t, caps[ResourcePayment], ActionDelete)
	assert.NotContains(t, caps[ResourceStudent], ActionUpdate)
	assert.Contains(t, caps[ResourceStudent], ActionView)
}
