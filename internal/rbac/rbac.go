// Package rbac holds the static role/resource/action capability table.
// HasPermission is a pure lookup with no I/O; dynamic ownership checks
// (a teacher editing only their own class) live in the services on top
// of this table.
package rbac

// Role enumerates the application roles.
type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleVicePrincipal Role = "VICE_PRINCIPAL"
	RoleTeacher       Role = "TEACHER"
	RoleFinance       Role = "FINANCE"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleVicePrincipal, RoleTeacher, RoleFinance:
		return true
	default:
		return false
	}
}

// Resource enumerates the guarded resource kinds.
type Resource string

const (
	ResourceStudent    Resource = "STUDENT"
	ResourceTeacher    Resource = "TEACHER"
	ResourceClass      Resource = "CLASS"
	ResourceAttendance Resource = "ATTENDANCE"
	ResourcePayment    Resource = "PAYMENT"
	ResourceMeal       Resource = "MEAL"
	ResourceTransport  Resource = "TRANSPORT"
	ResourceCircular   Resource = "CIRCULAR"
	ResourceUser       Resource = "USER"
)

// Action enumerates the guarded operations. View is granted to every
// authenticated role; the table only lists mutations.
type Action string

const (
	ActionView   Action = "VIEW"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

type actionSet map[Action]struct{}

func actions(list ...Action) actionSet {
	set := make(actionSet, len(list))
	for _, a := range list {
		set[a] = struct{}{}
	}
	return set
}

var mutations = []Action{ActionCreate, ActionUpdate, ActionDelete}

// permissions is the static capability matrix. ADMIN is handled as a
// blanket grant in HasPermission and intentionally has no entry here.
var permissions = map[Role]map[Resource]actionSet{
	RoleVicePrincipal: {
		ResourceStudent:    actions(mutations...),
		ResourceTeacher:    actions(mutations...),
		ResourceClass:      actions(mutations...),
		ResourceAttendance: actions(mutations...),
		ResourceMeal:       actions(mutations...),
		ResourceTransport:  actions(mutations...),
		ResourceCircular:   actions(mutations...),
	},
	RoleTeacher: {
		ResourceStudent:    actions(ActionUpdate),
		ResourceAttendance: actions(ActionUpdate),
	},
	RoleFinance: {
		ResourcePayment: actions(mutations...),
		ResourceMeal:    actions(ActionCreate, ActionUpdate),
	},
}

// HasPermission answers whether role may perform action on resource.
// Deterministic and side-effect free; consulted by the HTTP middleware
// on every mutating route and exposed to clients for button rendering.
func HasPermission(role Role, resource Resource, action Action) bool {
	if !role.Valid() {
		return false
	}
	if action == ActionView {
		return true
	}
	if role == RoleAdmin {
		return true
	}
	resources, ok := permissions[role]
	if !ok {
		return false
	}
	set, ok := resources[resource]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Capabilities returns the full action map for a role, keyed by
// resource. Used by the /permissions endpoint so clients can decide
// which controls to render without re-encoding the table.
func Capabilities(role Role) map[Resource][]Action {
	out := make(map[Resource][]Action)
	for _, resource := range AllResources() {
		granted := []Action{ActionView}
		for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
			if HasPermission(role, resource, action) {
				granted = append(granted, action)
			}
		}
		out[resource] = granted
	}
	return out
}

// AllResources lists every guarded resource in a stable order.
func AllResources() []Resource {
	return []Resource{
		ResourceStudent,
		ResourceTeacher,
		ResourceClass,
		ResourceAttendance,
		ResourcePayment,
		ResourceMeal,
		ResourceTransport,
		ResourceCircular,
		ResourceUser,
	}
}
