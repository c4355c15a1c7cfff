// Package rbac holds the fixed organization role → permission table.
package rbac

import (
	"errors"
	"net/http"
	"strings"

	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
)

// Permission is an action a member may perform inside an organization.
type Permission string

const (
	View          Permission = "view"
	Create        Permission = "create"
	Edit          Permission = "edit"
	Delete        Permission = "delete"
	ManageMembers Permission = "manage_members"
	ManageBilling Permission = "manage_billing"
	DeleteOrg     Permission = "delete_org"
)

var table = map[types.Role]map[Permission]bool{
	types.RoleOwner: {
		View: true, Create: true, Edit: true, Delete: true,
		ManageMembers: true, ManageBilling: true, DeleteOrg: true,
	},
	types.RoleAdmin: {
		View: true, Create: true, Edit: true, Delete: true,
		ManageMembers: true,
	},
	types.RoleEditor: {
		View: true, Create: true, Edit: true, Delete: true,
	},
	types.RoleViewer: {
		View: true,
	},
}

// Has reports whether role grants perm. Unknown roles are granted nothing.
func Has(role types.Role, perm Permission) bool {
	return table[role][perm]
}

// Permissions lists what role grants, in table order.
func Permissions(role types.Role) []Permission {
	all := []Permission{View, Create, Edit, Delete, ManageMembers, ManageBilling, DeleteOrg}
	out := []Permission{}
	for _, p := range all {
		if Has(role, p) {
			out = append(out, p)
		}
	}
	return out
}

// ParseRole accepts a known role name, case-insensitively.
func ParseRole(s string) (types.Role, bool) {
	r := types.Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := table[r]; !ok {
		return "", false
	}
	return r, true
}

// InvitableRole reports whether r may be offered through an invite. Ownership
// is never granted by invitation.
func InvitableRole(r types.Role) bool {
	switch r {
	case types.RoleAdmin, types.RoleEditor, types.RoleViewer:
		return true
	}
	return false
}

// ActionForMethod maps an HTTP verb to the permission it requires on a resource route.
func ActionForMethod(method string) Permission {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return View
	case http.MethodPost:
		return Create
	case http.MethodPut, http.MethodPatch:
		return Edit
	case http.MethodDelete:
		return Delete
	}
	// Unknown verbs require the strongest resource permission.
	return Delete
}

// ErrSoleOwner is returned when the only owner tries to demote or remove themself.
var ErrSoleOwner = errors.New("the sole owner of an organization cannot demote or remove themself")

// GuardSelfMutation rejects a role change or removal that would leave the
// organization without an owner. newRole is nil for removals. ownerCount is
// the number of owners currently in the organization.
func GuardSelfMutation(actorID string, target types.Membership, newRole *types.Role, ownerCount int) error {
	if actorID != target.UserID || target.Role != types.RoleOwner {
		return nil
	}
	if newRole != nil && *newRole == types.RoleOwner {
		return nil
	}
	if ownerCount <= 1 {
		return ErrSoleOwner
	}
	return nil
}
