package rbac

import (
	"errors"
	"net/http"
	"testing"

	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
)

func TestHasTable(t *testing.T) {
	cases := []struct {
		role types.Role
		perm Permission
		want bool
	}{
		{types.RoleViewer, Edit, false},
		{types.RoleViewer, View, true},
		{types.RoleEditor, Edit, true},
		{types.RoleEditor, ManageMembers, false},
		{types.RoleAdmin, ManageMembers, true},
		{types.RoleAdmin, ManageBilling, false},
		{types.RoleAdmin, DeleteOrg, false},
		{types.RoleOwner, DeleteOrg, true},
		{types.RoleOwner, ManageBilling, true},
		{"unknown", View, false},
		{"", View, false},
		{types.RoleOwner, "fly", false},
	}
	for _, tc := range cases {
		if got := Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Has(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestViewImpliedByAnyPermission(t *testing.T) {
	roles := []types.Role{types.RoleOwner, types.RoleAdmin, types.RoleEditor, types.RoleViewer, "ghost"}
	for _, r := range roles {
		perms := Permissions(r)
		if len(perms) > 0 && !Has(r, View) {
			t.Fatalf("role %s grants %v without view", r, perms)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole(" Editor "); !ok || r != types.RoleEditor {
		t.Fatalf("ParseRole editor = %q %v", r, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatalf("unknown role accepted")
	}
	if InvitableRole(types.RoleOwner) {
		t.Fatalf("owner must not be invitable")
	}
	if !InvitableRole(types.RoleViewer) {
		t.Fatalf("viewer must be invitable")
	}
}

func TestActionForMethod(t *testing.T) {
	want := map[string]Permission{
		http.MethodGet:    View,
		http.MethodPost:   Create,
		http.MethodPatch:  Edit,
		http.MethodPut:    Edit,
		http.MethodDelete: Delete,
		"BREW":            Delete,
	}
	for m, p := range want {
		if got := ActionForMethod(m); got != p {
			t.Fatalf("ActionForMethod(%s) = %s, want %s", m, got, p)
		}
	}
}

func TestGuardSelfMutation(t *testing.T) {
	owner := types.Membership{UserID: "u1", Role: types.RoleOwner}
	admin := types.RoleAdmin
	ownerRole := types.RoleOwner

	if err := GuardSelfMutation("u1", owner, &admin, 1); !errors.Is(err, ErrSoleOwner) {
		t.Fatalf("sole owner self-demotion allowed: %v", err)
	}
	if err := GuardSelfMutation("u1", owner, nil, 1); !errors.Is(err, ErrSoleOwner) {
		t.Fatalf("sole owner self-removal allowed: %v", err)
	}
	if err := GuardSelfMutation("u1", owner, &admin, 2); err != nil {
		t.Fatalf("co-owned org should allow demotion: %v", err)
	}
	if err := GuardSelfMutation("u1", owner, &ownerRole, 1); err != nil {
		t.Fatalf("no-op owner change rejected: %v", err)
	}
	if err := GuardSelfMutation("u2", owner, nil, 1); err != nil {
		t.Fatalf("guard applies only to self: %v", err)
	}
}
