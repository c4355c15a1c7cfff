package tenancy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
)

func TestDeriveNamespace(t *testing.T) {
	cases := []struct {
		slug, id, want string
	}{
		{"acme", "0b7e2c1a-1111-2222-3333-444455556666", "langop-acme"},
		{"Acme Corp!", "x", "langop-acme-corp"},
		{"", "0b7e2c1a-1111-2222-3333-444455556666", "langop-0b7e2c1a"},
		{"___", "ABCDEF12-0000", "langop-abcdef12"},
		{"", "", "langop-org"},
	}
	for _, tc := range cases {
		if got := DeriveNamespace(tc.slug, tc.id); got != tc.want {
			t.Fatalf("DeriveNamespace(%q,%q) = %q want %q", tc.slug, tc.id, got, tc.want)
		}
	}
	long := DeriveNamespace(strings.Repeat("a", 200), "x")
	if len(long) > 63 {
		t.Fatalf("namespace too long: %d", len(long))
	}
	if err := names.Validate(long); err != nil {
		t.Fatalf("derived namespace invalid: %v", err)
	}
}

func TestNamespaceForKeepsStoredValue(t *testing.T) {
	org := types.Organization{ID: "0b7e2c1a-1111", Slug: "renamed", Namespace: "langop-acme"}
	if got := NamespaceFor(org); got != "langop-acme" {
		t.Fatalf("stored namespace must win over slug: %q", got)
	}
	org.Namespace = ""
	if got := NamespaceFor(org); got != "langop-renamed" {
		t.Fatalf("fallback = %q", got)
	}
}

func seed(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	org := types.Organization{ID: "org1", Name: "Acme", Slug: "acme", Namespace: "langop-acme"}
	if err := st.CreateOrganization(ctx, org, types.Membership{UserID: "owner"}); err != nil {
		t.Fatalf("seed org: %v", err)
	}
	if err := st.CreateMembership(ctx, types.Membership{OrganizationID: "org1", UserID: "u1", Email: "u1@acme.test", Role: types.RoleEditor}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return st
}

func TestResolve(t *testing.T) {
	r := &Resolver{Store: seed(t)}
	sc, err := r.Resolve(context.Background(), "u1", "org1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sc.Namespace != "langop-acme" || sc.Role != types.RoleEditor || sc.Email != "u1@acme.test" {
		t.Fatalf("scope = %+v", sc)
	}
}

func TestResolveDenials(t *testing.T) {
	r := &Resolver{Store: seed(t)}
	cases := []struct {
		name, user, org string
		want            httperr.Code
	}{
		{"not a member", "stranger", "org1", httperr.CodeOrganizationAccessDenied},
		{"unknown org", "u1", "nope", httperr.CodeOrganizationAccessDenied},
		{"no user", "", "org1", httperr.CodeAuthenticationRequired},
		{"no org", "u1", "", httperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tc.user, tc.org, "")
			var e *httperr.Error
			if !errors.As(err, &e) || e.Code != tc.want {
				t.Fatalf("err = %v want %s", err, tc.want)
			}
		})
	}
}

func TestScopeContext(t *testing.T) {
	if _, ok := ScopeFrom(context.Background()); ok {
		t.Fatalf("empty context must not carry a scope")
	}
	ctx := WithScope(context.Background(), Scope{OrganizationID: "org1", Namespace: "langop-acme"})
	sc, ok := ScopeFrom(ctx)
	if !ok || sc.Namespace != "langop-acme" {
		t.Fatalf("scope = %+v", sc)
	}
}
