package tenancy

import (
	"context"
	"errors"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	"go.uber.org/zap"
)

// Scope is the resolved tenancy of one request. It is computed once and
// threaded through the request context.
type Scope struct {
	OrganizationID string
	UserID         string
	Email          string
	Namespace      string
	Role           types.Role
	Organization   types.Organization
}

// MembershipSource is the subset of the store the resolver reads.
type MembershipSource interface {
	GetOrganization(ctx context.Context, id string) (types.Organization, error)
	GetMembership(ctx context.Context, orgID, userID string) (types.Membership, error)
}

// Resolver turns (user, organization) into a Scope.
type Resolver struct {
	Store MembershipSource
}

// Resolve looks up the caller's membership. A missing membership or
// organization yields ORGANIZATION_ACCESS_DENIED so the response does not
// reveal whether the organization exists.
func (r *Resolver) Resolve(ctx context.Context, userID, orgID, email string) (Scope, error) {
	if userID == "" {
		return Scope{}, httperr.New(httperr.CodeAuthenticationRequired, "authentication required")
	}
	if orgID == "" {
		return Scope{}, httperr.New(httperr.CodeValidation, "organization id is required").
			WithDetails([]httperr.FieldError{{Field: "organizationId", Message: "is required"}})
	}
	mem, err := r.Store.GetMembership(ctx, orgID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Scope{}, httperr.Wrap(httperr.CodeOrganizationAccessDenied, "you are not a member of this organization", err)
	}
	if err != nil {
		return Scope{}, httperr.Wrap(httperr.CodeInternal, "could not load membership", err)
	}
	org, err := r.Store.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return Scope{}, httperr.Wrap(httperr.CodeOrganizationAccessDenied, "you are not a member of this organization", err)
	}
	if err != nil {
		return Scope{}, httperr.Wrap(httperr.CodeInternal, "could not load organization", err)
	}
	ns := org.Namespace
	if ns == "" {
		ns = NamespaceFor(org)
		logging.FromContext(ctx).Warn("organization_namespace_derived",
			zap.String("organizationId", org.ID), zap.String("namespace", ns))
	}
	if email == "" {
		email = mem.Email
	}
	return Scope{
		OrganizationID: org.ID,
		UserID:         userID,
		Email:          email,
		Namespace:      ns,
		Role:           mem.Role,
		Organization:   org,
	}, nil
}

type scopeKey struct{}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope resolved for this request.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
