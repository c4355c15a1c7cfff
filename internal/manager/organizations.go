package manager

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/cluster"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/names"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/rbac"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	"go.uber.org/zap"
)

const maxSlugLength = 50

// OrganizationRequest is the body of POST /api/organizations.
type OrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
	Plan string `json:"plan,omitempty"`
}

// OrganizationView adds the caller's role and permissions to an organization.
type OrganizationView struct {
	types.Organization
	Role        types.Role        `json:"role"`
	Permissions []rbac.Permission `json:"permissions"`
}

// MemberRequest is the body of PATCH .../members/{userID}.
type MemberRequest struct {
	Role string `json:"role"`
}

func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFrom(ctx)
	orgs, err := s.store.ListOrganizationsForUser(ctx, id.UserID)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not list organizations", err))
		return
	}
	httperr.OK(w, http.StatusOK, orgs, "")
}

// createOrganization stores the organization with the caller as owner, then
// provisions its namespace. The namespace is derived once here and never
// recomputed.
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFrom(ctx)
	var req OrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var verrs httperr.ValidationErrors
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		verrs.Add("name", "is required")
	}
	slug := req.Slug
	if slug == "" {
		slug = names.SanitizeMax(req.Name, maxSlugLength)
	} else if len(slug) > maxSlugLength || names.Validate(slug) != nil {
		verrs.Add("slug", "must be lowercase alphanumerics and hyphens, at most 50 characters")
	}
	if err := verrs.Err(); err != nil {
		s.fail(w, r, err)
		return
	}

	now := s.now().UTC()
	orgID := types.NewID().String()
	org := types.Organization{
		ID:        orgID,
		Name:      req.Name,
		Slug:      slug,
		Namespace: tenancy.DeriveNamespace(slug, orgID),
		Plan:      req.Plan,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := types.Membership{
		OrganizationID: orgID,
		UserID:         id.UserID,
		Email:          id.Email,
		Role:           types.RoleOwner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateOrganization(ctx, org, owner); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.fail(w, r, httperr.Wrap(httperr.CodeResourceConflict, "organization slug or namespace is already taken", err).
				WithContext("slug", slug, "namespace", org.Namespace))
			return
		}
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not create organization", err))
		return
	}
	if err := cluster.EnsureNamespace(ctx, s.kube, org.Namespace, org.ID); err != nil {
		if derr := s.store.DeleteOrganization(ctx, org.ID); derr != nil {
			logging.FromContext(ctx).Error("organization_rollback_failed", zap.String("organizationId", org.ID), zap.Error(derr))
		}
		s.fail(w, r, err)
		return
	}
	logging.FromContext(ctx).Info("organization_created",
		zap.String("organizationId", org.ID),
		zap.String("namespace", org.Namespace),
	)
	httperr.OK(w, http.StatusCreated, OrganizationView{
		Organization: org,
		Role:         types.RoleOwner,
		Permissions:  rbac.Permissions(types.RoleOwner),
	}, "organization created")
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	scope, _ := tenancy.ScopeFrom(r.Context())
	org := scope.Organization
	org.Namespace = scope.Namespace
	httperr.OK(w, http.StatusOK, OrganizationView{
		Organization: org,
		Role:         scope.Role,
		Permissions:  rbac.Permissions(scope.Role),
	}, "")
}

// deleteOrganization removes the organization and its memberships and
// invites. The Kubernetes namespace is left for an operator to reclaim.
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	if err := s.store.DeleteOrganization(ctx, scope.OrganizationID); err != nil {
		s.fail(w, r, storeError(err, httperr.CodeOrganizationNotFound, "organization not found"))
		return
	}
	logging.FromContext(ctx).Info("organization_deleted",
		zap.String("organizationId", scope.OrganizationID),
		zap.String("namespace", scope.Namespace),
	)
	httperr.OK(w, http.StatusOK, map[string]string{"id": scope.OrganizationID}, "organization deleted")
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	members, err := s.store.ListMemberships(ctx, scope.OrganizationID)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not list members", err))
		return
	}
	httperr.OK(w, http.StatusOK, members, "")
}

// updateMember changes a member's role. Granting or revoking ownership needs
// the delete_org permission on top of manage_members.
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	var req MemberRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	role, ok := rbac.ParseRole(req.Role)
	if !ok {
		s.fail(w, r, httperr.New(httperr.CodeValidation, "invalid role").
			WithDetails([]httperr.FieldError{{Field: "role", Message: "must be one of owner, admin, editor, viewer"}}))
		return
	}
	target, ok := s.loadMember(w, r)
	if !ok {
		return
	}
	if (role == types.RoleOwner || target.Role == types.RoleOwner) && !s.allow(w, r, rbac.DeleteOrg) {
		return
	}
	if err := s.guardOwner(r, target, &role); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateMembershipRole(ctx, scope.OrganizationID, target.UserID, role)
	if err != nil {
		s.fail(w, r, storeError(err, httperr.CodeResourceNotFound, "member not found"))
		return
	}
	logging.FromContext(ctx).Info("member_role_changed",
		zap.String("member", target.UserID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)),
	)
	httperr.OK(w, http.StatusOK, updated, "member updated")
}

// removeMember lets any member leave. Removing someone else needs
// manage_members, and removing an owner also needs delete_org.
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	target, ok := s.loadMember(w, r)
	if !ok {
		return
	}
	if target.UserID != scope.UserID {
		if !s.allow(w, r, rbac.ManageMembers) {
			return
		}
		if target.Role == types.RoleOwner && !s.allow(w, r, rbac.DeleteOrg) {
			return
		}
	}
	if err := s.guardOwner(r, target, nil); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteMembership(ctx, scope.OrganizationID, target.UserID); err != nil {
		s.fail(w, r, storeError(err, httperr.CodeResourceNotFound, "member not found"))
		return
	}
	logging.FromContext(ctx).Info("member_removed", zap.String("member", target.UserID))
	httperr.OK(w, http.StatusOK, map[string]string{"userId": target.UserID}, "member removed")
}

func (s *Server) loadMember(w http.ResponseWriter, r *http.Request) (types.Membership, bool) {
	scope, _ := tenancy.ScopeFrom(r.Context())
	userID := chi.URLParam(r, "userID")
	m, err := s.store.GetMembership(r.Context(), scope.OrganizationID, userID)
	if err != nil {
		s.fail(w, r, storeError(err, httperr.CodeResourceNotFound, "member not found"))
		return types.Membership{}, false
	}
	return m, true
}

func (s *Server) guardOwner(r *http.Request, target types.Membership, newRole *types.Role) error {
	scope, _ := tenancy.ScopeFrom(r.Context())
	if target.UserID != scope.UserID || target.Role != types.RoleOwner {
		return nil
	}
	owners, err := s.store.CountOwners(r.Context(), scope.OrganizationID)
	if err != nil {
		return httperr.Wrap(httperr.CodeInternal, "could not count owners", err)
	}
	return rbac.GuardSelfMutation(scope.UserID, target, newRole, owners)
}

func (s *Server) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.fail(w, r, httperr.New(httperr.CodeValidation, "invalid limit").
				WithDetails([]httperr.FieldError{{Field: "limit", Message: "must be between 1 and 500"}}))
			return
		}
		limit = n
	}
	events, err := s.audit.Recent(ctx, scope.OrganizationID, limit)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not read audit events", err))
		return
	}
	httperr.OK(w, http.StatusOK, events, "")
}

// storeError maps store sentinels onto the taxonomy.
func storeError(err error, notFound httperr.Code, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return httperr.Wrap(notFound, msg, err)
	case errors.Is(err, store.ErrConflict):
		return httperr.Wrap(httperr.CodeResourceConflict, "the resource was modified concurrently", err)
	}
	return httperr.Wrap(httperr.CodeInternal, "storage error", err)
}
