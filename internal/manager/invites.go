package manager

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/audit"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/lib/httperr"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/rbac"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/security"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/store"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/tenancy"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
)

// InviteRequest is the body of POST .../invites.
type InviteRequest struct {
	Email openapi_types.Email `json:"email"`
	Role  string              `json:"role"`
}

// InviteCreated is returned once, at creation. Only a hash of the token is stored.
type InviteCreated struct {
	types.Invite
	Token string `json:"token"`
}

func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	var req InviteRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, openapi_types.ErrValidationEmail) {
			err = httperr.New(httperr.CodeValidation, "invalid email address").
				WithDetails([]httperr.FieldError{{Field: "email", Message: "must be a valid email address"}})
		}
		s.fail(w, r, err)
		return
	}
	role, ok := rbac.ParseRole(req.Role)
	if !ok || !rbac.InvitableRole(role) {
		s.fail(w, r, httperr.New(httperr.CodeValidation, "invalid role").
			WithDetails([]httperr.FieldError{{Field: "role", Message: "must be one of admin, editor, viewer"}}))
		return
	}
	email := strings.ToLower(string(req.Email))

	members, err := s.store.ListMemberships(ctx, scope.OrganizationID)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not list members", err))
		return
	}
	for _, m := range members {
		if strings.EqualFold(m.Email, email) {
			s.fail(w, r, httperr.New(httperr.CodeResourceConflict, "this email already belongs to a member"))
			return
		}
	}
	pending, err := s.store.ListInvites(ctx, scope.OrganizationID, types.InvitePending)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not list invites", err))
		return
	}
	now := s.now().UTC()
	for _, inv := range pending {
		if strings.EqualFold(inv.Email, email) && !inv.Expired(now) {
			s.fail(w, r, httperr.New(httperr.CodeResourceConflict, "a pending invite already exists for this email"))
			return
		}
	}

	token := types.NewToken()
	inv := types.Invite{
		ID:             types.NewID().String(),
		OrganizationID: scope.OrganizationID,
		Email:          email,
		Role:           role,
		Token:          security.HashToken(token),
		Status:         types.InvitePending,
		InvitedBy:      scope.UserID,
		ExpiresAt:      now.Add(s.inviteTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		s.fail(w, r, storeError(err, httperr.CodeOrganizationNotFound, "organization not found"))
		return
	}
	logging.FromContext(ctx).Info("invite_created", zap.String("invite", inv.ID), zap.String("role", string(role)))
	httperr.OK(w, http.StatusCreated, InviteCreated{Invite: inv, Token: token}, "invite created")
}

func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	invites, err := s.store.ListInvites(ctx, scope.OrganizationID, types.InvitePending)
	if err != nil {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not list invites", err))
		return
	}
	httperr.OK(w, http.StatusOK, invites, "")
}

func (s *Server) cancelInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, _ := tenancy.ScopeFrom(ctx)
	inv, err := s.store.GetInvite(ctx, scope.OrganizationID, chi.URLParam(r, "inviteID"))
	if err != nil {
		s.fail(w, r, storeError(err, httperr.CodeInviteNotFound, "invite not found"))
		return
	}
	updated, err := s.store.TransitionInvite(ctx, inv.ID, types.InvitePending, types.InviteCancelled, scope.UserID, s.now().UTC())
	if err != nil {
		s.fail(w, r, inviteStateError(err))
		return
	}
	logging.FromContext(ctx).Info("invite_cancelled", zap.String("invite", inv.ID))
	httperr.OK(w, http.StatusOK, updated, "invite cancelled")
}

// acceptInvite turns a pending invite into a membership for the caller. The
// caller's email must match the invited address.
func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := identityFrom(ctx)
	inv, err := s.store.GetInviteByToken(ctx, security.HashToken(chi.URLParam(r, "token")))
	if err != nil {
		s.fail(w, r, storeError(err, httperr.CodeInviteNotFound, "invite not found"))
		return
	}
	ctx = audit.WithActor(ctx, audit.Actor{UserID: id.UserID, OrganizationID: inv.OrganizationID})
	ctx = logging.With(ctx, zap.String("organizationId", inv.OrganizationID))
	r = r.WithContext(ctx)

	now := s.now().UTC()
	switch {
	case inv.Status != types.InvitePending:
		s.fail(w, r, httperr.New(httperr.CodeResourceConflict, "invite is no longer pending").
			WithContext("status", string(inv.Status)))
		return
	case inv.Expired(now):
		s.fail(w, r, httperr.New(httperr.CodeInviteExpired, "invite has expired"))
		return
	case id.Email == "" || !strings.EqualFold(id.Email, inv.Email):
		s.denied(ctx, "invite")
		s.fail(w, r, httperr.New(httperr.CodeOrganizationAccessDenied, "this invite was issued to a different email address"))
		return
	}
	if _, err := s.store.GetMembership(ctx, inv.OrganizationID, id.UserID); err == nil {
		s.fail(w, r, httperr.New(httperr.CodeResourceConflict, "you are already a member of this organization"))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.fail(w, r, httperr.Wrap(httperr.CodeInternal, "could not load membership", err))
		return
	}
	if _, err := s.store.TransitionInvite(ctx, inv.ID, types.InvitePending, types.InviteAccepted, id.UserID, now); err != nil {
		s.fail(w, r, inviteStateError(err))
		return
	}
	m := types.Membership{
		OrganizationID: inv.OrganizationID,
		UserID:         id.UserID,
		Email:          inv.Email,
		Role:           inv.Role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		// Put the invite back so it can be accepted again.
		if _, rerr := s.store.TransitionInvite(ctx, inv.ID, types.InviteAccepted, types.InvitePending, "", now); rerr != nil {
			logging.FromContext(ctx).Error("invite_rollback_failed", zap.String("invite", inv.ID), zap.Error(rerr))
		}
		s.fail(w, r, storeError(err, httperr.CodeOrganizationNotFound, "organization not found"))
		return
	}
	s.authorized(ctx)
	logging.FromContext(ctx).Info("invite_accepted", zap.String("invite", inv.ID), zap.String("role", string(inv.Role)))
	httperr.OK(w, http.StatusCreated, m, "invite accepted")
}

func inviteStateError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return httperr.Wrap(httperr.CodeResourceConflict, "invite is no longer pending", err)
	case errors.Is(err, store.ErrNotFound):
		return httperr.Wrap(httperr.CodeInviteNotFound, "invite not found", err)
	}
	return httperr.Wrap(httperr.CodeInternal, "could not update invite", err)
}
