package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	"go.uber.org/zap"
)

// Store is the relational boundary for organizations, memberships and invites.
// Memberships are keyed by (organization, user); at most one row exists per pair.
type Store interface {
	Close(ctx context.Context) error
	Health(ctx context.Context) error

	// Organizations. CreateOrganization inserts the organization together with
	// its first owner membership.
	CreateOrganization(ctx context.Context, org types.Organization, owner types.Membership) error
	GetOrganization(ctx context.Context, id string) (types.Organization, error)
	ListOrganizationsForUser(ctx context.Context, userID string) ([]types.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error

	// Memberships
	GetMembership(ctx context.Context, orgID, userID string) (types.Membership, error)
	ListMemberships(ctx context.Context, orgID string) ([]types.Membership, error)
	CreateMembership(ctx context.Context, m types.Membership) error
	UpdateMembershipRole(ctx context.Context, orgID, userID string, role types.Role) (types.Membership, error)
	DeleteMembership(ctx context.Context, orgID, userID string) error
	CountOwners(ctx context.Context, orgID string) (int, error)

	// Invites
	CreateInvite(ctx context.Context, inv types.Invite) error
	GetInvite(ctx context.Context, orgID, id string) (types.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (types.Invite, error)
	// ListInvites filters by status when status is non-empty.
	ListInvites(ctx context.Context, orgID string, status types.InviteStatus) ([]types.Invite, error)
	// TransitionInvite moves an invite out of from into to. It returns
	// ErrConflict when the invite is no longer in from.
	TransitionInvite(ctx context.Context, id string, from, to types.InviteStatus, actor string, at time.Time) (types.Invite, error)
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Open picks the backend from dsn. An empty dsn selects the in-memory store.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		logging.L.Info("store_backend", zap.String("backend", "memory"))
		return NewMemory(), nil
	}
	st, err := NewPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	logging.L.Info("store_backend", zap.String("backend", "postgres"))
	return st, nil
}

// Helper to stamp time fields for idempotent creates
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
