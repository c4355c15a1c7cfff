package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/logging"
	"github.com/language-operator/language-operator-dashboard-sub001/internal/util"
	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
	"go.uber.org/zap"
)

// Postgres is a Store backed by PostgreSQL through the pgx database/sql driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens dsn, waits for the database to answer, and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	err = util.Retry(30*time.Second, func() (bool, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logging.L.Warn("postgres_not_ready", zap.Error(err))
			return ctx.Err() == nil, err
		}
		return false, nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	st := &Postgres{db: db}
	if err := st.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (p *Postgres) init(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (id TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return err
	}
	for _, m := range migrations {
		applied, err := p.isApplied(ctx, m.ID)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := p.applyMigration(ctx, m); err != nil {
			return err
		}
		logging.L.Info("migration_applied", zap.String("id", m.ID))
	}
	return nil
}

func (p *Postgres) Close(ctx context.Context) error {
	return p.db.Close()
}

func (p *Postgres) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func handleSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func (p *Postgres) CreateOrganization(ctx context.Context, org types.Organization, owner types.Membership) error {
	org.CreatedAt = stamp(org.CreatedAt)
	org.UpdatedAt = stamp(org.UpdatedAt)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, namespace, plan, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, org.ID, org.Name, org.Slug, org.Namespace, org.Plan, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return handleSQLError(err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memberships (organization_id, user_id, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, org.ID, owner.UserID, owner.Email, string(types.RoleOwner), org.CreatedAt)
	if err != nil {
		return handleSQLError(err)
	}
	return tx.Commit()
}

const orgColumns = `id, name, COALESCE(slug, ''), namespace, plan, created_at, updated_at`

func scanOrg(row interface{ Scan(...any) error }) (types.Organization, error) {
	var o types.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Namespace, &o.Plan, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (p *Postgres) GetOrganization(ctx context.Context, id string) (types.Organization, error) {
	o, err := scanOrg(p.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id=$1`, id))
	if err != nil {
		return types.Organization{}, handleSQLError(err)
	}
	return o, nil
}

func (p *Postgres) ListOrganizationsForUser(ctx context.Context, userID string) ([]types.Organization, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT o.id, o.name, COALESCE(o.slug, ''), o.namespace, o.plan, o.created_at, o.updated_at
		FROM organizations o JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id=$1 ORDER BY o.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteOrganization(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM organizations WHERE id=$1`, id)
	if err != nil {
		return handleSQLError(err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

const memberColumns = `organization_id, user_id, email, role, created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }) (types.Membership, error) {
	var m types.Membership
	var role string
	err := row.Scan(&m.OrganizationID, &m.UserID, &m.Email, &role, &m.CreatedAt, &m.UpdatedAt)
	m.Role = types.Role(role)
	return m, err
}

func (p *Postgres) GetMembership(ctx context.Context, orgID, userID string) (types.Membership, error) {
	m, err := scanMember(p.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM memberships WHERE organization_id=$1 AND user_id=$2`, orgID, userID))
	if err != nil {
		return types.Membership{}, handleSQLError(err)
	}
	return m, nil
}

func (p *Postgres) ListMemberships(ctx context.Context, orgID string) ([]types.Membership, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM memberships WHERE organization_id=$1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.Membership{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateMembership(ctx context.Context, m types.Membership) error {
	m.CreatedAt = stamp(m.CreatedAt)
	m.UpdatedAt = stamp(m.UpdatedAt)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO memberships (organization_id, user_id, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.OrganizationID, m.UserID, m.Email, string(m.Role), m.CreatedAt, m.UpdatedAt)
	return handleSQLError(err)
}

func (p *Postgres) UpdateMembershipRole(ctx context.Context, orgID, userID string, role types.Role) (types.Membership, error) {
	m, err := scanMember(p.db.QueryRowContext(ctx, `
		UPDATE memberships SET role=$3, updated_at=$4
		WHERE organization_id=$1 AND user_id=$2
		RETURNING `+memberColumns, orgID, userID, string(role), time.Now().UTC()))
	if err != nil {
		return types.Membership{}, handleSQLError(err)
	}
	return m, nil
}

func (p *Postgres) DeleteMembership(ctx context.Context, orgID, userID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM memberships WHERE organization_id=$1 AND user_id=$2`, orgID, userID)
	if err != nil {
		return handleSQLError(err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CountOwners(ctx context.Context, orgID string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM memberships WHERE organization_id=$1 AND role=$2`, orgID, string(types.RoleOwner)).Scan(&n)
	return n, err
}

const inviteColumns = `id, organization_id, email, role, token, status, invited_by, COALESCE(accepted_by, ''), expires_at, created_at, updated_at`

func scanInvite(row interface{ Scan(...any) error }) (types.Invite, error) {
	var inv types.Invite
	var role, status string
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &role, &inv.Token, &status,
		&inv.InvitedBy, &inv.AcceptedBy, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Role = types.Role(role)
	inv.Status = types.InviteStatus(status)
	return inv, err
}

func (p *Postgres) CreateInvite(ctx context.Context, inv types.Invite) error {
	inv.CreatedAt = stamp(inv.CreatedAt)
	inv.UpdatedAt = stamp(inv.UpdatedAt)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invites (id, organization_id, email, role, token, status, invited_by, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, inv.ID, inv.OrganizationID, inv.Email, string(inv.Role), inv.Token, string(inv.Status),
		inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	return handleSQLError(err)
}

func (p *Postgres) GetInvite(ctx context.Context, orgID, id string) (types.Invite, error) {
	inv, err := scanInvite(p.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE organization_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		return types.Invite{}, handleSQLError(err)
	}
	return inv, nil
}

func (p *Postgres) GetInviteByToken(ctx context.Context, token string) (types.Invite, error) {
	inv, err := scanInvite(p.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token=$1`, token))
	if err != nil {
		return types.Invite{}, handleSQLError(err)
	}
	return inv, nil
}

func (p *Postgres) ListInvites(ctx context.Context, orgID string, status types.InviteStatus) ([]types.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE organization_id=$1`
	args := []any{orgID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	rows, err := p.db.QueryContext(ctx, query+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *Postgres) TransitionInvite(ctx context.Context, id string, from, to types.InviteStatus, actor string, at time.Time) (types.Invite, error) {
	var acceptedBy any
	if to == types.InviteAccepted {
		acceptedBy = actor
	}
	inv, err := scanInvite(p.db.QueryRowContext(ctx, `
		UPDATE invites SET status=$3,
			accepted_by=CASE WHEN $3='pending' THEN NULL ELSE COALESCE($4, accepted_by) END, updated_at=$5
		WHERE id=$1 AND status=$2
		RETURNING `+inviteColumns, id, string(from), string(to), acceptedBy, stamp(at)))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Invite{}, handleSQLError(err)
	}
	// Distinguish a missing invite from one that already left the from state.
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM invites WHERE id=$1)`, id).Scan(&exists); err != nil {
		return types.Invite{}, err
	}
	if exists {
		return types.Invite{}, ErrConflict
	}
	return types.Invite{}, ErrNotFound
}

type migration struct {
	ID  string
	SQL string
}

var migrations = []migration{
	{
		ID: "0001_init",
		SQL: `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT UNIQUE,
	namespace TEXT NOT NULL,
	plan TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS memberships (
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL CHECK (role IN ('owner','admin','editor','viewer')),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (organization_id, user_id)
);
CREATE INDEX IF NOT EXISTS memberships_user_idx ON memberships(user_id);
CREATE TABLE IF NOT EXISTS invites (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin','editor','viewer')),
	token TEXT UNIQUE NOT NULL,
	status TEXT NOT NULL,
	invited_by TEXT NOT NULL,
	accepted_by TEXT,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS invites_org_idx ON invites(organization_id, status);
`,
	},
	{
		ID:  "0002_organizations_namespace_unique",
		SQL: `CREATE UNIQUE INDEX IF NOT EXISTS organizations_namespace_key ON organizations(namespace);`,
	},
}

func (p *Postgres) isApplied(ctx context.Context, id string) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE id=$1`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Postgres) applyMigration(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES ($1, $2)`, m.ID, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m.ID, err)
	}
	return tx.Commit()
}
