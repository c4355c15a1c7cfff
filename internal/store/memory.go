package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/language-operator/language-operator-dashboard-sub001/pkg/types"
)

type memberKey struct {
	org  string
	user string
}

// Memory is a non-durable Store used for development and tests.
type Memory struct {
	mu      sync.RWMutex
	orgs    map[string]types.Organization
	members map[memberKey]types.Membership
	invites map[string]types.Invite
	tokens  map[string]string // token -> invite id
}

func NewMemory() *Memory {
	return &Memory{
		orgs:    map[string]types.Organization{},
		members: map[memberKey]types.Membership{},
		invites: map[string]types.Invite{},
		tokens:  map[string]string{},
	}
}

func (m *Memory) Close(ctx context.Context) error  { return nil }
func (m *Memory) Health(ctx context.Context) error { return nil }

func (m *Memory) CreateOrganization(ctx context.Context, org types.Organization, owner types.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.ID]; ok {
		return ErrConflict
	}
	for _, o := range m.orgs {
		if org.Slug != "" && o.Slug == org.Slug {
			return ErrConflict
		}
		if o.Namespace == org.Namespace {
			return ErrConflict
		}
	}
	org.CreatedAt = stamp(org.CreatedAt)
	org.UpdatedAt = stamp(org.UpdatedAt)
	m.orgs[org.ID] = org
	owner.OrganizationID = org.ID
	owner.Role = types.RoleOwner
	owner.CreatedAt = stamp(owner.CreatedAt)
	owner.UpdatedAt = stamp(owner.UpdatedAt)
	m.members[memberKey{org.ID, owner.UserID}] = owner
	return nil
}

func (m *Memory) GetOrganization(ctx context.Context, id string) (types.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return types.Organization{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) ListOrganizationsForUser(ctx context.Context, userID string) ([]types.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Organization{}
	for k := range m.members {
		if k.user != userID {
			continue
		}
		if o, ok := m.orgs[k.org]; ok {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteOrganization(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(m.orgs, id)
	for k := range m.members {
		if k.org == id {
			delete(m.members, k)
		}
	}
	for invID, inv := range m.invites {
		if inv.OrganizationID == id {
			delete(m.tokens, inv.Token)
			delete(m.invites, invID)
		}
	}
	return nil
}

func (m *Memory) GetMembership(ctx context.Context, orgID, userID string) (types.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[memberKey{orgID, userID}]
	if !ok {
		return types.Membership{}, ErrNotFound
	}
	return mem, nil
}

func (m *Memory) ListMemberships(ctx context.Context, orgID string) ([]types.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Membership{}
	for k, mem := range m.members {
		if k.org == orgID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateMembership(ctx context.Context, mem types.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[mem.OrganizationID]; !ok {
		return ErrNotFound
	}
	k := memberKey{mem.OrganizationID, mem.UserID}
	if _, ok := m.members[k]; ok {
		return ErrConflict
	}
	mem.CreatedAt = stamp(mem.CreatedAt)
	mem.UpdatedAt = stamp(mem.UpdatedAt)
	m.members[k] = mem
	return nil
}

func (m *Memory) UpdateMembershipRole(ctx context.Context, orgID, userID string, role types.Role) (types.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{orgID, userID}
	mem, ok := m.members[k]
	if !ok {
		return types.Membership{}, ErrNotFound
	}
	mem.Role = role
	mem.UpdatedAt = time.Now().UTC()
	m.members[k] = mem
	return mem, nil
}

func (m *Memory) DeleteMembership(ctx context.Context, orgID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{orgID, userID}
	if _, ok := m.members[k]; !ok {
		return ErrNotFound
	}
	delete(m.members, k)
	return nil
}

func (m *Memory) CountOwners(ctx context.Context, orgID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k, mem := range m.members {
		if k.org == orgID && mem.Role == types.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateInvite(ctx context.Context, inv types.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[inv.OrganizationID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.invites[inv.ID]; ok {
		return ErrConflict
	}
	if _, ok := m.tokens[inv.Token]; ok {
		return ErrConflict
	}
	inv.CreatedAt = stamp(inv.CreatedAt)
	inv.UpdatedAt = stamp(inv.UpdatedAt)
	m.invites[inv.ID] = inv
	m.tokens[inv.Token] = inv.ID
	return nil
}

func (m *Memory) GetInvite(ctx context.Context, orgID, id string) (types.Invite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invites[id]
	if !ok || inv.OrganizationID != orgID {
		return types.Invite{}, ErrNotFound
	}
	return inv, nil
}

func (m *Memory) GetInviteByToken(ctx context.Context, token string) (types.Invite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return types.Invite{}, ErrNotFound
	}
	return m.invites[id], nil
}

func (m *Memory) ListInvites(ctx context.Context, orgID string, status types.InviteStatus) ([]types.Invite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Invite{}
	for _, inv := range m.invites {
		if inv.OrganizationID != orgID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) TransitionInvite(ctx context.Context, id string, from, to types.InviteStatus, actor string, at time.Time) (types.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return types.Invite{}, ErrNotFound
	}
	if inv.Status != from {
		return types.Invite{}, ErrConflict
	}
	inv.Status = to
	inv.UpdatedAt = stamp(at)
	switch to {
	case types.InviteAccepted:
		inv.AcceptedBy = actor
	case types.InvitePending:
		inv.AcceptedBy = ""
	}
	m.invites[id] = inv
	return inv, nil
}
