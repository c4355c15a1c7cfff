package types

import "time"

// Role is a member's role inside an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Organization is a tenant of the dashboard. Each organization maps to exactly
// one Kubernetes namespace, fixed when the organization is created.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug,omitempty"`
	Namespace string    `json:"namespace"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership links a user to an organization with a single role.
type Membership struct {
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// InviteStatus tracks the single-use lifecycle of an invite.
type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteCancelled InviteStatus = "cancelled"
)

// Invite offers an email address a role in an organization until ExpiresAt.
type Invite struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	Email          string       `json:"email"`
	Role           Role         `json:"role"`
	Token          string       `json:"-"`
	Status         InviteStatus `json:"status"`
	InvitedBy      string       `json:"invitedBy"`
	AcceptedBy     string       `json:"acceptedBy,omitempty"`
	ExpiresAt      time.Time    `json:"expiresAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Expired reports whether the invite can no longer be accepted at now.
func (i *Invite) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
