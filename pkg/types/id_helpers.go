package types

import (
	"strings"

	"github.com/google/uuid"
)

// ID is the identifier type used for organizations, users and invites.
type ID = uuid.UUID

// NewID creates a new UUIDv4.
func NewID() ID { return uuid.New() }

// NewToken returns an opaque single-use token for invites.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
