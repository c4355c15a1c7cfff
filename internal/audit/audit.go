// Package audit records security-relevant request failures (access denials,
// permission failures, rate limiting) for later review.
package audit

import (
	"context"
	"sync"
	"time"
)

// Actor identifies who issued a request once the organization scope is known.
type Actor struct {
	UserID         string
	OrganizationID string
}

type actorKey struct{}

// WithActor attaches the acting user and organization to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored in ctx, if any.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}

// Event is a single security-relevant failure.
type Event struct {
	Code           string    `json:"code"`
	Status         int       `json:"status"`
	Message        string    `json:"message"`
	UserID         string    `json:"userId,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Method         string    `json:"method,omitempty"`
	Path           string    `json:"path,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sink stores events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	// Recent returns up to limit events for an organization, newest first.
	Recent(ctx context.Context, organizationID string, limit int) ([]Event, error)
}

// DefaultRetention is how many events a sink keeps per organization.
const DefaultRetention = 500

// Memory keeps a bounded, non-durable event log per organization.
type Memory struct {
	mu     sync.Mutex
	max    int
	events map[string][]Event
}

func NewMemory(max int) *Memory {
	if max <= 0 {
		max = DefaultRetention
	}
	return &Memory{max: max, events: map[string][]Event{}}
}

func (m *Memory) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.events[ev.OrganizationID], ev)
	if len(list) > m.max {
		list = list[len(list)-m.max:]
	}
	m.events[ev.OrganizationID] = list
	return nil
}

func (m *Memory) Recent(_ context.Context, organizationID string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.events[organizationID]
	out := make([]Event, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, list[i])
	}
	return out, nil
}
