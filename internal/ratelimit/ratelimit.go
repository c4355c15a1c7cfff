// Package ratelimit counts consecutive authorization failures per user and
// organization. Counters are a speed bump, not a security boundary: the memory
// backend resets on restart and callers fail open when the backend errors.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultThreshold = 10
	DefaultWindow    = 15 * time.Minute
	// sweepAt bounds the memory backend; expired entries are dropped once the
	// map grows past it.
	sweepAt = 10000
)

// Key identifies one counter.
type Key struct {
	UserID         string
	OrganizationID string
}

// FailureCounter tracks consecutive authorization failures.
type FailureCounter interface {
	// Blocked reports whether key has reached the threshold inside the window.
	Blocked(ctx context.Context, key Key) (bool, error)
	// RecordFailure increments the counter and returns the new count.
	RecordFailure(ctx context.Context, key Key) (int, error)
	// Reset clears the counter after a successful authorization.
	Reset(ctx context.Context, key Key) error
}

type entry struct {
	count   int
	expires time.Time
}

// Memory is the in-process FailureCounter.
type Memory struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	now       func() time.Time
	entries   map[Key]entry
}

func NewMemory(threshold int, window time.Duration) *Memory {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Memory{threshold: threshold, window: window, now: time.Now, entries: map[Key]entry{}}
}

func (m *Memory) Blocked(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return false, nil
	}
	return e.count >= m.threshold, nil
}

func (m *Memory) RecordFailure(_ context.Context, key Key) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		e = entry{expires: now.Add(m.window)}
	}
	e.count++
	m.entries[key] = e
	if len(m.entries) > sweepAt {
		for k, v := range m.entries {
			if !now.Before(v.expires) {
				delete(m.entries, k)
			}
		}
	}
	return e.count, nil
}

func (m *Memory) Reset(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
