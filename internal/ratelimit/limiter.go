// Package ratelimit gates how many emails an event may send per window.
//
// The limiter is an explicit dependency injected into the delivery service,
// never a package-level global: tests construct isolated instances and a
// multi-instance deployment swaps in the Redis-backed implementation. The
// in-memory limiter is process-local and therefore advisory — with several
// replicas it under-counts global throughput.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultLimit is the per-event send allowance per window.
const DefaultLimit = 100

// Window is the fixed counting window.
const Window = time.Hour

// Limiter answers whether one more send is allowed for a scope. Allow is
// check-and-increment: a true return has already consumed one slot. It is
// called once per attempted send, not per transport-level retry.
type Limiter interface {
	Allow(ctx context.Context, scopeID string, limit int) (bool, error)
	// Remaining reports how many sends are left in the current window.
	Remaining(ctx context.Context, scopeID string, limit int) (int, error)
}

type window struct {
	start time.Time
	count int
}

// Memory is a process-local sliding-window limiter. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemory creates an in-memory limiter.
func NewMemory() *Memory {
	return &Memory{windows: make(map[string]*window), now: time.Now}
}

// NewMemoryWithClock creates an in-memory limiter with an injected clock
// for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{windows: make(map[string]*window), now: now}
}

// Allow consumes one slot for the scope if the window has room.
func (m *Memory) Allow(_ context.Context, scopeID string, limit int) (bool, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.current(scopeID)
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Remaining reports unused slots in the current window.
func (m *Memory) Remaining(_ context.Context, scopeID string, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.current(scopeID)
	left := limit - w.count
	if left < 0 {
		left = 0
	}
	return left, nil
}

// current returns the live window for a scope, resetting it if expired.
// Caller holds the lock.
func (m *Memory) current(scopeID string) *window {
	now := m.now()
	w, ok := m.windows[scopeID]
	if !ok || now.Sub(w.start) >= Window {
		w = &window{start: now}
		m.windows[scopeID] = w
	}
	return w
}
