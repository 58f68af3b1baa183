// Package lock implements storax's keyed mutual exclusion (spec §4.2):
// per-path-derived-key mutexes with an acquisition timeout, whose entry is
// dropped once nobody holds it so the map stays bounded.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/babarot/storax/internal/core/types"
)

// entry is one keyed mutex plus a reference count of waiters/holders so
// Manager knows when it is safe to evict the map entry.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Manager hands out keyed locks with a timeout. It is the system's only
// liveness guarantee against deadlock from a rogue caller (§5).
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// New creates a Manager whose Acquire calls fail with ErrLockTimeout after
// timeout has elapsed without the key becoming free.
func New(timeout time.Duration) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Release is returned by Acquire; calling it unlocks the key and, if no
// other goroutine is waiting on or holding it, drops the map entry.
type Release func()

// Acquire locks key, blocking until it is free or ctx/the manager's
// configured timeout expires, whichever comes first. The returned Release
// must be called exactly once to unlock.
func (m *Manager) Acquire(ctx context.Context, key string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	e := m.ref(key)

	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		slog.Debug("lock acquired", "key", key)
		return func() {
			e.mu.Unlock()
			m.unref(key, e)
		}, nil
	case <-ctx.Done():
		// The goroutine above may still be blocked waiting for e.mu; once it
		// does acquire it, release it immediately since nobody is waiting
		// here to use it. unref still runs first so refs stay balanced for
		// the failed acquisition attempt itself.
		m.unref(key, e)
		go func() {
			<-locked
			e.mu.Unlock()
		}()
		return nil, fmt.Errorf("acquire lock %q: %w", key, types.ErrLockTimeout)
	}
}

// ref increments the waiter/holder count for key, creating the entry if
// this is the first reference.
func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

// unref decrements the waiter/holder count for key and, when it reaches
// zero, drops the map entry so memory stays bounded by concurrent
// operations in flight rather than by history.
func (m *Manager) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len reports the number of keys currently tracked; exposed for tests.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Key derives a canonical lock key from an operation name and its target
// location(s), matching the `"op::target"` scheme used throughout §4.8-4.12.
func Key(op string, locations ...string) string {
	key := op
	for _, l := range locations {
		key += "::" + l
	}
	return key
}
