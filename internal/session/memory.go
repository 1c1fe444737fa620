package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trajet/trajet/internal/planner"
)

type memoryEntry struct {
	state     planner.State
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Sessions expire after TTL without
// access; expired entries are removed lazily and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a memory store. A zero ttl means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// Create starts a new session.
func (m *MemoryStore) Create(_ context.Context) (string, *planner.State, error) {
	id := uuid.NewString()
	st := planner.New()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &memoryEntry{state: st, expiresAt: m.now().Add(m.ttl)}

	out := st.Clone()
	return id, &out, nil
}

// Get returns a copy of the session state and extends its lifetime.
func (m *MemoryStore) Get(_ context.Context, id string) (*planner.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.live(id)
	if err != nil {
		return nil, err
	}
	e.expiresAt = m.now().Add(m.ttl)

	out := e.state.Clone()
	return &out, nil
}

// Update applies fn under the store lock.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*planner.State) error) (*planner.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.live(id)
	if err != nil {
		return nil, err
	}

	next := e.state.Clone()
	if err := fn(&next); err != nil {
		return nil, err
	}
	e.state = next
	e.expiresAt = m.now().Add(m.ttl)

	out := next.Clone()
	return &out, nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// live returns the entry for id, dropping it if expired. Callers hold m.mu.
func (m *MemoryStore) live(id string) (*memoryEntry, error) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return e, nil
}
