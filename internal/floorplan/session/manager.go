package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Session Manager
// ============================================================

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Manager holds the open sessions. Sessions not touched for ttl are
// evicted by Sweep; a zero ttl keeps them until closed.
type Manager struct {
	mu       sync.Mutex
	deps     Deps
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func NewManager(deps Deps, ttl time.Duration) *Manager {
	return &Manager{
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create opens a new session and registers it under a fresh id.
func (m *Manager) Create(ctx context.Context, fragment string) (*Session, error) {
	s, err := Open(ctx, uuid.NewString(), m.deps, fragment)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{session: s, lastUsed: m.now()}
	return s, nil
}

// Get returns a session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()
	return e.session, true
}

// Close forgets a session. Reports whether it existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops every session idle for longer than the ttl and returns how
// many went.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	evicted := 0
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && m.deps.Logger != nil {
				m.deps.Logger.Info("evicted idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}
