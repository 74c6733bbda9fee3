package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cpandares/random-places/internal/domain"
)

// SessionManager owns the live sessions of the daemon. Sessions share the
// collaborators in Deps but no state.
type SessionManager struct {
	deps  Deps
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(deps Deps) *SessionManager {
	return &SessionManager{
		deps:     deps,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*Session),
	}
}

// Create opens a session and loads its first candidate list. Empty keys use
// the defaults.
func (m *SessionManager) Create(ctx context.Context, region, category string) (*Session, error) {
	if region == "" {
		region = DefaultRegion
	}
	if category == "" {
		category = DefaultCategory
	}
	if _, err := m.deps.Catalog.Region(region); err != nil {
		return nil, err
	}
	if _, err := m.deps.Catalog.Category(category); err != nil {
		return nil, err
	}

	s := NewSession(m.newID(), m.deps)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if err := s.Select(ctx, region, category); err != nil {
		m.Close(s.ID())
		return nil, fmt.Errorf("select: %w", err)
	}
	return s, nil
}

// Get looks a session up and marks it as in use.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Close tears down one session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Close()
	return nil
}

// CloseAll tears down every session, e.g. on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunReaper closes sessions left idle for ttl, checking every ttl/2. It
// returns when ctx is done. A non-positive ttl disables reaping.
func (m *SessionManager) RunReaper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := m.deps.Clock.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := m.ReapIdle(ttl); n > 0 {
				m.logger().InfoContext(ctx, "reaped idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}

// ReapIdle closes every session idle for at least ttl and reports how many
// were closed.
func (m *SessionManager) ReapIdle(ttl time.Duration) int {
	now := m.deps.Clock.Now()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if since, ok := s.IdleSince(); ok && now.Sub(since) >= ttl {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

func (m *SessionManager) logger() *slog.Logger {
	if m.deps.Logger != nil {
		return m.deps.Logger
	}
	return slog.Default()
}
