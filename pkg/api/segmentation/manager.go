package segmentation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"segmentation/pkg/core/segment"

	"github.com/google/uuid"
)

// Session owns one engine. The engine is single-threaded, so every access
// goes through Do.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	engine    *segment.Engine
	updatedAt time.Time
}

// Do runs fn with exclusive access to the session's engine.
func (s *Session) Do(fn func(e *segment.Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.engine)
	s.updatedAt = time.Now()
}

// UpdatedAt returns the time of the last operation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SessionManager keeps the engines of all connected clients.
type SessionManager struct {
	sessions map[string]*Session
	opts     segment.Options
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewSessionManager creates a manager whose sessions use opts and expire
// after ttl of inactivity.
func NewSessionManager(opts segment.Options, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		opts:     opts,
		ttl:      ttl,
	}
}

// Create starts a session with a fresh engine.
func (m *SessionManager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		engine:    segment.New(m.opts),
		updatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	sessionsActive.Set(float64(n))
	return s
}

// Get retrieves a session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete drops a session. It reports whether it existed.
func (m *SessionManager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	sessionsActive.Set(float64(n))
	return ok
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes sessions idle since before now-ttl and returns how many
// were removed. Idle checks run outside the manager lock so a session busy
// in Do only delays its own check.
func (m *SessionManager) Cleanup(now time.Time) int {
	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	var expired []*Session
	for _, s := range candidates {
		if now.Sub(s.UpdatedAt()) > m.ttl {
			expired = append(expired, s)
		}
	}

	m.mu.Lock()
	removed := 0
	for _, s := range expired {
		if _, ok := m.sessions[s.ID]; ok {
			delete(m.sessions, s.ID)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	sessionsActive.Set(float64(n))
	return removed
}

// StartCleanup evicts idle sessions every interval until ctx is done.
func (m *SessionManager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := m.Cleanup(now); n > 0 {
					fmt.Printf("[API] Evicted %d idle sessions\n", n)
				}
			}
		}
	}()
}
