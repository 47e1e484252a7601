package usecase

import (
	"sync"
	"time"

	"FinFuse/internal/domain/models"

	"github.com/google/uuid"
)

// Session holds the turn history of one conversation. Turns within a
// session are serialized by mu; sessions are independent and safe to use
// concurrently.
type Session struct {
	ID       string
	Created  time.Time
	LastUsed time.Time
	Turns    []models.Turn

	mu sync.Mutex
}

// SessionManager tracks live sessions by id. Sessions idle past idleAfter
// are evicted lazily on the next lookup to bound memory; an evicted id
// simply starts a fresh session.
type SessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	idleAfter time.Duration
	lastSweep time.Time
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		idleAfter: time.Hour,
	}
}

// GetOrCreate returns the session with the given id, minting a new one
// when id is empty or unknown.
func (m *SessionManager) GetOrCreate(id string) *Session {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.LastUsed = now
			return s
		}
	} else {
		id = uuid.NewString()
	}
	s := &Session{ID: id, Created: now, LastUsed: now}
	m.sessions[id] = s
	return s
}

// sweep drops idle sessions. Caller holds m.mu. LastUsed is touched at
// turn start, so only sessions quiet for a full idleAfter go.
func (m *SessionManager) sweep(now time.Time) {
	if now.Sub(m.lastSweep) <= m.idleAfter {
		return
	}
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed) > m.idleAfter {
			delete(m.sessions, id)
		}
	}
	m.lastSweep = now
}

// Get returns the session or nil.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// History returns a copy of the session's turns, oldest first.
func (m *SessionManager) History(id string) []models.Turn {
	s := m.Get(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// Drop removes a session.
func (m *SessionManager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
