package detection

import (
	"errors"
	"sync"
	"time"
)

var ErrTooManySessions = errors.New("session limit reached")

// Session tracks one connected edge client.
type Session struct {
	ClientID    string    `json:"client_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Frames      int64     `json:"frames"`
}

// Registry holds the live detection sessions and enforces the
// connection ceiling.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
}

func NewRegistry(maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = 100
	}
	return &Registry{
		sessions: make(map[string]*Session),
		max:      maxSessions,
	}
}

// Register admits a client. A reconnecting client id replaces its old
// session rather than counting twice.
func (r *Registry) Register(clientID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[clientID]; !ok && len(r.sessions) >= r.max {
		return nil, ErrTooManySessions
	}
	s := &Session{ClientID: clientID, ConnectedAt: time.Now().UTC()}
	r.sessions[clientID] = s
	return s, nil
}

func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	delete(r.sessions, clientID)
	r.mu.Unlock()
}

func (r *Registry) CountFrame(clientID string) {
	r.mu.Lock()
	if s, ok := r.sessions[clientID]; ok {
		s.Frames++
	}
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot copies the current session table for status reporting.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}
