// ABOUTME: Process-wide registry of active sessions keyed by session id.
// ABOUTME: Single mutex guards all access; safe from the read loops and worker goroutines alike.

package session

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrSessionNotFound indicates the session does not exist or has already
// disconnected.
var ErrSessionNotFound = errors.New("session not found")

// Registry maps session ids to live sessions. Most traffic is
// connect/disconnect from the websocket handlers, but worker goroutines
// running long handler logic look sessions up concurrently, so every
// operation takes the mutex.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "registry"),
	}
}

// Accept wraps an accepted connection in a new Session and registers it.
func (r *Registry) Accept(conn Conn) *Session {
	s := New(conn, r.logger)
	s.Accept()

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session registered", "session_id", s.ID, "online", count)
	return s
}

// Disconnect removes a session. Safe to call if already removed.
func (r *Registry) Disconnect(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID)
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session removed", "session_id", s.ID, "online", count)
}

// Get looks up a session by id. Returns ErrSessionNotFound if absent.
// This is the lookup worker goroutines use.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Snapshot returns a point-in-time copy of the session table. Callers may
// iterate and perform I/O without holding the registry mutex.
func (r *Registry) Snapshot() map[string]*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s
	}
	return out
}

// OnlineCount returns the number of active sessions.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
