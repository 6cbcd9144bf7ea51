package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicateSession = errors.New("session id already registered")
	ErrSessionNotFound  = errors.New("session not found")
)

// Registry owns the table of live sessions. It is the only structure in
// the live pipeline mutated by more than one goroutine, so insert and
// remove are mutex-guarded. It says nothing about the state inside a
// Session record; that belongs to the session's worker.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newID    func() string
}

// NewRegistry creates an empty registry backed by uuid generation.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		newID:    uuid.NewString,
	}
}

// Register creates a session record. An empty id asks the registry to
// generate one; a caller-supplied id that is already live fails with
// ErrDuplicateSession.
func (r *Registry) Register(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = r.newID()
	}
	if _, ok := r.sessions[id]; ok {
		return nil, ErrDuplicateSession
	}

	s := &Session{
		id:        id,
		state:     StateConnecting,
		createdAt: time.Now().UTC(),
	}
	r.sessions[id] = s
	return s, nil
}

// Lookup returns the live session for id.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Release drops the session record and its buffers. It is idempotent:
// releasing an unknown or already-released id is a no-op.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.state = StateDisconnected
	s.audio = nil
	delete(r.sessions, id)
}

// Len reports how many sessions are currently connected.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
