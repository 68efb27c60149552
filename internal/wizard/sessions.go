package wizard

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Sessions holds wizard states by ID. It is safe for concurrent use.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]State
}

// NewSessions creates an empty store.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]State)}
}

// Create starts a new session in the configure phase.
func (s *Sessions) Create() State {
	st := New(uuid.NewString(), time.Now())
	s.mu.Lock()
	s.sessions[st.ID] = st
	s.mu.Unlock()
	return st
}

// Get returns a copy of the session state.
func (s *Sessions) Get(id string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	return st.clone(), nil
}

// Put stores st, replacing any state with the same ID.
func (s *Sessions) Put(st State) {
	s.mu.Lock()
	s.sessions[st.ID] = st.clone()
	s.mu.Unlock()
}

// Update applies fn to the stored state and stores the result. The state
// is left unchanged when fn fails.
func (s *Sessions) Update(id string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	next, err := fn(st.clone())
	if err != nil {
		return st.clone(), err
	}
	s.sessions[id] = next
	return next.clone(), nil
}

// List returns every session, most recently updated first.
func (s *Sessions) List() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, st.clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Count returns how many sessions are in phase p.
func (s *Sessions) Count(p Phase) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.sessions {
		if st.Phase == p {
			n++
		}
	}
	return n
}

// Len returns the number of sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
