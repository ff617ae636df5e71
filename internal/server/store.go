package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/session"
)

// Entry is one stored session plus the channel its upload outcomes land on.
type Entry struct {
	ID      string
	Created time.Time
	Session *session.Session
	notices chan model.Notice
}

// Notify implements loader.Notifier. Only the latest outcome is kept.
func (e *Entry) Notify(n model.Notice) {
	select {
	case e.notices <- n:
	default:
		select {
		case <-e.notices:
		default:
		}
		select {
		case e.notices <- n:
		default:
		}
	}
}

// OnLoading implements loader.Notifier.
func (e *Entry) OnLoading(bool) {}

// drain discards an outcome left over from an abandoned request.
func (e *Entry) drain() {
	select {
	case <-e.notices:
	default:
	}
}

// SessionStore holds the live sessions of a server.
type SessionStore struct {
	sessions map[string]*Entry
	mu       sync.RWMutex
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Entry),
	}
}

// Create starts a session under a fresh id.
func (s *SessionStore) Create(opts ...session.Option) *Entry {
	e := &Entry{
		ID:      uuid.NewString(),
		Created: time.Now(),
		notices: make(chan model.Notice, 1),
	}
	opts = append(opts, session.WithNotifier(e))
	e.Session = session.New(opts...)

	s.mu.Lock()
	s.sessions[e.ID] = e
	s.mu.Unlock()
	return e
}

func (s *SessionStore) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, exists := s.sessions[id]
	return e, exists
}

// GetAll returns the sessions oldest first.
func (s *SessionStore) GetAll() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Delete removes and closes a session. It reports whether the id existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	e, exists := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if exists {
		e.Session.Close()
	}
	return exists
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseAll closes and forgets every session.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Entry)
	s.mu.Unlock()

	for _, e := range all {
		e.Session.Close()
	}
}
