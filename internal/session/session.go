// Package session tracks who is signed in and scopes per-session state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// User is an authenticated identity.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Provider reports the signed-in user and announces changes. A nil user
// means signed out.
type Provider interface {
	Current() *User
	Subscribe(fn func(*User)) (unsubscribe func())
}

// Session is one signed-in stretch for one user. One-time rewards are
// claimed against its ID.
type Session struct {
	ID        string
	User      User
	StartedAt time.Time
}

// New starts a session for u.
func New(u User, now time.Time) Session {
	return Session{ID: uuid.NewString(), User: u, StartedAt: now}
}

// Static is a Provider whose user is set in-process, by the CLI flag or the
// sensor bridge's sign-in message.
type Static struct {
	mu   sync.Mutex
	user *User
	subs map[int]func(*User)
	next int
}

// NewStatic creates a provider signed in as u, or signed out if u is nil.
func NewStatic(u *User) *Static {
	s := &Static{subs: make(map[int]func(*User))}
	if u != nil {
		cp := *u
		s.user = &cp
	}
	return s
}

// Current returns a copy of the signed-in user.
func (s *Static) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// Subscribe registers fn for sign-in changes.
func (s *Static) Subscribe(fn func(*User)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SignIn switches to u and notifies subscribers.
func (s *Static) SignIn(u User) {
	s.set(&u)
}

// SignOut clears the user and notifies subscribers.
func (s *Static) SignOut() {
	s.set(nil)
}

func (s *Static) set(u *User) {
	s.mu.Lock()
	if u == nil && s.user == nil {
		s.mu.Unlock()
		return
	}
	if u != nil && s.user != nil && *u == *s.user {
		s.mu.Unlock()
		return
	}
	s.user = u
	subs := make([]func(*User), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}
