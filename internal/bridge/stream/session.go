package stream

import (
	"sync"
	"time"

	"github.com/mcpbridge/mcpbridge/pkg/idx"
)

// sessionBuffer bounds how many undelivered events a session may queue
// before broadcasts start treating it as dead.
const sessionBuffer = 16

// Principal identifies the authenticated caller behind a session.
type Principal struct {
	ClientID     string `json:"client_id"`
	TokenType    string `json:"token_type"`
	AuthProvider string `json:"auth_provider,omitempty"`
}

// Session is one live streaming connection. Authentication state is decided
// exactly once, at accept time; there is no mid-session upgrade.
type Session struct {
	ID            string
	Authenticated bool
	Principal     Principal
	AuthError     string
	OpenedAt      time.Time

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(authenticated bool, principal Principal, authErr string) *Session {
	return &Session{
		ID:            idx.New().String(),
		Authenticated: authenticated,
		Principal:     principal,
		AuthError:     authErr,
		OpenedAt:      time.Now(),
		events:        make(chan Event, sessionBuffer),
		done:          make(chan struct{}),
	}
}

// send queues an event without blocking. Returns false when the buffer is
// full or the session is closed.
func (s *Session) send(e Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

// close marks the session dead. Safe to call more than once; only the first
// call has any effect.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed when the session has been deregistered.
func (s *Session) Done() <-chan struct{} { return s.done }

// Events exposes the delivery channel for consumers outside the Serve loop.
func (s *Session) Events() <-chan Event { return s.events }
