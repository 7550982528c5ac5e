// Package stream owns the server-sent-events session registry: accepting
// connections, the keepalive and auth-reminder cadence, and best-effort
// broadcast delivery.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/metrics"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

const (
	DefaultKeepaliveInterval = 30 * time.Second
	DefaultReminderInterval  = 10 * time.Second

	// authConfirmDelay is how long after accept an authenticated session
	// receives its one-shot confirmation event.
	authConfirmDelay = time.Second
)

// Manager owns the registry of live streaming sessions.
type Manager struct {
	KeepaliveInterval time.Duration
	ReminderInterval  time.Duration

	// AuthURL is the absolute authorize URL advertised to unauthenticated
	// clients, both in the X-MCP-Auth-URL header and in events.
	AuthURL string

	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(authURL string, m *metrics.Metrics) *Manager {
	return &Manager{
		KeepaliveInterval: DefaultKeepaliveInterval,
		ReminderInterval:  DefaultReminderInterval,
		AuthURL:           authURL,
		metrics:           m,
		sessions:          make(map[string]*Session),
	}
}

// Register creates and registers a session with the authentication state
// resolved at accept time.
func (m *Manager) Register(authenticated bool, principal Principal, authErr string) *Session {
	sess := newSession(authenticated, principal, authErr)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}
	return sess
}

// Deregister removes a session and marks it closed. Calling it twice for the
// same session is harmless.
func (m *Manager) Deregister(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	sess.close()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Broadcast delivers an event to every registered session, best effort. A
// session that cannot accept the event is removed from the registry; other
// deliveries are unaffected and no error reaches the caller.
func (m *Manager) Broadcast(event Event) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		targets = append(targets, sess)
	}
	m.mu.RUnlock()

	for _, sess := range targets {
		if !sess.send(event) {
			m.Deregister(sess.ID)
			if m.metrics != nil {
				m.metrics.BroadcastDrops.Inc()
			}
		}
	}
}

// Serve runs the SSE write loop for an accepted session. It blocks until the
// transport closes, then deregisters the session and stops every ticker.
// The caller must have registered the session.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, sess *Session) {
	log := slogx.FromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		m.Deregister(sess.ID)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if m.AuthURL != "" {
		w.Header().Set("X-MCP-Auth-URL", m.AuthURL)
	}
	w.WriteHeader(http.StatusOK)

	// Single cleanup hook tied to the session lifetime. Runs at most once
	// per session from this goroutine's perspective; every ticker below is
	// stopped by the deferred calls regardless of exit path.
	defer m.Deregister(sess.ID)

	if err := writeEvent(w, flusher, m.initialEvent(sess)); err != nil {
		return
	}

	keepalive := time.NewTicker(m.KeepaliveInterval)
	defer keepalive.Stop()

	var reminder <-chan time.Time
	if !sess.Authenticated {
		t := time.NewTicker(m.ReminderInterval)
		defer t.Stop()
		reminder = t.C
	}

	var confirm <-chan time.Time
	if sess.Authenticated {
		t := time.NewTimer(authConfirmDelay)
		defer t.Stop()
		confirm = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return

		case event := <-sess.events:
			if err := writeEvent(w, flusher, event); err != nil {
				log.Debug("session write failed", "session_id", sess.ID, "error", err)
				return
			}

		case <-confirm:
			confirm = nil
			event := NewEvent(EventAuthConfirmed, map[string]any{
				"client_id": sess.Principal.ClientID,
			})
			if err := writeEvent(w, flusher, event); err != nil {
				return
			}

		case <-keepalive.C:
			event := NewEvent(EventKeepalive, map[string]any{
				"authenticated": sess.Authenticated,
			})
			if err := writeEvent(w, flusher, event); err != nil {
				return
			}

		case <-reminder:
			// The reminder never upgrades the session; the client must
			// reconnect with credentials.
			event := NewEvent(EventAuthCheck, map[string]any{
				"authenticated": false,
				"authUrl":       m.AuthURL,
			})
			if err := writeEvent(w, flusher, event); err != nil {
				return
			}
		}
	}
}

func (m *Manager) initialEvent(sess *Session) Event {
	if sess.Authenticated {
		return NewEvent(EventConnection, map[string]any{
			"authenticated": true,
			"session_id":    sess.ID,
			"principal":     sess.Principal,
		})
	}

	fields := map[string]any{
		"authenticated": false,
		"session_id":    sess.ID,
		"authUrl":       m.AuthURL,
	}
	if sess.AuthError != "" {
		fields["error"] = sess.AuthError
	}
	return NewEvent(EventAuthRequired, fields)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
