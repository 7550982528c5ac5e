package stream

import "time"

// Event is a single server-push payload. Every event carries at least a
// "type" and a "timestamp" field; NewEvent fills both.
type Event map[string]any

const (
	EventConnection       = "connection"
	EventAuthRequired     = "auth_required"
	EventAuthConfirmed    = "auth_success_confirmed"
	EventKeepalive        = "keepalive"
	EventAuthCheck        = "auth_check"
	EventRequestReceived  = "request_received"
	EventRequestCompleted = "request_completed"
	EventRequestError     = "request_error"
)

// NewEvent builds an event of the given type, stamping it with the current
// time in RFC 3339 form.
func NewEvent(typ string, fields map[string]any) Event {
	e := make(Event, len(fields)+2)
	for k, v := range fields {
		e[k] = v
	}
	e["type"] = typ
	e["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return e
}
