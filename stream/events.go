package stream

import (
	"encoding/json"
	"time"
)

// EventKind identifies the type of a stream event. The set is closed;
// payload shapes are fixed per kind.
type EventKind string

const (
	// EventProgress reports item-level progress within a stage.
	EventProgress EventKind = "progress"
	// EventStatus reports a human-readable status change.
	EventStatus EventKind = "status"
	// EventError reports a recovered or terminal failure.
	EventError EventKind = "error"
	// EventResult carries an intermediate or stage-level result payload.
	EventResult EventKind = "result"
	// EventHeartbeat signals liveness on an otherwise idle stream.
	EventHeartbeat EventKind = "heartbeat"
	// EventComplete is the terminal event carrying the final summary.
	EventComplete EventKind = "complete"
)

// Event is one typed event emitted on a session's stream.
type Event struct {
	SessionID string         `json:"session_id"`
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// JSON returns the event encoded as JSON.
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Subscriber receives events from one stream. Implementations must be safe
// for calls from the emitting goroutine; slow or panicking handlers are
// isolated by the stream, not by the subscriber.
type Subscriber interface {
	Handle(event Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(event Event)

// Handle calls f(event).
func (f SubscriberFunc) Handle(event Event) { f(event) }

// Subscription identifies one registered subscriber for removal.
type Subscription struct {
	id uint64
}
