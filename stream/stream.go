package stream

import (
	"sync"
	"time"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
)

// Default stream tuning values.
const (
	DefaultMaxSubscribers    = 10
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSubscriberTimeout = 5 * time.Second
)

// Options configures a Stream.
type Options struct {
	// MaxSubscribers caps concurrent subscribers. Zero means 10.
	MaxSubscribers int
	// HeartbeatInterval is the idle period after which a heartbeat event is
	// emitted. Zero means 30s; negative disables heartbeats.
	HeartbeatInterval time.Duration
	// SubscriberTimeout bounds how long one subscriber callback may block
	// event delivery. Zero means 5s.
	SubscriberTimeout time.Duration
	// Logger is used for subscriber failure reporting. Nil uses the global
	// logger.
	Logger *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxSubscribers <= 0 {
		o.MaxSubscribers = DefaultMaxSubscribers
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.SubscriberTimeout <= 0 {
		o.SubscriberTimeout = DefaultSubscriberTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Global()
	}
	return o
}

type subscriberEntry struct {
	id  uint64
	sub Subscriber
}

// Stream is the event channel for one processing session. All emissions are
// synchronous: Emit returns after every subscriber has been offered the
// event, in registration order.
type Stream struct {
	sessionID string
	opts      Options
	log       *logger.Logger
	started   time.Time

	mu           sync.Mutex
	subs         []subscriberEntry
	nextSubID    uint64
	closed       bool
	lastActivity time.Time

	heartbeatStop chan struct{}
	stopHeartbeat sync.Once
}

// New creates a stream for the given session and starts its heartbeat timer.
func New(sessionID string, opts Options) *Stream {
	opts = opts.withDefaults()
	now := time.Now()
	s := &Stream{
		sessionID:     sessionID,
		opts:          opts,
		log:           opts.Logger.WithComponent("stream").WithFields(logger.Fields(logger.FieldSessionID, sessionID)),
		started:       now,
		lastActivity:  now,
		heartbeatStop: make(chan struct{}),
	}
	if opts.HeartbeatInterval > 0 {
		go s.heartbeatLoop()
	}
	return s
}

// SessionID returns the session identifier this stream belongs to.
func (s *Stream) SessionID() string { return s.sessionID }

// Subscribe registers a subscriber. It fails with a CAPACITY_EXCEEDED error
// when the subscriber limit is reached and with STREAM_CLOSED after the
// stream has completed.
func (s *Stream) Subscribe(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return Subscription{}, errors.InvalidInput("subscriber", "subscriber must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Subscription{}, errors.StreamClosed(s.sessionID)
	}
	if len(s.subs) >= s.opts.MaxSubscribers {
		return Subscription{}, errors.CapacityExceeded(s.opts.MaxSubscribers)
	}
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriberEntry{id: id, sub: sub})
	s.lastActivity = time.Now()
	return Subscription{id: id}, nil
}

// Unsubscribe removes a previously registered subscriber. Removing an
// unknown or already removed subscription is a no-op.
func (s *Stream) Unsubscribe(subscription Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.subs {
		if entry.id == subscription.id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Emit delivers an event of the given kind to all subscribers. It fails
// with STREAM_CLOSED once the stream has completed.
func (s *Stream) Emit(kind EventKind, payload map[string]any) error {
	return s.emit(kind, payload, false)
}

func (s *Stream) emit(kind EventKind, payload map[string]any, terminal bool) error {
	event := Event{
		SessionID: s.sessionID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.StreamClosed(s.sessionID)
	}
	if kind != EventHeartbeat {
		s.lastActivity = event.Timestamp
	}
	if terminal {
		s.closed = true
	}
	subs := make([]subscriberEntry, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, entry := range subs {
		s.deliver(entry, event)
	}

	if terminal {
		s.stopHeartbeat.Do(func() { close(s.heartbeatStop) })
	}
	return nil
}

// deliver hands the event to one subscriber, shielding the stream from
// panics and from callbacks that exceed the subscriber timeout.
func (s *Stream) deliver(entry subscriberEntry, event Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("subscriber panicked", logger.Fields(
					"subscriber_id", entry.id,
					"event_kind", string(event.Kind),
					"panic", r,
				))
			}
		}()
		entry.sub.Handle(event)
	}()

	select {
	case <-done:
	case <-time.After(s.opts.SubscriberTimeout):
		s.log.Warn("subscriber too slow, abandoning delivery", logger.Fields(
			"subscriber_id", entry.id,
			"event_kind", string(event.Kind),
			"timeout", s.opts.SubscriberTimeout.String(),
		))
	}
}

// EmitProgress emits a progress event. The percentage is derived from
// current and total; a zero total yields zero percent and overshoot is
// clamped at one hundred. When at least one item has completed, a linear
// remaining-time estimate is included.
func (s *Stream) EmitProgress(current, total int, message string) error {
	payload := map[string]any{
		"current":    current,
		"total":      total,
		"percentage": progressPercentage(current, total),
		"message":    message,
	}
	if current > 0 && total > current {
		elapsed := time.Since(s.started)
		remaining := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
		payload["estimated_remaining_seconds"] = remaining.Seconds()
	}
	return s.Emit(EventProgress, payload)
}

// EmitStatus emits a status event.
func (s *Stream) EmitStatus(status, detail string) error {
	payload := map[string]any{"status": status}
	if detail != "" {
		payload["detail"] = detail
	}
	return s.Emit(EventStatus, payload)
}

// EmitError emits an error event. Emitting an error does not close the
// stream; degraded runs keep reporting progress afterwards.
func (s *Stream) EmitError(message string, cause error) error {
	payload := map[string]any{"message": message}
	if cause != nil {
		payload["detail"] = cause.Error()
	}
	return s.Emit(EventError, payload)
}

// EmitResult emits a result event with a named payload.
func (s *Stream) EmitResult(resultType string, result any) error {
	return s.Emit(EventResult, map[string]any{
		"result_type": resultType,
		"result":      result,
	})
}

// Complete emits the terminal complete event with the final summary, closes
// the stream to further emissions and stops the heartbeat. Completing an
// already completed stream fails with STREAM_CLOSED.
func (s *Stream) Complete(summary map[string]any) error {
	return s.emit(EventComplete, map[string]any{"summary": summary}, true)
}

// Closed reports whether the stream has completed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LastActivity returns the time of the most recent subscription or
// non-heartbeat emission.
func (s *Stream) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// dispose closes the stream without emitting a terminal event. Used by the
// registry when reclaiming idle sessions.
func (s *Stream) dispose() {
	s.mu.Lock()
	s.closed = true
	s.subs = nil
	s.mu.Unlock()
	s.stopHeartbeat.Do(func() { close(s.heartbeatStop) })
}

func (s *Stream) heartbeatLoop() {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.heartbeatStop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			idle := now.Sub(s.lastActivity) >= s.opts.HeartbeatInterval
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			if idle {
				// Epoch seconds, fractional, matching the other payloads'
				// numeric time fields.
				_ = s.Emit(EventHeartbeat, map[string]any{
					"timestamp": float64(now.UnixNano()) / float64(time.Second),
				})
			}
		}
	}
}

// progressPercentage computes a clamped completion percentage.
func progressPercentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(current) / float64(total) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
