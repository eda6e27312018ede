package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
)

// Registry tuning defaults.
const (
	DefaultSessionTimeout = time.Hour
	DefaultSweepInterval  = time.Minute
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Stream is the configuration applied to every created stream.
	Stream Options
	// SessionTimeout is how long an inactive session survives before the
	// sweeper disposes it. Zero means one hour; negative disables sweeping.
	SessionTimeout time.Duration
	// SweepInterval is how often the sweeper scans for idle sessions.
	// Zero means one minute.
	SweepInterval time.Duration
	// Logger is used for lifecycle reporting. Nil uses the global logger.
	Logger *logger.Logger
}

func (o RegistryOptions) withDefaults() RegistryOptions {
	if o.SessionTimeout == 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Logger == nil {
		o.Logger = logger.Global()
	}
	return o
}

// Registry owns the streams of all live sessions in the process.
type Registry struct {
	opts RegistryOptions
	log  *logger.Logger

	mu      sync.RWMutex
	streams map[string]*Stream

	sweepStop chan struct{}
	stopOnce  sync.Once
}

// NewRegistry creates a registry and starts its idle-session sweeper.
func NewRegistry(opts RegistryOptions) *Registry {
	opts = opts.withDefaults()
	r := &Registry{
		opts:      opts,
		log:       opts.Logger.WithComponent("stream_registry"),
		streams:   make(map[string]*Stream),
		sweepStop: make(chan struct{}),
	}
	if opts.SessionTimeout > 0 {
		go r.sweepLoop()
	}
	return r
}

// CreateStream creates a stream for the session. An empty session
// identifier generates a fresh one. Creating a stream for a session that
// already has a live one fails with ALREADY_EXISTS unless replace is set,
// in which case the old stream is disposed first.
func (r *Registry) CreateStream(sessionID string, replace bool) (*Stream, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.streams[sessionID]; ok {
		if !replace {
			return nil, errors.AlreadyExists("stream", sessionID)
		}
		existing.dispose()
	}
	s := New(sessionID, r.opts.Stream)
	r.streams[sessionID] = s
	r.log.Debug("stream created", logger.Fields(logger.FieldSessionID, sessionID))
	return s, nil
}

// GetStream returns the live stream for the session, failing with
// NOT_FOUND when none exists.
func (r *Registry) GetStream(sessionID string) (*Stream, error) {
	r.mu.RLock()
	s, ok := r.streams[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("stream", sessionID)
	}
	return s, nil
}

// DisposeStream closes and removes the session's stream. Disposing an
// unknown session is a no-op.
func (r *Registry) DisposeStream(sessionID string) {
	r.mu.Lock()
	s, ok := r.streams[sessionID]
	if ok {
		delete(r.streams, sessionID)
	}
	r.mu.Unlock()
	if ok {
		s.dispose()
		r.log.Debug("stream disposed", logger.Fields(logger.FieldSessionID, sessionID))
	}
}

// ActiveSessions returns the identifiers of all live sessions.
func (r *Registry) ActiveSessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// Close stops the sweeper and disposes every live stream.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.sweepStop) })

	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]*Stream)
	r.mu.Unlock()

	for _, s := range streams {
		s.dispose()
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.sweepStop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// sweep disposes sessions that have been inactive past the session
// timeout. Completed streams are not reclaimed early: the terminal event
// counts as activity, so late subscribers can still look the session up
// until the timeout passes.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Stream
	for id, s := range r.streams {
		if now.Sub(s.LastActivity()) >= r.opts.SessionTimeout {
			delete(r.streams, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.dispose()
		r.log.Info("idle session reclaimed", logger.Fields(logger.FieldSessionID, s.SessionID()))
	}
}
