package progress

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
	// SessionTimeout is how long an inactive tracker survives before the
	// sweeper removes it. Zero means one hour; negative disables sweeping.
	SessionTimeout time.Duration
	// SweepInterval is how often the sweeper scans. Zero means one minute.
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

// Registry owns the progress trackers of all live sessions.
type Registry struct {
	opts RegistryOptions
	log  *logger.Logger

	mu       sync.RWMutex
	trackers map[string]*Tracker

	sweepStop chan struct{}
	stopOnce  sync.Once
}

// NewRegistry creates a registry and starts its sweeper.
func NewRegistry(opts RegistryOptions) *Registry {
	opts = opts.withDefaults()
	r := &Registry{
		opts:      opts,
		log:       opts.Logger.WithComponent("progress_registry"),
		trackers:  make(map[string]*Tracker),
		sweepStop: make(chan struct{}),
	}
	if opts.SessionTimeout > 0 {
		go r.sweepLoop()
	}
	return r
}

// CreateTracker creates a tracker for the session with the given stage
// set. An empty session identifier generates a fresh one. Creating a
// tracker for a session that already has one fails with ALREADY_EXISTS
// unless replace is set.
func (r *Registry) CreateTracker(sessionID string, stages []Stage, replace bool) (*Tracker, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[sessionID]; ok && !replace {
		return nil, errors.AlreadyExists("progress tracker", sessionID)
	}
	t := NewTracker(sessionID, stages)
	r.trackers[sessionID] = t
	r.log.Debug("tracker created", logger.Fields(logger.FieldSessionID, sessionID))
	return t, nil
}

// GetTracker returns the live tracker for the session, failing with
// NOT_FOUND when none exists.
func (r *Registry) GetTracker(sessionID string) (*Tracker, error) {
	r.mu.RLock()
	t, ok := r.trackers[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("progress tracker", sessionID)
	}
	return t, nil
}

// DisposeTracker removes the session's tracker. Unknown sessions are a
// no-op.
func (r *Registry) DisposeTracker(sessionID string) {
	r.mu.Lock()
	_, ok := r.trackers[sessionID]
	if ok {
		delete(r.trackers, sessionID)
	}
	r.mu.Unlock()
	if ok {
		r.log.Debug("tracker disposed", logger.Fields(logger.FieldSessionID, sessionID))
	}
}

// AllProgress returns the overall summary of every live session.
func (r *Registry) AllProgress() map[string]Overall {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Overall, len(r.trackers))
	for id, t := range r.trackers {
		out[id] = t.Overall()
	}
	return out
}

// Len returns the number of live trackers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}

// Close stops the sweeper and drops all trackers.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.sweepStop) })
	r.mu.Lock()
	r.trackers = make(map[string]*Tracker)
	r.mu.Unlock()
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

// sweep removes trackers that finished or have been idle past the
// session timeout.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var removed []string
	for id, t := range r.trackers {
		if now.Sub(t.LastActivity()) >= r.opts.SessionTimeout {
			delete(r.trackers, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.log.Info("idle tracker reclaimed", logger.Fields(logger.FieldSessionID, id))
	}
}
