package progress

import (
	"math"
	"sync"
	"time"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
)

// UpdateFunc observes stage snapshots as a tracker mutates. Callbacks run
// on the mutating goroutine; panics are recovered and logged so one bad
// observer cannot poison the run.
type UpdateFunc func(p StageProgress)

// Overall summarizes a whole session's progress.
type Overall struct {
	SessionID       string        `json:"session_id"`
	CompletedStages int           `json:"completed_stages"`
	FailedStages    int           `json:"failed_stages"`
	TotalStages     int           `json:"total_stages"`
	Percentage      float64       `json:"percentage"`
	Elapsed         time.Duration `json:"elapsed"`
	Done            bool          `json:"done"`
}

// Tracker tracks the stages of one session.
type Tracker struct {
	sessionID string
	log       *logger.Logger
	started   time.Time

	mu           sync.Mutex
	order        []Stage
	stages       map[Stage]*StageProgress
	callbacks    []UpdateFunc
	lastActivity time.Time
}

// NewTracker creates a tracker for the session with the given stage set,
// all pending. An empty stage list uses the default pipeline.
func NewTracker(sessionID string, stages []Stage) *Tracker {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	now := time.Now()
	t := &Tracker{
		sessionID:    sessionID,
		log:          logger.WithComponent("progress").WithFields(logger.Fields(logger.FieldSessionID, sessionID)),
		started:      now,
		order:        make([]Stage, 0, len(stages)),
		stages:       make(map[Stage]*StageProgress, len(stages)),
		lastActivity: now,
	}
	for _, stage := range stages {
		if _, ok := t.stages[stage]; ok {
			continue
		}
		t.order = append(t.order, stage)
		t.stages[stage] = &StageProgress{SessionID: sessionID, Stage: stage, Status: StatusPending}
	}
	return t
}

// SessionID returns the session this tracker belongs to.
func (t *Tracker) SessionID() string { return t.sessionID }

// OnUpdate registers an observer for stage snapshots.
func (t *Tracker) OnUpdate(fn UpdateFunc) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

// StartStage moves a pending stage to in_progress with the given item
// total. Stages not declared up front are added on first start, in the
// order they appear. Starting a stage twice fails with INVALID_TRANSITION.
func (t *Tracker) StartStage(stage Stage, total int, message string) error {
	t.mu.Lock()
	p, ok := t.stages[stage]
	if !ok {
		p = &StageProgress{SessionID: t.sessionID, Stage: stage, Status: StatusPending}
		t.order = append(t.order, stage)
		t.stages[stage] = p
	}
	if p.Status != StatusPending {
		t.mu.Unlock()
		return errors.InvalidTransition(string(stage), string(p.Status), string(StatusInProgress))
	}
	p.Status = StatusInProgress
	p.Current = 0
	p.Total = total
	p.Message = message
	p.StartedAt = time.Now()
	t.lastActivity = p.StartedAt
	snapshot, callbacks := *p, t.snapshotCallbacks()
	t.mu.Unlock()

	t.log.Info("stage started", logger.Fields(logger.FieldStage, string(stage), "total", total))
	t.notify(snapshot, callbacks)
	return nil
}

// UpdateProgress records item progress for an in_progress stage. Progress
// never moves backwards and never exceeds a known total; out-of-range
// values are clamped rather than rejected.
func (t *Tracker) UpdateProgress(stage Stage, current int, message string) error {
	t.mu.Lock()
	p, ok := t.stages[stage]
	if !ok {
		t.mu.Unlock()
		return errors.NotFound("stage", t.sessionID).WithDetail("stage", string(stage))
	}
	if p.Status != StatusInProgress {
		t.mu.Unlock()
		return errors.InvalidTransition(string(stage), string(p.Status), string(StatusInProgress))
	}
	if current > p.Current {
		if p.Total > 0 && current > p.Total {
			current = p.Total
		}
		p.Current = current
	}
	if message != "" {
		p.Message = message
	}
	t.lastActivity = time.Now()
	snapshot, callbacks := *p, t.snapshotCallbacks()
	t.mu.Unlock()

	t.notify(snapshot, callbacks)
	return nil
}

// CompleteStage moves an in_progress stage to completed, snapping the
// current count to the total.
func (t *Tracker) CompleteStage(stage Stage, message string) error {
	return t.finish(stage, StatusCompleted, message)
}

// FailStage moves an in_progress stage to failed with a reason.
func (t *Tracker) FailStage(stage Stage, reason string) error {
	return t.finish(stage, StatusFailed, reason)
}

func (t *Tracker) finish(stage Stage, status Status, message string) error {
	t.mu.Lock()
	p, ok := t.stages[stage]
	if !ok {
		t.mu.Unlock()
		return errors.NotFound("stage", t.sessionID).WithDetail("stage", string(stage))
	}
	if p.Status != StatusInProgress {
		t.mu.Unlock()
		return errors.InvalidTransition(string(stage), string(p.Status), string(status))
	}
	p.Status = status
	if status == StatusCompleted && p.Total > 0 {
		p.Current = p.Total
	}
	if message != "" {
		p.Message = message
	}
	p.EndedAt = time.Now()
	t.lastActivity = p.EndedAt
	snapshot, callbacks := *p, t.snapshotCallbacks()
	t.mu.Unlock()

	fields := logger.Fields(logger.FieldStage, string(stage), logger.FieldDuration, snapshot.Elapsed().Milliseconds())
	if status == StatusFailed {
		t.log.Warn("stage failed", fields, logger.Fields("reason", message))
	} else {
		t.log.Info("stage completed", fields)
	}
	t.notify(snapshot, callbacks)
	return nil
}

// Snapshot returns the current state of one stage.
func (t *Tracker) Snapshot(stage Stage) (StageProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.stages[stage]
	if !ok {
		return StageProgress{}, errors.NotFound("stage", t.sessionID).WithDetail("stage", string(stage))
	}
	return *p, nil
}

// Stages returns snapshots of all stages in declaration order.
func (t *Tracker) Stages() []StageProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StageProgress, 0, len(t.order))
	for _, stage := range t.order {
		out = append(out, *t.stages[stage])
	}
	return out
}

// Overall summarizes the session: the percentage is completed stages over
// total stages, and the session is done once every stage is terminal.
func (t *Tracker) Overall() Overall {
	t.mu.Lock()
	defer t.mu.Unlock()

	o := Overall{
		SessionID:   t.sessionID,
		TotalStages: len(t.order),
		Elapsed:     time.Since(t.started),
		Done:        len(t.order) > 0,
	}
	for _, stage := range t.order {
		switch t.stages[stage].Status {
		case StatusCompleted:
			o.CompletedStages++
		case StatusFailed:
			o.FailedStages++
		default:
			o.Done = false
		}
	}
	if o.TotalStages > 0 {
		pct := float64(o.CompletedStages) / float64(o.TotalStages) * 100
		o.Percentage = math.Round(pct*100) / 100
	}
	return o
}

// LastActivity returns the time of the most recent mutation.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

func (t *Tracker) snapshotCallbacks() []UpdateFunc {
	callbacks := make([]UpdateFunc, len(t.callbacks))
	copy(callbacks, t.callbacks)
	return callbacks
}

// notify invokes observers outside the tracker lock, recovering panics so
// a broken observer cannot break progress accounting.
func (t *Tracker) notify(snapshot StageProgress, callbacks []UpdateFunc) {
	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.log.Error("progress callback panicked", logger.Fields(
						logger.FieldStage, string(snapshot.Stage),
						"panic", r,
					))
				}
			}()
			fn(snapshot)
		}()
	}
}
