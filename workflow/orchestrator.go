package workflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/observability"
	"github.com/kbukum/batchkit/progress"
	"github.com/kbukum/batchkit/stream"
	"github.com/kbukum/batchkit/version"
)

// StageFunc executes one stage's work for a session, typically by calling
// RunStage or RunStageBulk with the given runner and stage name.
type StageFunc func(ctx context.Context, runner *StageRunner, stage progress.Stage) (StageResult, error)

// StageDef declares one stage of a pipeline.
type StageDef struct {
	// Name identifies the stage in the tracker and in emitted events.
	Name progress.Stage
	// Optional stages may fail without failing the whole run.
	Optional bool
	// Run does the stage's work.
	Run StageFunc
}

// StageSummary is one stage's line in the final summary.
type StageSummary struct {
	Stage  progress.Stage  `json:"stage"`
	Status progress.Status `json:"status"`
	StageResult
}

// Summary aggregates a finished run.
type Summary struct {
	SessionID      string         `json:"session_id"`
	Stages         []StageSummary `json:"stages"`
	TotalItems     int            `json:"total_items"`
	TotalSucceeded int            `json:"total_succeeded"`
	TotalFailed    int            `json:"total_failed"`
	Elapsed        time.Duration  `json:"elapsed"`
	ItemsPerSecond float64        `json:"items_per_second"`
}

func (s *Summary) payload(status string) map[string]any {
	completed := 0
	for _, st := range s.Stages {
		if st.Status == progress.StatusCompleted {
			completed++
		}
	}
	return map[string]any{
		"session_id":       s.SessionID,
		"status":           status,
		"stages_completed": completed,
		"total_stages":     len(s.Stages),
		"total_items":      s.TotalItems,
		"succeeded":        s.TotalSucceeded,
		"failed":           s.TotalFailed,
		"elapsed_seconds":  s.Elapsed.Seconds(),
		"items_per_second": s.ItemsPerSecond,
	}
}

// Options configures an Orchestrator.
type Options struct {
	// ServiceName tags spans, metrics and health reports.
	ServiceName string
	// Streams is the session stream registry. Required.
	Streams *stream.Registry
	// Trackers is the session progress registry. Required.
	Trackers *progress.Registry
	// Metrics is optional.
	Metrics *observability.Metrics
	// Logger defaults to the global logger.
	Logger *logger.Logger
}

// Orchestrator sequences declared stages for processing sessions.
type Orchestrator struct {
	service  string
	streams  *stream.Registry
	trackers *progress.Registry
	metrics  *observability.Metrics
	log      *logger.Logger
}

// NewOrchestrator creates an orchestrator over the given registries.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Streams == nil {
		return nil, errors.InvalidInput("streams", "a stream registry is required")
	}
	if opts.Trackers == nil {
		return nil, errors.InvalidInput("trackers", "a progress registry is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "batchkit"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}
	return &Orchestrator{
		service:  opts.ServiceName,
		streams:  opts.Streams,
		trackers: opts.Trackers,
		metrics:  opts.Metrics,
		log:      opts.Logger.WithComponent("orchestrator"),
	}, nil
}

// Run executes the stages in order for the session, creating the session's
// stream and tracker if they do not exist yet. An empty session identifier
// starts a fresh session with a generated id.
//
// A failing optional stage is reported and skipped over; a non-optional
// stage that produces zero usable results fails the run. Either way the
// stream receives a terminal complete event carrying the summary, and the
// session entries stay registered for the caller (the registry sweepers
// reclaim them later).
func (o *Orchestrator) Run(ctx context.Context, sessionID string, stages []StageDef) (*Summary, error) {
	if len(stages) == 0 {
		return nil, errors.InvalidInput("stages", "at least one stage is required")
	}
	for _, def := range stages {
		if def.Run == nil {
			return nil, errors.InvalidInput("stages", fmt.Sprintf("stage %s has no run function", def.Name))
		}
	}

	s, tr, err := o.session(sessionID, stageNames(stages))
	if err != nil {
		return nil, err
	}
	sessionID = s.SessionID()
	log := o.log.WithFields(logger.Fields(logger.FieldSessionID, sessionID))

	rc := observability.NewRunContext(o.service, sessionID, o.metrics)
	ctx, sessionSpan := rc.StartSessionSpan(ctx)

	runner := &StageRunner{Stream: s, Tracker: tr, Metrics: o.metrics, Logger: o.log}
	summary := &Summary{SessionID: sessionID}
	_ = s.EmitStatus("processing started", "")
	log.Info("run started", logger.Fields("stages", len(stages)))

	var runErr error
	for _, def := range stages {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		stageStart := time.Now()
		stageCtx, stageSpan := rc.StartStageSpan(ctx, string(def.Name), 0)
		res, err := def.Run(stageCtx, runner, def.Name)

		failed := err != nil || (res.Total > 0 && res.Succeeded == 0)
		status := progress.StatusCompleted
		if failed {
			status = progress.StatusFailed
		}
		rc.EndStage(stageCtx, stageSpan, string(def.Name), string(status), stageStart, err)

		summary.Stages = append(summary.Stages, StageSummary{Stage: def.Name, Status: status, StageResult: res})
		summary.TotalItems += res.Total
		summary.TotalSucceeded += res.Succeeded
		summary.TotalFailed += res.Failed

		if !failed {
			continue
		}
		if err == nil {
			err = errors.Internal(fmt.Errorf("stage %s produced no usable results", def.Name))
		}
		if ctx.Err() != nil || !def.Optional {
			runErr = err
			break
		}
		log.Warn("optional stage failed, continuing", logger.Fields(
			logger.FieldStage, string(def.Name),
			logger.FieldError, err.Error(),
		))
	}

	summary.Elapsed = rc.Duration()
	if secs := summary.Elapsed.Seconds(); secs > 0 {
		summary.ItemsPerSecond = float64(summary.TotalItems) / secs
	}

	if runErr != nil {
		_ = s.EmitError("processing failed", runErr)
		_ = s.Complete(summary.payload("failed"))
		rc.EndSession(ctx, sessionSpan, string(progress.StatusFailed), runErr)
		log.Error("run failed", logger.Fields(logger.FieldError, runErr.Error()))
		return summary, runErr
	}

	_ = s.Complete(summary.payload("completed"))
	rc.EndSession(ctx, sessionSpan, string(progress.StatusCompleted), nil)
	log.Info("run completed", logger.Fields(
		"total_items", summary.TotalItems,
		"failed_items", summary.TotalFailed,
		logger.FieldDuration, summary.Elapsed.Milliseconds(),
	))
	return summary, nil
}

// session resolves or creates the stream and tracker for a session.
func (o *Orchestrator) session(sessionID string, stages []progress.Stage) (*stream.Stream, *progress.Tracker, error) {
	var s *stream.Stream
	var err error
	if sessionID != "" {
		s, err = o.streams.GetStream(sessionID)
		if err != nil && !errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, nil, err
		}
	}
	if s == nil {
		s, err = o.streams.CreateStream(sessionID, false)
		if err != nil {
			return nil, nil, err
		}
	}
	sessionID = s.SessionID()

	tr, err := o.trackers.GetTracker(sessionID)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		tr, err = o.trackers.CreateTracker(sessionID, stages, false)
	}
	if err != nil {
		return nil, nil, err
	}
	return s, tr, nil
}

// CheckHealth reports the orchestrator's session state. Every session owns
// both a stream and a tracker, so diverging registry counts indicate a
// leaked half-session and degrade the report.
func (o *Orchestrator) CheckHealth(ctx context.Context) observability.Health {
	streams := o.streams.Len()
	trackers := o.trackers.Len()
	h := observability.Health{
		Name:   o.service,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"active_streams":  strconv.Itoa(streams),
			"active_trackers": strconv.Itoa(trackers),
		},
	}
	if streams != trackers {
		h.Status = observability.HealthStatusDegraded
		h.Message = "stream and tracker session counts diverge"
	}
	return h
}

// Health returns the full service health report: build version, one
// component per registry, and the orchestrator's own session check.
func (o *Orchestrator) Health(ctx context.Context) *observability.ServiceHealth {
	sh := observability.NewServiceHealth(o.service, version.Short())
	sh.AddComponent(observability.RegistryHealth("session_streams", o.streams.Len()))
	sh.AddComponent(observability.RegistryHealth("progress_trackers", o.trackers.Len()))
	sh.AddComponent(o.CheckHealth(ctx))
	return sh
}

func stageNames(stages []StageDef) []progress.Stage {
	names := make([]progress.Stage, len(stages))
	for i, def := range stages {
		names[i] = def.Name
	}
	return names
}
