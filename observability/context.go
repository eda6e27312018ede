package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability context for one processing session.
type RunContext struct {
	ServiceName string
	SessionID   string
	StartTime   time.Time
	Metrics     *Metrics
}

// NewRunContext creates a run context for a session.
// If metrics is nil, metric recording is silently skipped.
func NewRunContext(serviceName, sessionID string, metrics *Metrics) *RunContext {
	return &RunContext{
		ServiceName: serviceName,
		SessionID:   sessionID,
		StartTime:   time.Now(),
		Metrics:     metrics,
	}
}

// runContextKey is the context key for RunContext.
type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartSessionSpan starts the session span and records the session start
// metric.
func (rc *RunContext) StartSessionSpan(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanSessionRun)
	span.SetAttributes(
		attribute.String(AttrServiceName, rc.ServiceName),
		attribute.String(AttrSessionID, rc.SessionID),
	)
	if rc.Metrics != nil {
		rc.Metrics.RecordSessionStart(ctx)
	}
	return WithRunContext(ctx, rc), span
}

// EndSession ends the session span and records session-end metrics.
func (rc *RunContext) EndSession(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(rc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordSessionEnd(ctx)
	}
}

// StartStageSpan starts a child span for one stage of the session.
func (rc *RunContext) StartStageSpan(ctx context.Context, stage string, total int) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanStageRun)
	span.SetAttributes(
		attribute.String(AttrSessionID, rc.SessionID),
		attribute.String(AttrStageName, stage),
		attribute.Int(AttrItemCount, total),
	)
	return ctx, span
}

// EndStage ends a stage span and records stage metrics.
func (rc *RunContext) EndStage(ctx context.Context, span trace.Span, stage, status string, start time.Time, err error) {
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordStage(ctx, stage, status, duration)
	}
}

// Duration returns the elapsed time since the session started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
