package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("matcher")

	if cfg.ServiceName != "matcher" {
		t.Errorf("expected ServiceName 'matcher', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("matcher")

	if cfg.ServiceName != "matcher" {
		t.Errorf("expected ServiceName 'matcher', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordSessionStart(ctx)
	metrics.RecordStage(ctx, "vector_generation", "completed", 2*time.Second)
	metrics.RecordChunk(ctx, "vector_generation")
	metrics.RecordItems(ctx, "vector_generation", 2047, 1)
	metrics.RecordError(ctx, "timeout", "embedding")
	metrics.RecordSessionEnd(ctx)
}

func TestRunContextRoundTrip(t *testing.T) {
	rc := NewRunContext("matcher", "sess-1", nil)
	if rc.SessionID != "sess-1" {
		t.Errorf("expected SessionID 'sess-1', got %s", rc.SessionID)
	}
	if rc.StartTime.IsZero() {
		t.Error("expected StartTime to be set")
	}

	ctx := WithRunContext(context.Background(), rc)
	if got := RunContextFromContext(ctx); got != rc {
		t.Error("expected the stored run context back")
	}
	if got := RunContextFromContext(context.Background()); got != nil {
		t.Error("expected nil when no run context is set")
	}
}

func TestRunContext_SessionAndStageSpans(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, _ := NewMetrics(meter)
	rc := NewRunContext("matcher", "sess-2", metrics)
	ctx := context.Background()

	ctx, sessionSpan := rc.StartSessionSpan(ctx)
	if RunContextFromContext(ctx) != rc {
		t.Error("expected the session span context to carry the run context")
	}

	start := time.Now()
	stageCtx, stageSpan := rc.StartStageSpan(ctx, "email_classification", 120)
	rc.EndStage(stageCtx, stageSpan, "email_classification", "completed", start, nil)

	stageCtx, stageSpan = rc.StartStageSpan(ctx, "vector_generation", 120)
	rc.EndStage(stageCtx, stageSpan, "vector_generation", "failed", start, fmt.Errorf("provider down"))

	rc.EndSession(ctx, sessionSpan, "completed", nil)
}

func TestRunContext_NilMetrics(t *testing.T) {
	rc := NewRunContext("matcher", "sess-3", nil)
	ctx, span := rc.StartSessionSpan(context.Background())
	rc.EndSession(ctx, span, "failed", fmt.Errorf("cancelled"))
}

func TestRunContext_Duration(t *testing.T) {
	rc := NewRunContext("matcher", "sess-4", nil)
	rc.StartTime = time.Now().Add(-50 * time.Millisecond)

	duration := rc.Duration()
	if duration < 45*time.Millisecond || duration > 200*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", duration)
	}
}

func TestNewServiceHealth(t *testing.T) {
	sh := NewServiceHealth("matcher", "1.0.0")

	if sh.Service != "matcher" {
		t.Errorf("expected Service 'matcher', got %s", sh.Service)
	}
	if sh.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got %s", sh.Version)
	}
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}
	if sh.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be stamped")
	}
}

func TestRegistryHealth(t *testing.T) {
	h := RegistryHealth("session_streams", 3)

	if h.Name != "session_streams" {
		t.Errorf("expected name 'session_streams', got %s", h.Name)
	}
	if h.Status != HealthStatusUp {
		t.Errorf("expected status 'up', got %s", h.Status)
	}
	if h.Details["active_sessions"] != "3" {
		t.Errorf("expected 3 active sessions, got %s", h.Details["active_sessions"])
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("matcher", "1.0.0")

	sh.AddComponent(Health{Name: "streams", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy component, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "embedding", Status: HealthStatusDegraded, Message: "high latency"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "trackers", Status: HealthStatusDown, Message: "unavailable"})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
}

func TestServiceHealth_DegradedDoesNotOverrideDown(t *testing.T) {
	sh := NewServiceHealth("matcher", "1.0.0")
	sh.AddComponent(Health{Name: "a", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "b", Status: HealthStatusDegraded})

	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanChunkProcess)
	defer span.End()

	if span == nil {
		t.Fatal("expected non-nil span")
	}
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	// Use an SDK tracer so span.IsRecording() returns true.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	defer span.End()

	SetSpanAttribute(ctx, AttrSessionID, "sess-1")
	SetSpanAttribute(ctx, AttrChunkIndex, 3)
	SetSpanAttribute(ctx, AttrDurationMs, int64(100))
	SetSpanAttribute(ctx, "rate", 3.14)
	SetSpanAttribute(ctx, "degraded", true)
	SetSpanAttribute(ctx, "stages", []string{"a", "b"})

	// Unsupported type - should not panic, just ignored
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
}

func TestSetSpanAttributeNoSpan(t *testing.T) {
	SetSpanAttribute(context.Background(), "key", "value")
}

func TestSetSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "test-error")
	defer span.End()

	SetSpanError(ctx, fmt.Errorf("test error"))
	SetSpanError(context.Background(), fmt.Errorf("no span error"))
}
