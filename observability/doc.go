// Package observability provides OpenTelemetry tracing and metrics for
// batch processing runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("matcher"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanStageRun)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("matcher"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("matcher"))
//	metrics.RecordStage(ctx, "vector_generation", "completed", duration)
//
// Health checks:
//
//	health := observability.NewServiceHealth("matcher", "1.0.0")
//	health.AddComponent(checker.CheckHealth(ctx))
package observability
