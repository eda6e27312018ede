package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/batchkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments of the batch processing pipeline.
type Metrics struct {
	sessionActive metric.Int64UpDownCounter
	stageTotal    metric.Int64Counter
	stageDuration metric.Float64Histogram
	chunkTotal    metric.Int64Counter
	itemTotal     metric.Int64Counter
	errorTotal    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	sessionActive, err := meter.Int64UpDownCounter("session.active",
		metric.WithDescription("Number of currently running processing sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session.active gauge: %w", err)
	}

	stageTotal, err := meter.Int64Counter("stage.total",
		metric.WithDescription("Total number of executed stages by name and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.total counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("stage.duration",
		metric.WithDescription("Duration of stages in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}

	chunkTotal, err := meter.Int64Counter("chunk.total",
		metric.WithDescription("Total number of processed chunks by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chunk.total counter: %w", err)
	}

	itemTotal, err := meter.Int64Counter("item.total",
		metric.WithDescription("Total number of processed items by stage and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item.total counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		sessionActive: sessionActive,
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		chunkTotal:    chunkTotal,
		itemTotal:     itemTotal,
		errorTotal:    errorTotal,
	}, nil
}

// RecordSessionStart increments the active session count.
func (m *Metrics) RecordSessionStart(ctx context.Context) {
	m.sessionActive.Add(ctx, 1)
}

// RecordSessionEnd decrements the active session count.
func (m *Metrics) RecordSessionEnd(ctx context.Context) {
	m.sessionActive.Add(ctx, -1)
}

// RecordStage records one finished stage with its outcome and duration.
func (m *Metrics) RecordStage(ctx context.Context, stage, status string, duration time.Duration) {
	m.stageTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordChunk records one processed chunk.
func (m *Metrics) RecordChunk(ctx context.Context, stage string) {
	m.chunkTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordItems records item outcomes for a stage.
func (m *Metrics) RecordItems(ctx context.Context, stage string, succeeded, failed int) {
	stageAttr := attribute.String("stage", stage)
	if succeeded > 0 {
		m.itemTotal.Add(ctx, int64(succeeded), metric.WithAttributes(
			stageAttr, attribute.String("status", "ok"),
		))
	}
	if failed > 0 {
		m.itemTotal.Add(ctx, int64(failed), metric.WithAttributes(
			stageAttr, attribute.String("status", "error"),
		))
	}
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
