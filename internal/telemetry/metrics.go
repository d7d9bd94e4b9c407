package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// Metrics holds the shared instrument set. The scheduler records
// TasksExecuted, PassDuration, StoreFaults and LockWaitMillis, and the
// janitor records StoreFaults; TasksSkipped, InvalidationCount,
// RetryAttempts and CircuitOpenEvents are created but recorded nowhere.
type Metrics struct {
	TasksExecuted      metric.Int64Counter
	TasksSkipped       metric.Int64Counter
	PassDuration       metric.Float64Histogram
	StoreFaults        metric.Int64Counter
	LockWaitMillis      metric.Float64Histogram
	InvalidationCount  metric.Int64Counter
	RetryAttempts      metric.Int64Counter
	CircuitOpenEvents  metric.Int64Counter
}

// InitMetrics sets up a global OTLP metric exporter (push) and returns its
// shutdown func plus the shared instrument set. Exporter failures degrade
// to a no-op shutdown with instruments still usable (they simply report to
// no registered reader).
func InitMetrics(ctx context.Context, component string) (shutdown func(context.Context) error, m Metrics) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(component),
		attribute.String("component", component),
	))
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, createInstruments()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, createInstruments()
}

func createInstruments() Metrics {
	meter := otel.Meter("jug")
	executed, _ := meter.Int64Counter("jug_tasks_executed_total")
	skipped, _ := meter.Int64Counter("jug_tasks_skipped_total")
	passDur, _ := meter.Float64Histogram("jug_scheduler_pass_duration_ms")
	faults, _ := meter.Int64Counter("jug_store_faults_total")
	lockWait, _ := meter.Float64Histogram("jug_lock_wait_ms")
	invalidations, _ := meter.Int64Counter("jug_invalidations_total")
	retries, _ := meter.Int64Counter("jug_resilience_retry_attempts_total")
	circuitOpen, _ := meter.Int64Counter("jug_resilience_circuit_open_total")
	return Metrics{
		TasksExecuted:     executed,
		TasksSkipped:      skipped,
		PassDuration:      passDur,
		StoreFaults:       faults,
		LockWaitMillis:    lockWait,
		InvalidationCount: invalidations,
		RetryAttempts:     retries,
		CircuitOpenEvents: circuitOpen,
	}
}
