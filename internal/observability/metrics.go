// Package observability provides build metrics.
package observability

import (
	"context"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dosanma1/forge-booster/internal/graph"
)

// Metrics records compression and task metrics on a private registry so that
// a build can dump them without serving HTTP.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prom.Registry

	// Compression metrics
	FilesCompressed metric.Int64Counter
	BytesBefore     metric.Int64Counter
	BytesAfter      metric.Int64Counter

	// Task metrics
	TasksTotal   metric.Int64Counter
	TaskDuration metric.Float64Histogram
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics() (*Metrics, error) {
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry), prometheus.WithoutScopeInfo())
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("booster")
	m := &Metrics{provider: provider, registry: registry}

	m.FilesCompressed, err = meter.Int64Counter(
		"booster_files_compressed",
		metric.WithDescription("Total number of files processed by a compressor"),
	)
	if err != nil {
		return nil, err
	}

	m.BytesBefore, err = meter.Int64Counter(
		"booster_bytes_before",
		metric.WithDescription("Total input size in bytes of processed files"),
	)
	if err != nil {
		return nil, err
	}

	m.BytesAfter, err = meter.Int64Counter(
		"booster_bytes_after",
		metric.WithDescription("Total output size in bytes of processed files"),
	)
	if err != nil {
		return nil, err
	}

	m.TasksTotal, err = meter.Int64Counter(
		"booster_tasks",
		metric.WithDescription("Total number of tasks by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram(
		"booster_task_duration",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCompression implements compression.Metrics.
func (m *Metrics) RecordCompression(ctx context.Context, artifactID string, before, after int64) {
	attrs := metric.WithAttributes(artifactAttr(artifactID))
	m.FilesCompressed.Add(ctx, 1, attrs)
	m.BytesBefore.Add(ctx, before, attrs)
	m.BytesAfter.Add(ctx, after, attrs)
}

// TaskFinished implements graph.TaskObserver.
func (m *Metrics) TaskFinished(name string, outcome graph.Outcome, d time.Duration) {
	ctx := context.Background()
	m.TasksTotal.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
	if outcome == graph.OutcomeExecuted || outcome == graph.OutcomeFailed {
		m.TaskDuration.Record(ctx, d.Seconds(), metric.WithAttributes(taskAttr(name), outcomeAttr(outcome)))
	}
}

// Gatherer exposes the registry, e.g. for promhttp or tests.
func (m *Metrics) Gatherer() prom.Gatherer {
	return m.registry
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// atomically, for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, m.registry)
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
