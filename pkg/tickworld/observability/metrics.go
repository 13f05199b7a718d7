package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/randalmurphal/tickworld"

// MetricsRecorder records tickworld metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTick records one executed tick.
	RecordTick(ctx context.Context, strategy string, duration time.Duration, batchSize, participants int)

	// RecordEmitted records messages that made it into a finalized batch.
	RecordEmitted(ctx context.Context, n int)

	// RecordDropped records messages or spawns the scheduler discarded.
	RecordDropped(ctx context.Context, reason string, n int)

	// RecordAgentFault records an isolated agent failure.
	RecordAgentFault(ctx context.Context)

	// RecordRun records a run completion.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordJournal records a journal entry write.
	RecordJournal(ctx context.Context, sizeBytes int64)
}

type otelMetrics struct {
	tickExecutions metric.Int64Counter
	tickLatency    metric.Float64Histogram
	batchSize      metric.Int64Histogram
	participants   metric.Int64Histogram
	emitted        metric.Int64Counter
	dropped        metric.Int64Counter
	agentFaults    metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	journalSize    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter(instrumentationName)
	m := &otelMetrics{}
	var err error

	if m.tickExecutions, err = meter.Int64Counter("tickworld.tick.executions",
		metric.WithDescription("Number of executed ticks"),
	); err != nil {
		return nil, err
	}
	if m.tickLatency, err = meter.Float64Histogram("tickworld.tick.latency_ms",
		metric.WithDescription("Tick latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.batchSize, err = meter.Int64Histogram("tickworld.tick.batch_size",
		metric.WithDescription("Messages delivered per tick"),
	); err != nil {
		return nil, err
	}
	if m.participants, err = meter.Int64Histogram("tickworld.tick.participants",
		metric.WithDescription("Agents processed per tick"),
	); err != nil {
		return nil, err
	}
	if m.emitted, err = meter.Int64Counter("tickworld.messages.emitted",
		metric.WithDescription("Messages placed into finalized batches"),
	); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter("tickworld.messages.dropped",
		metric.WithDescription("Messages or spawns discarded by the scheduler"),
	); err != nil {
		return nil, err
	}
	if m.agentFaults, err = meter.Int64Counter("tickworld.agent.faults",
		metric.WithDescription("Isolated agent failures"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("tickworld.run.count",
		metric.WithDescription("Number of runs"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("tickworld.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.journalSize, err = meter.Int64Histogram("tickworld.journal.size_bytes",
		metric.WithDescription("Journal entry size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithProvider returns a MetricsRecorder bound to provider
// instead of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	m, err := newOtelMetrics(provider)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelMetrics) RecordTick(ctx context.Context, strategy string, duration time.Duration, batchSize, participants int) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))
	m.tickExecutions.Add(ctx, 1, attrs)
	m.tickLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.batchSize.Record(ctx, int64(batchSize), attrs)
	m.participants.Record(ctx, int64(participants), attrs)
}

func (m *otelMetrics) RecordEmitted(ctx context.Context, n int) {
	if n > 0 {
		m.emitted.Add(ctx, int64(n))
	}
}

func (m *otelMetrics) RecordDropped(ctx context.Context, reason string, n int) {
	if n > 0 {
		m.dropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m *otelMetrics) RecordAgentFault(ctx context.Context) {
	m.agentFaults.Add(ctx, 1)
}

func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordJournal(ctx context.Context, sizeBytes int64) {
	m.journalSize.Record(ctx, sizeBytes)
}
