package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) (MetricsRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	rec, err := NewMetricsRecorderWithProvider(provider)
	require.NoError(t, err)
	return rec, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordTick(t *testing.T) {
	rec, reader := setupMetricsTest(t)
	ctx := context.Background()

	rec.RecordTick(ctx, "parallel", 3*time.Millisecond, 10, 4)
	rec.RecordTick(ctx, "parallel", time.Millisecond, 2, 4)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 2, sumOf(t, findMetric(rm, "tickworld.tick.executions")))

	hist := findMetric(rm, "tickworld.tick.batch_size")
	require.NotNil(t, hist)
	data, ok := hist.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.EqualValues(t, 2, data.DataPoints[0].Count)
	assert.EqualValues(t, 12, data.DataPoints[0].Sum)

	strategy, ok := data.DataPoints[0].Attributes.Value(attribute.Key("strategy"))
	require.True(t, ok)
	assert.Equal(t, "parallel", strategy.AsString())

	assert.NotNil(t, findMetric(rm, "tickworld.tick.latency_ms"))
	assert.NotNil(t, findMetric(rm, "tickworld.tick.participants"))
}

func TestRecordMessages(t *testing.T) {
	rec, reader := setupMetricsTest(t)
	ctx := context.Background()

	rec.RecordEmitted(ctx, 5)
	rec.RecordEmitted(ctx, 0)
	rec.RecordDropped(ctx, "capacity", 7)
	rec.RecordDropped(ctx, "addressing", 1)
	rec.RecordAgentFault(ctx)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 5, sumOf(t, findMetric(rm, "tickworld.messages.emitted")))
	assert.EqualValues(t, 8, sumOf(t, findMetric(rm, "tickworld.messages.dropped")))
	assert.EqualValues(t, 1, sumOf(t, findMetric(rm, "tickworld.agent.faults")))
}

func TestRecordRunAndJournal(t *testing.T) {
	rec, reader := setupMetricsTest(t)
	ctx := context.Background()

	rec.RecordRun(ctx, true, 10*time.Millisecond)
	rec.RecordRun(ctx, false, time.Millisecond)
	rec.RecordJournal(ctx, 512)

	rm := collectMetrics(t, reader)
	assert.EqualValues(t, 2, sumOf(t, findMetric(rm, "tickworld.run.count")))
	assert.NotNil(t, findMetric(rm, "tickworld.run.latency_ms"))

	journal := findMetric(rm, "tickworld.journal.size_bytes")
	require.NotNil(t, journal)
	assert.Equal(t, "By", journal.Unit)
}
