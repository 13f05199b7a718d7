package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) (SpanManager, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return NewSpanManagerWithProvider(tp), exporter
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartRunSpan(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	_, span := sm.StartRunSpan(context.Background(), "run-123", "sequential")
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "tickworld.run", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	id, ok := attrValue(spans[0].Attributes, "run.id")
	require.True(t, ok)
	assert.Equal(t, "run-123", id.AsString())
}

func TestStartTickSpan_ChildOfRun(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	ctx, run := sm.StartRunSpan(context.Background(), "run-1", "parallel")
	_, tick := sm.StartTickSpan(ctx, 7, 3)
	sm.EndSpanWithError(tick, nil)
	sm.EndSpanWithError(run, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	tickSpan, runSpan := spans[0], spans[1]
	assert.Equal(t, "tickworld.tick", tickSpan.Name)
	assert.Equal(t, runSpan.SpanContext.SpanID(), tickSpan.Parent.SpanID())

	n, ok := attrValue(tickSpan.Attributes, "tick")
	require.True(t, ok)
	assert.EqualValues(t, 7, n.AsInt64())
}

func TestEndSpanWithError(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	_, span := sm.StartRunSpan(context.Background(), "run-1", "sequential")
	sm.EndSpanWithError(span, errors.New("bus corrupted"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "bus corrupted", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
}

func TestAddSpanEvent(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	ctx, span := sm.StartTickSpan(context.Background(), 1, 0)
	sm.AddSpanEvent(ctx, "agent.fault", attribute.Int64("agent.id", 4))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "agent.fault", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { AddSpanEvent(context.Background(), "orphan") })
}
