package tickworld

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/tickworld/pkg/tickworld/observability"
)

// CapacityPolicy decides what happens when a finalized batch exceeds the
// configured bound.
type CapacityPolicy string

const (
	// CapacityDrop discards the whole batch, or the rejected spawn, and
	// reports one diagnostic.
	CapacityDrop CapacityPolicy = "drop"
	// CapacityAbort stops the run with a *CapacityError, for batches and for
	// agent spawns over the population bound.
	CapacityAbort CapacityPolicy = "abort"
)

// ParseCapacityPolicy converts "drop" or "abort" into a CapacityPolicy.
func ParseCapacityPolicy(s string) (CapacityPolicy, error) {
	switch p := CapacityPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CapacityDrop, CapacityAbort:
		return p, nil
	}
	return "", fmt.Errorf("unknown capacity policy %q", s)
}

// worldConfig holds configuration for a World.
type worldConfig struct {
	strategy       Strategy
	workers        int
	joinTimeout    time.Duration
	maxAgents      int
	maxBatch       int
	capacityPolicy CapacityPolicy
	addressing     bool
	tickInterval   time.Duration
	maxTicks       uint64
	runID          string
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	diagnostics    DiagnosticSink
}

func defaultWorldConfig() worldConfig {
	return worldConfig{
		strategy:       Sequential,
		capacityPolicy: CapacityDrop,
		logger:         slog.Default(),
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
	}
}

// Option configures a World.
type Option func(*worldConfig)

// WithStrategy selects the runner. Default: Sequential.
//
// The strategy is fixed for the lifetime of the World. Every strategy
// produces the same batches for the same inputs.
func WithStrategy(s Strategy) Option {
	return func(c *worldConfig) {
		c.strategy = s
	}
}

// WithWorkers sets the parallel pool size. Default: runtime.GOMAXPROCS(0).
// Panics if n < 1.
func WithWorkers(n int) Option {
	if n < 1 {
		panic("tickworld: workers must be > 0")
	}
	return func(c *worldConfig) {
		c.workers = n
	}
}

// WithJoinTimeout bounds how long a tick waits for runner goroutines.
// Exceeding it is a runner-fatal error. Default: no bound.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *worldConfig) {
		c.joinTimeout = d
	}
}

// WithMaxAgents bounds the live population. Spawns over the bound are
// rejected with a diagnostic. Default: unbounded.
func WithMaxAgents(n int) Option {
	return func(c *worldConfig) {
		c.maxAgents = n
	}
}

// WithMaxBatch bounds the number of messages in a finalized batch.
// What happens over the bound is set by WithCapacityPolicy. Default: unbounded.
func WithMaxBatch(n int) Option {
	return func(c *worldConfig) {
		c.maxBatch = n
	}
}

// WithCapacityPolicy selects the over-capacity behavior. Default: CapacityDrop.
func WithCapacityPolicy(p CapacityPolicy) Option {
	return func(c *worldConfig) {
		c.capacityPolicy = p
	}
}

// WithAddressing enables point-to-point delivery of messages implementing
// Addressed. Without it every message is broadcast. Default: false.
func WithAddressing(enabled bool) Option {
	return func(c *worldConfig) {
		c.addressing = enabled
	}
}

// WithTickInterval paces Run to at most one tick per d. Step is never paced.
// Default: 0 (as fast as possible).
func WithTickInterval(d time.Duration) Option {
	return func(c *worldConfig) {
		c.tickInterval = d
	}
}

// WithMaxTicks stops Run after n ticks. Default: 0 (no limit).
func WithMaxTicks(n uint64) Option {
	return func(c *worldConfig) {
		c.maxTicks = n
	}
}

// WithRunID sets the run identifier used in logs, spans and the journal.
// Default: a random UUID.
func WithRunID(id string) Option {
	return func(c *worldConfig) {
		c.runID = id
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *worldConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(c *worldConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a specific metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *worldConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry tracing through the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(c *worldConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager sets a specific span manager and enables tracing.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *worldConfig) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}

// WithDiagnostics sets where diagnostics are reported. Diagnostics are
// always logged and counted whether or not a sink is set.
func WithDiagnostics(sink DiagnosticSink) Option {
	return func(c *worldConfig) {
		c.diagnostics = sink
	}
}
