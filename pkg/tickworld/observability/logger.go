// Package observability provides logging, metrics and tracing helpers for
// tickworld runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run and agent context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 42, 7)
//	enriched.Info("doing work") // includes run_id, tick, agent_id
func EnrichLogger(logger *slog.Logger, runID string, tick, agentID uint64) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Uint64("tick", tick),
		slog.Uint64("agent_id", agentID),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID, strategy string, agents int) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("strategy", strategy),
		slog.Int("agents", agents),
	)
}

// LogRunComplete logs a run that stopped without a fatal error.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, ticks uint64, reason string) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Uint64("ticks", ticks),
		slog.String("reason", reason),
	)
}

// LogRunError logs a run aborted by a fatal error.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, tick uint64) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.Uint64("tick", tick),
	)
}

// LogTickStart logs the dispatch of a tick.
func LogTickStart(logger *slog.Logger, tick uint64, batchSize, participants int) {
	if logger == nil {
		return
	}
	logger.Debug("tick starting",
		slog.Uint64("tick", tick),
		slog.Int("batch_size", batchSize),
		slog.Int("participants", participants),
	)
}

// LogTickComplete logs a finalized tick.
func LogTickComplete(logger *slog.Logger, tick uint64, durationMs float64, nextBatch, agents int) {
	if logger == nil {
		return
	}
	logger.Debug("tick completed",
		slog.Uint64("tick", tick),
		slog.Float64("duration_ms", durationMs),
		slog.Int("next_batch_size", nextBatch),
		slog.Int("agents", agents),
	)
}

// LogAgentFault logs an isolated agent failure. The agent has been removed.
func LogAgentFault(logger *slog.Logger, tick, agentID uint64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("agent faulted",
		slog.Uint64("tick", tick),
		slog.Uint64("agent_id", agentID),
		slog.String("error", err.Error()),
	)
}

// LogDropped logs messages or spawns discarded by the scheduler.
func LogDropped(logger *slog.Logger, tick uint64, reason string, count int) {
	if logger == nil {
		return
	}
	logger.Warn("dropped",
		slog.Uint64("tick", tick),
		slog.String("reason", reason),
		slog.Int("count", count),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, tick uint64, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal failed",
		slog.Uint64("tick", tick),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
