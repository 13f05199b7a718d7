package tickworld

import (
	"context"
	"log/slog"
)

// Context is what an agent sees of the world while it processes a tick.
// It extends context.Context with scheduler metadata and a logger.
//
// A Context is only valid for the duration of the Process or Start call it
// was passed to.
type Context interface {
	context.Context

	// Logger returns the world's logger enriched with run_id, tick and agent_id.
	// Never returns nil.
	Logger() *slog.Logger

	// RunID returns the identifier of the current run.
	RunID() string

	// Tick returns the tick being processed (1 for the first tick).
	Tick() uint64

	// AgentID returns the agent being processed.
	AgentID() AgentID
}

// agentContext is the runner's Context implementation. The enriched logger
// is built lazily because most agents never log.
type agentContext struct {
	context.Context

	base   *slog.Logger
	logger *slog.Logger
	runID  string
	tick   uint64
	agent  AgentID
}

// Logger returns the enriched logger.
func (c *agentContext) Logger() *slog.Logger {
	if c.logger == nil {
		c.logger = c.base.With(
			slog.String("run_id", c.runID),
			slog.Uint64("tick", c.tick),
			slog.Uint64("agent_id", uint64(c.agent)),
		)
	}
	return c.logger
}

// RunID returns the run identifier.
func (c *agentContext) RunID() string {
	return c.runID
}

// Tick returns the current tick.
func (c *agentContext) Tick() uint64 {
	return c.tick
}

// AgentID returns the agent being processed.
func (c *agentContext) AgentID() AgentID {
	return c.agent
}

// NewContext builds a standalone Context, for unit-testing agents outside a World.
func NewContext(ctx context.Context, runID string, tick uint64, agent AgentID, logger *slog.Logger) Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &agentContext{
		Context: ctx,
		base:    logger,
		runID:   runID,
		tick:    tick,
		agent:   agent,
	}
}
