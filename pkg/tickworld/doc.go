/*
Package tickworld provides a deterministic, tick-based message scheduler for agents.

# Overview

A World holds a variable population of independently stateful agents that
talk to each other only through messages. Time advances in discrete ticks.
In every tick each ready agent receives the same read-only batch (everything
emitted during the previous tick) and may emit messages, spawn agents, or
remove itself. Nothing emitted during a tick is visible before the next one.

The same population can be executed by three interchangeable runners:
  - Sequential: agents run one by one on the driver goroutine
  - Cooperative: agents run one by one on a dedicated goroutine
  - Parallel: agents are partitioned across a fixed worker pool

Emissions are ordered by source agent ID, then by emission order, so every
runner produces identical batches for identical inputs.

# Basic Usage

Define a message type and agents, then build and run a world:

	type Msg struct {
	    K    string
	    From tickworld.AgentID
	}

	func (m Msg) Kind() string { return m.K }

	pinger := tickworld.AgentFunc[Msg](func(ctx tickworld.Context, batch []Msg, out *tickworld.Replies[Msg]) (tickworld.Flow, error) {
	    for _, m := range batch {
	        if m.K == "pong" {
	            out.Queue(Msg{K: "ping", From: ctx.AgentID()})
	        }
	    }
	    return tickworld.Continue, nil
	})

	w, err := tickworld.New[Msg](tickworld.WithStrategy(tickworld.Parallel))
	if err != nil {
	    log.Fatal(err)
	}
	defer w.Close()

	w.Spawn(pinger)
	w.Inject(Msg{K: "pong"})
	err = w.Run(ctx)

# Tick Protocol

Step executes one tick:

 1. Ready agents are computed in ascending ID order.
 2. The runner delivers the current batch and waits at the barrier.
 3. Faulted agents and agents that returned Remove() are removed.
 4. Spawn requests are inserted, ordered by parent ID.
 5. The input source is polled; its messages follow agent emissions.
 6. The next batch is finalized: undeliverable addressed messages are
    dropped, the batch bound is enforced, the idle message is added to an
    empty batch, the batch is journaled and observers see it.

Agent IDs start at 1 and are never reused. Tick numbers start at 1.

# Flow

Process returns a Flow that controls when the agent runs next:

	return tickworld.Continue, nil     // every tick
	return tickworld.Remove(), nil     // leave after this tick
	return tickworld.Sleep(3), nil     // skip the next three ticks
	return tickworld.Wait(handle), nil // skip ticks until handle.Wake()

# Failure Isolation

An agent that returns an error or panics faults alone: the fault is
recovered into an *AgentFault, nothing it queued that tick is kept, it is
removed after the barrier, and a Diagnostic is reported. Other agents in the
same tick are unaffected.

Bus misuse (*BusCorruptionError), runner coordination failures
(*RunnerFatalError) and batches over capacity under CapacityAbort
(*CapacityError) are fatal and end the run. Use IsFatal to classify errors.

# Journal and Replay

Record every finalized batch, then verify a run reproduces exactly:

	store := journal.NewMemoryStore()
	w.Record(store, journal.JSONCodec[Msg]{})
	w.Run(ctx)

	report, err := tickworld.Replay(ctx, store, w.RunID(), journal.JSONCodec[Msg]{}, build)

# Observability

Logging uses log/slog. Metrics and tracing use OpenTelemetry:

	w, err := tickworld.New[Msg](
	    tickworld.WithLogger(logger),
	    tickworld.WithMetrics(true),
	    tickworld.WithTracing(true),
	    tickworld.WithRunID("run-123"))

Metrics: tickworld.tick.executions, tickworld.tick.latency_ms,
tickworld.messages.emitted, tickworld.messages.dropped, tickworld.agent.faults
and others. Spans: tickworld.run > tickworld.tick.
*/
package tickworld
