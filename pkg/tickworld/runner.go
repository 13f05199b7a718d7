package tickworld

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"time"
)

// Strategy selects how a tick's agents are executed.
type Strategy string

// Available strategies.
const (
	// Sequential processes agents one at a time on the driver's goroutine.
	Sequential Strategy = "sequential"
	// Cooperative processes agents one at a time on a single dedicated
	// goroutine, yielding between agents.
	Cooperative Strategy = "cooperative"
	// Parallel partitions agents across a fixed pool of worker goroutines.
	Parallel Strategy = "parallel"
)

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{Sequential, Cooperative, Parallel}
}

// ParseStrategy converts a name such as "parallel" into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case Sequential, Cooperative, Parallel:
		return s, nil
	case "cooperative-single", "single":
		return Cooperative, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// TickWork is everything a runner needs to execute one tick.
type TickWork[M Message] struct {
	// Tick is the tick number, starting at 1.
	Tick uint64
	// RunID identifies the run.
	RunID string
	// Batch is the read-only batch for this tick.
	Batch []M
	// Bus receives the tick's emissions.
	Bus *Bus[M]
	// Logger is the base logger handed to agent contexts.
	Logger *slog.Logger
	// Addressing enables point-to-point delivery of Addressed messages.
	Addressing bool

	agents []*slot[M]
}

// Participants returns how many agents take part in the tick.
func (w *TickWork[M]) Participants() int {
	return len(w.agents)
}

// Spawn is a spawn request collected during a tick.
type Spawn[M Message] struct {
	// Parent is the requesting agent.
	Parent AgentID
	// Agent is the agent to insert.
	Agent Agent[M]
}

// TickResult is what a runner reports after the tick barrier.
// Emissions are not part of the result; they are committed to the bus.
type TickResult[M Message] struct {
	// Processed is the number of agents that ran.
	Processed int
	// Removals are agents that requested removal, ascending.
	Removals []AgentID
	// Spawns are spawn requests, ordered by parent then request order.
	Spawns []Spawn[M]
	// Faults are isolated agent faults, ascending by agent.
	Faults []*AgentFault
}

// Runner executes ticks under one concurrency strategy.
//
// RunTick returns only after every agent's processing for the tick has
// finished (the barrier). It never mutates the registry; the World applies
// removals and spawns from the result afterwards.
type Runner[M Message] interface {
	Strategy() Strategy
	RunTick(ctx context.Context, work *TickWork[M]) (*TickResult[M], error)
	Close() error
}

// RunnerConfig configures NewRunner.
type RunnerConfig struct {
	// Strategy selects the runner. Default: Sequential.
	Strategy Strategy
	// Workers is the parallel pool size. Default: runtime.GOMAXPROCS(0).
	Workers int
	// JoinTimeout bounds how long a tick waits at the barrier for workers.
	// Zero waits indefinitely. Ignored by the sequential runner.
	JoinTimeout time.Duration
}

// NewRunner constructs the runner selected by cfg.
func NewRunner[M Message](cfg RunnerConfig) (Runner[M], error) {
	switch cfg.Strategy {
	case "", Sequential:
		return NewSequentialRunner[M](), nil
	case Cooperative:
		return NewCooperativeRunner[M](cfg.JoinTimeout), nil
	case Parallel:
		workers := cfg.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		return NewParallelRunner[M](workers, cfg.JoinTimeout), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
}

// outcome is one agent's contribution to a tick.
type outcome[M Message] struct {
	id     AgentID
	flow   Flow
	spawns []Agent[M]
	fault  *AgentFault
}

// runAgent delivers work.Batch to s, committing its emissions to em.
// Panics and errors become an AgentFault and everything the agent queued
// during the tick is discarded.
func runAgent[M Message](ctx context.Context, work *TickWork[M], s *slot[M], em *Emitter[M], replies *Replies[M]) (out outcome[M]) {
	out.id = s.id
	replies.reset()

	actx := &agentContext{
		Context: ctx,
		base:    work.Logger,
		runID:   work.RunID,
		tick:    work.Tick,
		agent:   s.id,
	}

	defer func() {
		if r := recover(); r != nil {
			out.fault = &AgentFault{
				Agent: s.id,
				Tick:  work.Tick,
				Panic: r,
				Stack: string(debug.Stack()),
			}
			out.spawns = nil
		}
	}()

	if !s.started {
		s.started = true
		if st, ok := s.agent.(Starter[M]); ok {
			// Only Remove from Start is honored; the agent still gets its
			// first Process call otherwise.
			if flow := st.Start(actx, replies); flow.Removes() {
				s.flow = flow
				out.flow = flow
				return commit(out, s, em, replies)
			}
		}
	}

	view := viewFor(work.Batch, s.id, s.agent, work.Addressing)
	flow, err := s.agent.Process(actx, view, replies)
	if err != nil {
		out.fault = &AgentFault{Agent: s.id, Tick: work.Tick, Err: err}
		return out
	}
	s.flow = flow.anchor(work.Tick)
	out.flow = s.flow
	return commit(out, s, em, replies)
}

func runnerPanic(strategy Strategy, tick uint64, p any) *RunnerFatalError {
	return &RunnerFatalError{
		Strategy: strategy,
		Tick:     tick,
		Cause:    fmt.Errorf("%w: %v", ErrRunnerPanic, p),
	}
}

// commit hands an agent's successful replies to the emitter.
func commit[M Message](out outcome[M], s *slot[M], em *Emitter[M], replies *Replies[M]) outcome[M] {
	em.Emit(s.id, replies.messages...)
	if len(replies.spawns) > 0 {
		out.spawns = slices.Clone(replies.spawns)
	}
	return out
}

// collect folds per-agent outcomes into a result ordered by agent ID.
func collect[M Message](outcomes []outcome[M]) *TickResult[M] {
	slices.SortFunc(outcomes, func(a, b outcome[M]) int {
		return cmp.Compare(a.id, b.id)
	})
	res := &TickResult[M]{Processed: len(outcomes)}
	for _, o := range outcomes {
		if o.fault != nil {
			res.Faults = append(res.Faults, o.fault)
			continue
		}
		if o.flow.Removes() {
			res.Removals = append(res.Removals, o.id)
		}
		for _, a := range o.spawns {
			res.Spawns = append(res.Spawns, Spawn[M]{Parent: o.id, Agent: a})
		}
	}
	return res
}

// partition splits agents into at most n contiguous, ascending chunks.
func partition[M Message](agents []*slot[M], n int) [][]*slot[M] {
	if n < 1 {
		n = 1
	}
	if len(agents) < n {
		n = len(agents)
	}
	chunks := make([][]*slot[M], 0, n)
	size, rem := len(agents)/max(n, 1), len(agents)%max(n, 1)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		chunks = append(chunks, agents[start:end])
		start = end
	}
	return chunks
}
