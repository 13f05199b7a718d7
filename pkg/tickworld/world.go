package tickworld

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/tickworld/pkg/tickworld/journal"
	"github.com/randalmurphal/tickworld/pkg/tickworld/observability"
)

// Response is an Observer's verdict on a finalized batch.
type Response int

const (
	// ResponseContinue lets the run go on.
	ResponseContinue Response = iota
	// ResponseQuit stops Run before the batch is delivered.
	ResponseQuit
)

// Observer sees every finalized batch, with the tick that will deliver it.
// It runs on the driver goroutine between ticks and must not retain batch.
type Observer[M Message] interface {
	Observe(tick uint64, batch []M) Response
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[M Message] func(tick uint64, batch []M) Response

// Observe calls f.
func (f ObserverFunc[M]) Observe(tick uint64, batch []M) Response {
	return f(tick, batch)
}

// InputSource feeds external messages into the world. Poll is called once per
// tick, after the barrier, and its messages join the next batch after all
// agent emissions. Poll may block. Returning ErrInputClosed ends the run
// cleanly after the current tick; any other error is fatal.
type InputSource[M Message] interface {
	Poll(ctx context.Context, tick uint64) ([]M, error)
}

// InputFunc adapts a function to InputSource.
type InputFunc[M Message] func(ctx context.Context, tick uint64) ([]M, error)

// Poll calls f.
func (f InputFunc[M]) Poll(ctx context.Context, tick uint64) ([]M, error) {
	return f(ctx, tick)
}

// StepReport summarizes one executed tick.
type StepReport struct {
	// Tick is the tick that was executed.
	Tick uint64
	// Processed is the number of agents that ran.
	Processed int
	// Removed lists agents removed after the tick, ascending.
	Removed []AgentID
	// Spawned lists agents added after the tick, in ID order.
	Spawned []AgentID
	// Faults lists isolated agent failures, ascending by agent.
	Faults []*AgentFault
	// Injected is the number of external messages in the next batch.
	Injected int
	// Dropped counts messages discarded while finalizing the next batch.
	Dropped int
	// Undelivered counts addressed messages in this tick's batch that their
	// live recipient did not take.
	Undelivered int
	// NextBatch is the size of the batch for the following tick.
	NextBatch int
	// Shutdown is true if the next batch carries a shutdown message.
	Shutdown bool
	// Quit is true if an observer asked to stop.
	Quit bool
	// Duration is how long the tick took, end to end.
	Duration time.Duration
}

// World drives a population of agents tick by tick.
//
// A World is driven from a single goroutine: Spawn, Step, Run and the hook
// setters must not be called concurrently. Inject and Stop are safe from any
// goroutine.
type World[M Message] struct {
	cfg      worldConfig
	registry *Registry[M]
	bus      *Bus[M]
	runner   Runner[M]

	tick      uint64
	primed    bool
	closed    bool
	shutdown  bool
	quit      bool
	inputDone bool
	fatal     error
	stopped   atomic.Bool

	input     InputSource[M]
	observers []Observer[M]
	idle      func() M
	journal   journal.Store
	codec     journal.Codec[M]
}

// New creates a World.
//
// Example:
//
//	w, err := tickworld.New[Msg](
//	    tickworld.WithStrategy(tickworld.Parallel),
//	    tickworld.WithMaxTicks(1000),
//	)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	w.Spawn(NewPinger())
//	err = w.Run(ctx)
func New[M Message](opts ...Option) (*World[M], error) {
	cfg := defaultWorldConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	if cfg.capacityPolicy != CapacityDrop && cfg.capacityPolicy != CapacityAbort {
		return nil, fmt.Errorf("unknown capacity policy %q", cfg.capacityPolicy)
	}

	runner, err := NewRunner[M](RunnerConfig{
		Strategy:    cfg.strategy,
		Workers:     cfg.workers,
		JoinTimeout: cfg.joinTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &World[M]{
		cfg:      cfg,
		registry: NewRegistry[M](cfg.maxAgents),
		bus:      NewBus[M](),
		runner:   runner,
	}, nil
}

// SetInput installs the input source. Must be called before the first tick.
func (w *World[M]) SetInput(src InputSource[M]) error {
	if w.primed {
		return ErrAlreadyStarted
	}
	w.input = src
	return nil
}

// Observe adds an observer. Must be called before the first tick.
func (w *World[M]) Observe(o Observer[M]) error {
	if w.primed {
		return ErrAlreadyStarted
	}
	w.observers = append(w.observers, o)
	return nil
}

// SetIdleMessage installs a factory for the message delivered alone when a
// finalized batch would otherwise be empty. Must be called before the first tick.
func (w *World[M]) SetIdleMessage(fn func() M) error {
	if w.primed {
		return ErrAlreadyStarted
	}
	w.idle = fn
	return nil
}

// Record journals every finalized batch to store. Must be called before the
// first tick. The store is not closed by the World.
func (w *World[M]) Record(store journal.Store, codec journal.Codec[M]) error {
	if w.primed {
		return ErrAlreadyStarted
	}
	if store == nil || codec == nil {
		return ErrNoJournal
	}
	w.journal = store
	w.codec = codec
	return nil
}

// Spawn adds an agent. Before the first tick the agent sees the initial batch;
// afterwards it joins between ticks and first runs in the next one.
func (w *World[M]) Spawn(agent Agent[M]) (AgentID, error) {
	if w.closed {
		return 0, ErrWorldClosed
	}
	return w.registry.Spawn(agent)
}

// Inject queues external messages for the next batch. Safe for concurrent use.
func (w *World[M]) Inject(msgs ...M) {
	w.bus.Inject(msgs...)
}

// Stop asks Run to return after the tick in progress. Safe for concurrent use.
func (w *World[M]) Stop() {
	w.stopped.Store(true)
}

// Tick returns the number of the last executed tick (0 before the first).
func (w *World[M]) Tick() uint64 {
	return w.tick
}

// RunID returns the run identifier.
func (w *World[M]) RunID() string {
	return w.cfg.runID
}

// Strategy returns the runner strategy.
func (w *World[M]) Strategy() Strategy {
	return w.runner.Strategy()
}

// Current returns the batch the next tick will deliver. Read-only.
func (w *World[M]) Current() []M {
	return w.bus.Current()
}

// Len returns the number of live agents.
func (w *World[M]) Len() int {
	return w.registry.Len()
}

// Agents yields live agents in ascending ID order.
func (w *World[M]) Agents() iter.Seq2[AgentID, Agent[M]] {
	return w.registry.All()
}

// Close stops the runner's goroutines. The World cannot be used afterwards.
func (w *World[M]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.runner.Close()
}

// prime builds the batch for tick 1 from messages injected before the run.
func (w *World[M]) prime(ctx context.Context) error {
	if w.primed {
		return nil
	}
	w.primed = true
	next, err := w.bus.Advance()
	if err != nil {
		return w.fail(err)
	}
	var report StepReport
	if err := w.finalize(ctx, 1, next, &report); err != nil {
		return w.fail(err)
	}
	return nil
}

// Step executes exactly one tick.
//
// The batch built by the previous tick (or, on the first call, from messages
// injected before the run) is delivered to every ready agent. After the
// barrier, faults, removals and spawns are applied, input is polled, and the
// next batch is finalized.
func (w *World[M]) Step(ctx context.Context) (*StepReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if w.closed {
		return nil, ErrWorldClosed
	}
	if w.fatal != nil {
		return nil, w.fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.prime(ctx); err != nil {
		return nil, err
	}

	done := observability.TimedOperation()
	start := time.Now()
	w.tick++
	tick := w.tick
	batch := w.bus.Current()
	participants := w.registry.participants(tick)

	tickCtx, span := w.cfg.spans.StartTickSpan(ctx, tick, len(batch))
	observability.LogTickStart(w.cfg.logger, tick, len(batch), len(participants))

	report, err := w.step(tickCtx, tick, batch, participants)
	w.cfg.spans.EndSpanWithError(span, err)
	if err != nil {
		return nil, w.fail(err)
	}

	report.Duration = time.Since(start)
	w.cfg.metrics.RecordTick(ctx, string(w.runner.Strategy()), report.Duration, len(batch), report.Processed)
	observability.LogTickComplete(w.cfg.logger, tick, done(), report.NextBatch, w.registry.Len())
	return report, nil
}

func (w *World[M]) step(ctx context.Context, tick uint64, batch []M, participants []*slot[M]) (*StepReport, error) {
	work := &TickWork[M]{
		Tick:       tick,
		RunID:      w.cfg.runID,
		Batch:      batch,
		Bus:        w.bus,
		Logger:     w.cfg.logger,
		Addressing: w.cfg.addressing,
		agents:     participants,
	}
	var undelivered int
	if w.cfg.addressing {
		undelivered = w.checkDelivery(ctx, tick, batch, participants)
	}

	res, err := w.runner.RunTick(ctx, work)
	if err != nil {
		return nil, err
	}

	report := &StepReport{
		Tick:        tick,
		Processed:   res.Processed,
		Faults:      res.Faults,
		Undelivered: undelivered,
	}

	for _, f := range res.Faults {
		w.registry.Remove(f.Agent)
		w.report(ctx, Diagnostic{Kind: DiagAgentFault, Tick: tick, Agent: f.Agent, Count: 1, Err: f})
	}
	for _, id := range res.Removals {
		w.registry.Remove(id)
	}
	report.Removed = w.registry.Commit()

	for _, sp := range res.Spawns {
		id, err := w.registry.Spawn(sp.Agent)
		if err != nil {
			if w.cfg.capacityPolicy == CapacityAbort {
				return nil, err
			}
			w.report(ctx, Diagnostic{Kind: DiagSpawnRejected, Tick: tick, Agent: sp.Parent, Count: 1, Err: err})
			continue
		}
		report.Spawned = append(report.Spawned, id)
	}

	if err := w.pollInput(ctx, tick); err != nil {
		return nil, err
	}

	next, err := w.bus.Advance()
	if err != nil {
		return nil, err
	}
	if err := w.finalize(ctx, tick+1, next, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (w *World[M]) pollInput(ctx context.Context, tick uint64) error {
	if w.input == nil || w.inputDone {
		return nil
	}
	msgs, err := w.input.Poll(ctx, tick)
	w.bus.Inject(msgs...)
	if errors.Is(err, ErrInputClosed) {
		w.inputDone = true
		return nil
	}
	// Cancellation while blocked in Poll still completes the tick; Run
	// returns ctx.Err() before the next one.
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil && errors.Is(err, ctxErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("poll input at tick %d: %w", tick, err)
	}
	return nil
}

// checkDelivery reports addressed messages in batch whose live recipient will
// not see them this tick: the recipient is parked, or it does not subscribe
// to the message's kind. Recipients that are gone were already reported when
// the batch was finalized.
func (w *World[M]) checkDelivery(ctx context.Context, tick uint64, batch []M, participants []*slot[M]) int {
	n := 0
	for _, msg := range batch {
		id, ok := recipientOf(msg)
		if !ok || !w.registry.Has(id) {
			continue
		}
		var cause error
		i, found := slices.BinarySearchFunc(participants, id, func(s *slot[M], id AgentID) int {
			return cmp.Compare(s.id, id)
		})
		if !found {
			cause = ErrRecipientParked
		} else if sub, ok := participants[i].agent.(Subscriber); ok && !sub.Subscribes(msg.Kind()) {
			cause = ErrRecipientFiltered
		}
		if cause == nil {
			continue
		}
		n++
		w.report(ctx, Diagnostic{Kind: DiagNotDelivered, Tick: tick, Agent: id, Count: 1, Err: cause, Message: msg})
	}
	return n
}

// finalize turns an advanced batch into the batch delivered at tick.
func (w *World[M]) finalize(ctx context.Context, tick uint64, next []M, report *StepReport) error {
	inputs := w.bus.Injected()
	injected := len(inputs)

	if w.cfg.addressing {
		kept := next[:0:0]
		tail := len(next) - injected
		for i, msg := range next {
			if id, ok := recipientOf(msg); ok && !w.registry.Has(id) {
				report.Dropped++
				if i >= tail {
					injected--
				}
				w.report(ctx, Diagnostic{Kind: DiagUndeliverable, Tick: tick - 1, Agent: id, Count: 1, Message: msg})
				continue
			}
			kept = append(kept, msg)
		}
		next = kept
	}

	if w.cfg.maxBatch > 0 && len(next) > w.cfg.maxBatch {
		capErr := &CapacityError{Resource: "batch", Limit: w.cfg.maxBatch, Requested: len(next), Tick: tick - 1}
		if w.cfg.capacityPolicy == CapacityAbort {
			return capErr
		}
		report.Dropped += len(next)
		w.report(ctx, Diagnostic{Kind: DiagBatchDropped, Tick: tick - 1, Count: len(next), Err: capErr})
		next, injected = nil, 0
	}

	if len(next) == 0 && w.idle != nil {
		next = []M{w.idle()}
	}
	w.bus.replace(next, injected)

	report.Injected = injected
	report.NextBatch = len(next)
	w.cfg.metrics.RecordEmitted(ctx, len(next))

	w.record(ctx, tick, inputs, next)

	for _, o := range w.observers {
		if o.Observe(tick, next) == ResponseQuit {
			w.quit = true
			report.Quit = true
		}
	}
	for _, msg := range next {
		if IsShutdown(msg) {
			w.shutdown = true
			report.Shutdown = true
			break
		}
	}
	return nil
}

func (w *World[M]) record(ctx context.Context, tick uint64, inputs, batch []M) {
	if w.journal == nil {
		return
	}
	entry, err := journal.NewEntry(w.cfg.runID, tick, inputs, batch, w.codec)
	if err != nil {
		w.report(ctx, Diagnostic{Kind: DiagJournalFailed, Tick: tick, Count: 1, Err: err})
		return
	}
	data, err := entry.Marshal()
	if err == nil {
		err = w.journal.Append(w.cfg.runID, tick, data)
	}
	if err != nil {
		w.report(ctx, Diagnostic{Kind: DiagJournalFailed, Tick: tick, Count: 1, Err: err})
		return
	}
	w.cfg.metrics.RecordJournal(ctx, int64(len(data)))
}

// report surfaces a diagnostic to the log, metrics, trace and sink.
func (w *World[M]) report(ctx context.Context, d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	switch d.Kind {
	case DiagAgentFault:
		observability.LogAgentFault(w.cfg.logger, d.Tick, uint64(d.Agent), d.Err)
		w.cfg.metrics.RecordAgentFault(ctx)
	case DiagJournalFailed:
		observability.LogJournalError(w.cfg.logger, d.Tick, "append", d.Err)
	default:
		observability.LogDropped(w.cfg.logger, d.Tick, string(d.Kind), d.Count)
		w.cfg.metrics.RecordDropped(ctx, string(d.Kind), d.Count)
	}
	w.cfg.spans.AddSpanEvent(ctx, "tickworld."+string(d.Kind),
		attribute.Int64("agent.id", int64(d.Agent)),
		attribute.Int("count", d.Count),
	)
	if w.cfg.diagnostics != nil {
		w.cfg.diagnostics.Report(d)
	}
}

func (w *World[M]) fail(err error) error {
	if w.fatal == nil {
		w.fatal = err
	}
	return err
}

// stopReason returns why Run should stop before the next tick, or "".
func (w *World[M]) stopReason() string {
	switch {
	case w.stopped.Load():
		return "stopped"
	case w.shutdown:
		return "shutdown"
	case w.quit:
		return "observer quit"
	case w.inputDone:
		return "input closed"
	case w.cfg.maxTicks > 0 && w.tick >= w.cfg.maxTicks:
		return "max ticks"
	case w.registry.Len() == 0 && w.input == nil:
		return "no agents"
	}
	return ""
}

// Run executes ticks until a stop condition holds: Stop was called, a
// shutdown message was finalized, an observer returned ResponseQuit, the
// input source closed, the tick limit was reached, or no agents remain and
// there is no input source. Conditions are only checked between ticks.
//
// Agent faults do not stop the run. Bus corruption, runner failures, a
// batch or agent spawn over capacity under CapacityAbort, and input errors do; so does ctx
// being canceled, in which case ctx.Err() is returned.
func (w *World[M]) Run(ctx context.Context) (runErr error) {
	if ctx == nil {
		return ErrNilContext
	}
	if w.closed {
		return ErrWorldClosed
	}

	startTime := time.Now()
	runID := w.cfg.runID
	observability.LogRunStart(w.cfg.logger, runID, string(w.runner.Strategy()), w.registry.Len())

	if w.cfg.tracingEnabled {
		var span trace.Span
		ctx, span = w.cfg.spans.StartRunSpan(ctx, runID, string(w.runner.Strategy()))
		defer func() { w.cfg.spans.EndSpanWithError(span, runErr) }()
	}

	var limiter *rate.Limiter
	if w.cfg.tickInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(w.cfg.tickInterval), 1)
	}

	reason := ""
	runErr = w.prime(ctx)
	for runErr == nil {
		if reason = w.stopReason(); reason != "" {
			break
		}
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		if limiter != nil {
			if runErr = limiter.Wait(ctx); runErr != nil {
				break
			}
		}
		_, runErr = w.Step(ctx)
	}

	duration := time.Since(startTime)
	w.cfg.metrics.RecordRun(ctx, runErr == nil, duration)
	durationMs := float64(duration.Microseconds()) / 1000
	if runErr != nil {
		observability.LogRunError(w.cfg.logger, runID, runErr, durationMs, w.tick)
	} else {
		observability.LogRunComplete(w.cfg.logger, runID, durationMs, w.tick, reason)
	}
	return runErr
}

