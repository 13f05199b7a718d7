package tickworld

import (
	"cmp"
	"slices"
	"sync"
)

// Emission is a message tagged with the agent that produced it.
type Emission[M Message] struct {
	// Source is the emitting agent.
	Source AgentID
	// Seq is the message's position among Source's emissions this tick.
	Seq int
	// Message is the emitted message.
	Message M
}

// Bus is the per-tick mailbox.
//
// It holds the batch being delivered this tick and accumulates emissions for
// the next one. Emissions from different agents are ordered by source ID and,
// within one source, by emission order; completion order never matters. That
// rule is what makes every runner produce the same next batch.
type Bus[M Message] struct {
	mu       sync.Mutex
	current  []M
	injected int
	pending  []Emission[M]
	external []M
	open     int
}

// NewBus creates a bus with an empty current batch.
func NewBus[M Message]() *Bus[M] {
	return &Bus[M]{}
}

// Current returns the batch for the tick in progress.
// Callers must treat it as read-only.
func (b *Bus[M]) Current() []M {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Injected returns the externally injected tail of the current batch.
func (b *Bus[M]) Injected() []M {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current[len(b.current)-b.injected:]
}

// Open returns a new emitter. Every emitter must be closed before Advance.
func (b *Bus[M]) Open() *Emitter[M] {
	b.mu.Lock()
	b.open++
	b.mu.Unlock()
	return &Emitter[M]{bus: b}
}

// Inject queues externally sourced messages for the next batch.
// Injected messages follow all agent emissions, in injection order.
// Safe for concurrent use.
func (b *Bus[M]) Inject(msgs ...M) {
	if len(msgs) == 0 {
		return
	}
	b.mu.Lock()
	b.external = append(b.external, msgs...)
	b.mu.Unlock()
}

// Pending returns the number of committed emissions awaiting Advance.
func (b *Bus[M]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Advance closes accumulation, installs the next batch as current and returns it.
// It fails with a *BusCorruptionError if any emitter is still open.
func (b *Bus[M]) Advance() ([]M, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open > 0 {
		return nil, &BusCorruptionError{Op: "advance", Outstanding: b.open}
	}

	slices.SortStableFunc(b.pending, func(x, y Emission[M]) int {
		if c := cmp.Compare(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Seq, y.Seq)
	})

	next := make([]M, 0, len(b.pending)+len(b.external))
	for _, e := range b.pending {
		next = append(next, e.Message)
	}
	next = append(next, b.external...)

	b.current = next
	b.injected = len(b.external)
	b.pending = b.pending[:0]
	b.external = nil
	return next, nil
}

// replace swaps the current batch after driver-side filtering.
// injected is the length of the externally sourced tail of batch.
func (b *Bus[M]) replace(batch []M, injected int) {
	b.mu.Lock()
	b.current = batch
	b.injected = injected
	b.mu.Unlock()
}

// Emitter buffers emissions locally and commits them to the bus on Close.
// An emitter is owned by one goroutine; it needs no locking until Close.
type Emitter[M Message] struct {
	bus    *Bus[M]
	buf    []Emission[M]
	seq    map[AgentID]int
	closed bool
}

// Emit appends msgs as emissions of source.
func (e *Emitter[M]) Emit(source AgentID, msgs ...M) {
	if e.closed {
		panic("tickworld: emit on closed emitter")
	}
	if len(msgs) == 0 {
		return
	}
	if e.seq == nil {
		e.seq = make(map[AgentID]int)
	}
	n := e.seq[source]
	for _, msg := range msgs {
		e.buf = append(e.buf, Emission[M]{Source: source, Seq: n, Message: msg})
		n++
	}
	e.seq[source] = n
}

// Len returns the number of buffered emissions.
func (e *Emitter[M]) Len() int {
	return len(e.buf)
}

// Close commits the buffered emissions. Closing twice is a no-op.
func (e *Emitter[M]) Close() {
	if e.closed {
		return
	}
	e.closed = true
	b := e.bus
	b.mu.Lock()
	b.pending = append(b.pending, e.buf...)
	b.open--
	b.mu.Unlock()
	e.buf = nil
}
