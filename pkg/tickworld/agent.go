package tickworld

import (
	"fmt"
	"math"
	"sync/atomic"
)

// AgentID identifies an agent for the lifetime of a World.
// IDs are allocated from a monotonic counter starting at 1 and never reused.
// The zero value means "no agent" and is used for externally injected messages.
type AgentID uint64

// String returns the ID in "agent-N" form.
func (id AgentID) String() string {
	return fmt.Sprintf("agent-%d", uint64(id))
}

// Agent is an independently stateful simulation unit.
//
// Process is called at most once per tick with the tick's batch (filtered
// by addressing and Subscriber, if applicable). It must not retain or modify
// batch, must not block on I/O, and interacts with other agents only through
// out. Returning an error, or panicking, is an agent fault: the agent is
// force-removed and nothing it queued during that tick is kept.
type Agent[M Message] interface {
	Process(ctx Context, batch []M, out *Replies[M]) (Flow, error)
}

// Starter is implemented by agents that need to act once when they join.
// Start runs in the agent's first participating tick, immediately before its
// first Process call, and may queue messages and spawns like Process.
type Starter[M Message] interface {
	Start(ctx Context, out *Replies[M]) Flow
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc[M Message] func(ctx Context, batch []M, out *Replies[M]) (Flow, error)

// Process calls f.
func (f AgentFunc[M]) Process(ctx Context, batch []M, out *Replies[M]) (Flow, error) {
	return f(ctx, batch, out)
}

// Replies collects what an agent produces during one tick.
// Nothing queued here is visible to any agent until the next tick.
type Replies[M Message] struct {
	messages []M
	spawns   []Agent[M]
}

// Queue emits msg into the next tick's batch.
func (r *Replies[M]) Queue(msg M) *Replies[M] {
	r.messages = append(r.messages, msg)
	return r
}

// QueueAll emits msgs, in order, into the next tick's batch.
func (r *Replies[M]) QueueAll(msgs ...M) *Replies[M] {
	r.messages = append(r.messages, msgs...)
	return r
}

// Spawn requests a new agent. It joins the registry after this tick's barrier
// and first participates in the following tick.
func (r *Replies[M]) Spawn(agent Agent[M]) *Replies[M] {
	r.spawns = append(r.spawns, agent)
	return r
}

// Messages returns the queued messages. Useful for unit-testing agents.
func (r *Replies[M]) Messages() []M {
	return r.messages
}

// Spawns returns the requested agents. Useful for unit-testing agents.
func (r *Replies[M]) Spawns() []Agent[M] {
	return r.spawns
}

// reset clears r for reuse, keeping the message buffer.
func (r *Replies[M]) reset() {
	clear(r.messages)
	r.messages = r.messages[:0]
	r.spawns = nil
}

type flowKind uint8

const (
	flowContinue flowKind = iota
	flowRemove
	flowSleep
	flowWait
)

// Flow tells the scheduler what to do with an agent after it processes a tick.
//
// Flow only controls when the agent is next called; an agent never misses a
// tick it should have seen.
type Flow struct {
	kind   flowKind
	ticks  uint64
	until  uint64
	handle *WaitHandle
}

// Continue keeps the agent participating every tick.
var Continue = Flow{}

// Remove requests the agent's removal at the end of the current tick.
func Remove() Flow {
	return Flow{kind: flowRemove}
}

// Sleep skips the agent for the next n ticks. Sleep(0) is Continue, and
// Sleep(math.MaxUint64) parks the agent for the rest of the run.
func Sleep(n uint64) Flow {
	if n == 0 {
		return Continue
	}
	return Flow{kind: flowSleep, ticks: n}
}

// Wait parks the agent until h is woken. A wake is noticed at the start of
// the next tick, never in the middle of one.
func Wait(h *WaitHandle) Flow {
	return Flow{kind: flowWait, handle: h}
}

// Removes reports whether the flow requests removal.
func (f Flow) Removes() bool {
	return f.kind == flowRemove
}

// String returns a short description of the flow.
func (f Flow) String() string {
	switch f.kind {
	case flowRemove:
		return "remove"
	case flowSleep:
		return fmt.Sprintf("sleep(%d)", f.ticks)
	case flowWait:
		return "wait"
	default:
		return "continue"
	}
}

// anchor fixes a relative sleep to absolute ticks once the current tick is known.
func (f Flow) anchor(tick uint64) Flow {
	if f.kind == flowSleep {
		if f.ticks > math.MaxUint64-tick {
			f.until = math.MaxUint64
		} else {
			f.until = tick + f.ticks
		}
	}
	return f
}

// ready reports whether an agent with this flow participates in tick.
func (f Flow) ready(tick uint64) bool {
	switch f.kind {
	case flowRemove:
		return false
	case flowSleep:
		return tick > f.until
	case flowWait:
		return f.handle == nil || f.handle.Woken()
	default:
		return true
	}
}

// WaitHandle wakes an agent parked with Wait. It is safe to share across
// goroutines; typically the driver or an input adapter holds it.
type WaitHandle struct {
	woken atomic.Bool
}

// NewWaitHandle returns an un-woken handle.
func NewWaitHandle() *WaitHandle {
	return &WaitHandle{}
}

// Wake marks the handle woken.
func (h *WaitHandle) Wake() {
	h.woken.Store(true)
}

// Woken reports whether Wake has been called.
func (h *WaitHandle) Woken() bool {
	return h.woken.Load()
}
