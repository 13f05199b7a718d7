package tickworld

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

// Diagnostic kinds.
const (
	// DiagAgentFault: an agent returned an error or panicked and was removed.
	DiagAgentFault DiagnosticKind = "agent_fault"
	// DiagUndeliverable: an addressed message named a removed or unknown agent.
	DiagUndeliverable DiagnosticKind = "undeliverable"
	// DiagNotDelivered: an addressed message reached a live recipient that did
	// not take it, because it was parked or filtered the message's kind.
	DiagNotDelivered DiagnosticKind = "not_delivered"
	// DiagBatchDropped: a batch over the size bound was discarded.
	DiagBatchDropped DiagnosticKind = "batch_dropped"
	// DiagSpawnRejected: a spawn request hit the population bound.
	DiagSpawnRejected DiagnosticKind = "spawn_rejected"
	// DiagJournalFailed: a journal write failed; the run continues.
	DiagJournalFailed DiagnosticKind = "journal_failed"
)

// Diagnostic is a non-fatal event the scheduler surfaces instead of silently
// losing work. Every diagnostic is also logged and counted.
type Diagnostic struct {
	Kind DiagnosticKind
	// Tick is the tick during which the event happened.
	Tick uint64
	// Agent is the agent concerned, or 0.
	Agent AgentID
	// Count is how many messages or spawns were affected (at least 1).
	Count int
	// Err carries the cause, if any.
	Err error
	// Message is the affected message for DiagUndeliverable and
	// DiagNotDelivered.
	Message any
	// Time is when the diagnostic was raised.
	Time time.Time
}

// String returns a one-line summary.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("tick %d: %s", d.Tick, d.Kind)
	if d.Agent != 0 {
		s += " " + d.Agent.String()
	}
	if d.Count > 1 {
		s += fmt.Sprintf(" (%d)", d.Count)
	}
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

// DiagnosticSink receives diagnostics. Report is called from the driver
// goroutine, between ticks, in a deterministic order.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(d Diagnostic)

// Report calls f.
func (f DiagnosticFunc) Report(d Diagnostic) {
	f(d)
}

// MemorySink keeps diagnostics in memory, up to a limit.
// When full, the oldest diagnostic is evicted. Safe for concurrent use.
type MemorySink struct {
	mu      sync.RWMutex
	items   []Diagnostic
	limit   int
	evicted int
}

// NewMemorySink creates a sink holding at most limit diagnostics.
// limit <= 0 means unbounded.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

// Report implements DiagnosticSink.
func (s *MemorySink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.items) >= s.limit {
		s.items = slices.Delete(s.items, 0, 1)
		s.evicted++
	}
	s.items = append(s.items, d)
}

// All returns a copy of the stored diagnostics, oldest first.
func (s *MemorySink) All() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Kind returns the stored diagnostics of kind k.
func (s *MemorySink) Kind(k DiagnosticKind) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Diagnostic
	for _, d := range s.items {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of stored diagnostics.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Evicted returns how many diagnostics were discarded to respect the limit.
func (s *MemorySink) Evicted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// Clear removes all stored diagnostics.
func (s *MemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.evicted = 0
}
