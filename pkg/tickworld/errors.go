package tickworld

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tick protocol.
var (
	// ErrAgentFault indicates a single agent violated its processing contract.
	// Agent faults never escape a tick; they are surfaced as diagnostics.
	ErrAgentFault = errors.New("agent fault")

	// ErrBusCorruption indicates the bus was misused, e.g. advanced while
	// emitters were still open.
	ErrBusCorruption = errors.New("bus corruption")

	// ErrRunnerFatal indicates the runner could not coordinate its workers.
	ErrRunnerFatal = errors.New("runner fatal")

	// ErrCapacityExceeded indicates the registry or a batch exceeded its bound.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrJoinTimeout indicates workers did not reach the tick barrier in time.
	ErrJoinTimeout = errors.New("workers did not join before timeout")

	// ErrRunnerPanic indicates a runner goroutine panicked outside agent code.
	ErrRunnerPanic = errors.New("runner panicked")
)

// Sentinel errors for the driver.
var (
	// ErrNilContext indicates Step or Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrWorldClosed indicates the world was used after Close.
	ErrWorldClosed = errors.New("world closed")

	// ErrInputClosed is returned by an InputSource that has no more input.
	// Run treats it as a clean shutdown request.
	ErrInputClosed = errors.New("input closed")

	// ErrUnknownStrategy indicates an unrecognised runner strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrAlreadyStarted indicates a hook was installed after the first tick.
	ErrAlreadyStarted = errors.New("world already started")

	// ErrRecipientParked indicates an addressed message arrived while its
	// recipient was sleeping or waiting.
	ErrRecipientParked = errors.New("recipient parked")

	// ErrRecipientFiltered indicates an addressed message's kind is not one
	// its recipient subscribes to.
	ErrRecipientFiltered = errors.New("recipient does not subscribe to kind")
)

// Sentinel errors for journaling and replay.
var (
	// ErrNoJournal indicates a replay was requested for a run with no entries.
	ErrNoJournal = errors.New("no journal entries for run")

	// ErrReplayMismatch indicates a replayed batch differs from the recorded one.
	ErrReplayMismatch = errors.New("replay mismatch")
)

// AgentFault describes one agent's failed processing during a tick.
// The agent is force-removed after the tick barrier and its emissions and
// spawn requests for that tick are discarded.
type AgentFault struct {
	// Agent is the faulting agent.
	Agent AgentID
	// Tick is the tick during which the fault occurred.
	Tick uint64
	// Err is the error the agent returned, or nil if it panicked.
	Err error
	// Panic is the recovered panic value, if any.
	Panic any
	// Stack is the stack trace captured at the panic.
	Stack string
}

// Error implements the error interface.
func (f *AgentFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("agent %d panicked at tick %d: %v", f.Agent, f.Tick, f.Panic)
	}
	return fmt.Sprintf("agent %d faulted at tick %d: %v", f.Agent, f.Tick, f.Err)
}

// Unwrap returns the agent's error for errors.Is/As support.
func (f *AgentFault) Unwrap() error {
	return f.Err
}

// Is reports whether target is ErrAgentFault.
func (f *AgentFault) Is(target error) bool {
	return target == ErrAgentFault
}

// BusCorruptionError describes bus API misuse.
type BusCorruptionError struct {
	// Op is the bus operation that detected the corruption.
	Op string
	// Outstanding is the number of emitters still open.
	Outstanding int
}

// Error implements the error interface.
func (e *BusCorruptionError) Error() string {
	return fmt.Sprintf("bus %s: %d emitters still open", e.Op, e.Outstanding)
}

// Unwrap returns ErrBusCorruption for errors.Is support.
func (e *BusCorruptionError) Unwrap() error {
	return ErrBusCorruption
}

// RunnerFatalError describes a coordination failure that aborts the run.
type RunnerFatalError struct {
	// Strategy is the runner that failed.
	Strategy Strategy
	// Tick is the tick being executed.
	Tick uint64
	// Cause is the underlying failure.
	Cause error
}

// Error implements the error interface.
func (e *RunnerFatalError) Error() string {
	return fmt.Sprintf("%s runner at tick %d: %v", e.Strategy, e.Tick, e.Cause)
}

// Unwrap returns the cause.
func (e *RunnerFatalError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrRunnerFatal.
func (e *RunnerFatalError) Is(target error) bool {
	return target == ErrRunnerFatal
}

// CapacityError describes a bound being exceeded.
type CapacityError struct {
	// Resource is "agents" or "batch".
	Resource string
	// Limit is the configured bound.
	Limit int
	// Requested is the size that would have resulted.
	Requested int
	// Tick is the tick at which the bound was hit (0 before the first tick).
	Tick uint64
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s capacity exceeded at tick %d: %d > %d", e.Resource, e.Tick, e.Requested, e.Limit)
}

// Unwrap returns ErrCapacityExceeded for errors.Is support.
func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// ReplayMismatchError pinpoints where a replay diverged from its journal.
type ReplayMismatchError struct {
	// RunID is the replayed run.
	RunID string
	// Tick is the first tick whose batch differed.
	Tick uint64
	// Index is the first differing message position, or -1 if only lengths differ.
	Index int
	// Want and Got are the recorded and replayed batch lengths.
	Want, Got int
}

// Error implements the error interface.
func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay of %s diverged at tick %d (message %d, want %d messages, got %d)",
		e.RunID, e.Tick, e.Index, e.Want, e.Got)
}

// Unwrap returns ErrReplayMismatch for errors.Is support.
func (e *ReplayMismatchError) Unwrap() error {
	return ErrReplayMismatch
}

// IsFatal reports whether err must terminate a run.
// Agent faults are recoverable; bus, runner and capacity errors are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fault *AgentFault
	if errors.As(err, &fault) {
		return false
	}
	return errors.Is(err, ErrBusCorruption) ||
		errors.Is(err, ErrRunnerFatal) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrWorldClosed)
}
