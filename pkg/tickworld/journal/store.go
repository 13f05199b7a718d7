// Package journal records the finalized batch of every tick so a run can be
// inspected or replayed.
//
// A journal is append-only per run: one Entry per tick holding the messages
// injected from outside the world and the finalized batch delivered to agents.
// Because scheduling is deterministic, the injected inputs are enough to
// reproduce every later batch; the stored batches are what a replay is
// checked against.
package journal

import (
	"errors"
	"time"
)

// Store persists journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores the encoded entry for (runID, tick).
	// Returns ErrTickExists if the tick is already recorded.
	Append(runID string, tick uint64, data []byte) error

	// Load retrieves one entry.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID string, tick uint64) ([]byte, error)

	// List returns metadata for a run's entries, ordered by tick.
	// Returns empty slice (not error) if the run has no entries.
	List(runID string) ([]Info, error)

	// Runs returns every run ID with at least one entry, sorted.
	Runs() ([]string, error)

	// DeleteRun removes all entries for a run.
	// Returns nil if the run has no entries.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the entry.
type Info struct {
	RunID     string
	Tick      uint64
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates an entry doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrTickExists indicates an entry for the tick was already appended.
	ErrTickExists = errors.New("journal tick already recorded")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")

	// ErrVersion indicates an entry written by an incompatible format version.
	ErrVersion = errors.New("unsupported journal version")
)
