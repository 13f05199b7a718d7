package journal

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory journal for tests and short runs.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[uint64]storedEntry
	closed bool
}

type storedEntry struct {
	data      []byte
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]map[uint64]storedEntry),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(runID string, tick uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	run := m.runs[runID]
	if run == nil {
		run = make(map[uint64]storedEntry)
		m.runs[runID] = run
	}
	if _, ok := run[tick]; ok {
		return ErrTickExists
	}
	run[tick] = storedEntry{
		data:      slices.Clone(data),
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string, tick uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	e, ok := m.runs[runID][tick]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.data), nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.runs[runID]
	infos := make([]Info, 0, len(run))
	for tick, e := range run {
		infos = append(infos, Info{
			RunID:     runID,
			Tick:      tick,
			Timestamp: e.timestamp,
			Size:      int64(len(e.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return cmp.Compare(a.Tick, b.Tick)
	})
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Overwrite replaces a stored entry. It exists so tests can simulate a
// corrupted or tampered journal.
func (m *MemoryStore) Overwrite(runID string, tick uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	e, ok := m.runs[runID][tick]
	if !ok {
		return ErrNotFound
	}
	e.data = slices.Clone(data)
	m.runs[runID][tick] = e
	return nil
}

// Len returns the total number of entries across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, run := range m.runs {
		n += len(run)
	}
	return n
}
