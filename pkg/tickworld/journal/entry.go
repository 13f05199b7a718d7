package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current entry format version.
// Increment when making breaking changes to Entry.
const Version = 1

// Entry is the persisted record of one tick.
type Entry struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`

	// Inputs are the externally injected messages offered for Batch, in
	// injection order, before addressing and capacity filtering. Those that
	// survive filtering form the tail of Batch.
	Inputs [][]byte `json:"inputs,omitempty"`

	// Batch is the finalized batch delivered to agents at Tick.
	Batch [][]byte `json:"batch"`
}

// Marshal serializes an entry to JSON.
func (e *Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal deserializes an entry from JSON.
func Unmarshal(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, e.Version)
	}
	return &e, nil
}

// NewEntry encodes a tick's inputs and batch with codec.
func NewEntry[M any](runID string, tick uint64, inputs, batch []M, codec Codec[M]) (*Entry, error) {
	in, err := EncodeAll(codec, inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	out, err := EncodeAll(codec, batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return &Entry{
		Version:   Version,
		RunID:     runID,
		Tick:      tick,
		Timestamp: time.Now().UTC(),
		Inputs:    in,
		Batch:     out,
	}, nil
}

// Read loads and decodes every entry of a run, ordered by tick.
// Returns ErrNotFound if the run has no entries.
func Read(store Store, runID string) ([]*Entry, error) {
	infos, err := store.List(runID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	entries := make([]*Entry, 0, len(infos))
	for _, info := range infos {
		data, err := store.Load(runID, info.Tick)
		if err != nil {
			return nil, fmt.Errorf("load tick %d: %w", info.Tick, err)
		}
		e, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("decode tick %d: %w", info.Tick, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
