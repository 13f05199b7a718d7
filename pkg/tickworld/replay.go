package tickworld

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/tickworld/pkg/tickworld/journal"
)

// ReplayReport summarizes a successful replay.
type ReplayReport struct {
	// RunID is the replayed run.
	RunID string
	// Entries is the number of journal entries checked.
	Entries int
	// Ticks is the number of ticks executed to reproduce them.
	Ticks uint64
}

type replayConfig struct {
	upTo uint64
}

// ReplayOption configures Replay.
type ReplayOption func(*replayConfig)

// ReplayUpTo stops the replay after the batch for tick has been checked.
func ReplayUpTo(tick uint64) ReplayOption {
	return func(c *replayConfig) {
		c.upTo = tick
	}
}

// Replay re-executes a journaled run and verifies that every batch comes out
// byte-for-byte as recorded.
//
// build must return a fresh World configured like the original (same agents
// spawned in the same order, same idle message, same addressing and bounds)
// but without an input source or journal; recorded inputs are injected by
// Replay itself. The strategy may differ: every strategy must reproduce the
// same batches. The World is closed before Replay returns.
//
// Example:
//
//	report, err := tickworld.Replay(ctx, store, "run-123", journal.JSONCodec[Msg]{},
//	    func() (*tickworld.World[Msg], error) { return buildWorld(tickworld.Parallel) })
//	var mismatch *tickworld.ReplayMismatchError
//	if errors.As(err, &mismatch) {
//	    // diverged at mismatch.Tick
//	}
func Replay[M Message](ctx context.Context, store journal.Store, runID string, codec journal.Codec[M], build func() (*World[M], error), opts ...ReplayOption) (*ReplayReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	cfg := replayConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	entries, err := journal.Read(store, runID)
	if errors.Is(err, journal.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoJournal, runID)
	}
	if err != nil {
		return nil, err
	}

	w, err := build()
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	defer w.Close()
	if w.input != nil || w.journal != nil || w.primed {
		return nil, fmt.Errorf("replay world must be fresh, without input source or journal")
	}

	report := &ReplayReport{RunID: runID}
	for i, e := range entries {
		if cfg.upTo > 0 && e.Tick > cfg.upTo {
			break
		}
		if want := uint64(i + 1); e.Tick != want {
			return report, fmt.Errorf("journal for %s has a gap: expected tick %d, found %d", runID, want, e.Tick)
		}

		inputs, err := journal.DecodeAll(codec, e.Inputs)
		if err != nil {
			return report, fmt.Errorf("decode inputs of tick %d: %w", e.Tick, err)
		}
		w.Inject(inputs...)

		if i == 0 {
			err = w.prime(ctx)
		} else {
			_, err = w.Step(ctx)
		}
		if err != nil {
			return report, fmt.Errorf("replay tick %d: %w", e.Tick, err)
		}
		report.Ticks = w.Tick()

		if err := compareBatch(runID, e, w.Current(), codec); err != nil {
			return report, err
		}
		report.Entries++
	}
	return report, nil
}

// compareBatch checks a replayed batch against a journal entry.
func compareBatch[M Message](runID string, e *journal.Entry, got []M, codec journal.Codec[M]) error {
	encoded, err := journal.EncodeAll(codec, got)
	if err != nil {
		return fmt.Errorf("encode replayed batch of tick %d: %w", e.Tick, err)
	}
	mismatch := &ReplayMismatchError{RunID: runID, Tick: e.Tick, Index: -1, Want: len(e.Batch), Got: len(encoded)}
	for i := range min(len(e.Batch), len(encoded)) {
		if !bytes.Equal(e.Batch[i], encoded[i]) {
			mismatch.Index = i
			return mismatch
		}
	}
	if len(e.Batch) != len(encoded) {
		return mismatch
	}
	return nil
}
