package tickworld

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// tmsg is the message type used throughout the package tests.
type tmsg struct {
	K    string  `json:"k"`
	From AgentID `json:"from,omitempty"`
	To   AgentID `json:"to,omitempty"`
	N    int     `json:"n,omitempty"`
}

func (m tmsg) Kind() string { return m.K }

func (m tmsg) Recipient() (AgentID, bool) { return m.To, m.To != 0 }

var errBoom = errors.New("boom")

// quietLogger discards everything.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is an agent that remembers every batch it was handed.
type recorder struct {
	ticks   []uint64
	batches [][]tmsg
	emit    func(ctx Context, batch []tmsg, out *Replies[tmsg]) (Flow, error)
}

func (r *recorder) Process(ctx Context, batch []tmsg, out *Replies[tmsg]) (Flow, error) {
	r.ticks = append(r.ticks, ctx.Tick())
	r.batches = append(r.batches, slices.Clone(batch))
	if r.emit != nil {
		return r.emit(ctx, batch, out)
	}
	return Continue, nil
}

// kinds returns the kinds in batch, in order.
func kinds(batch []tmsg) []string {
	out := make([]string, len(batch))
	for i, m := range batch {
		out[i] = m.K
	}
	return out
}

// strategyCases is every runner strategy, with small pools for parallel so
// that partitioning is exercised even on a single CPU.
func strategyCases() []struct {
	name string
	opts []Option
} {
	return []struct {
		name string
		opts []Option
	}{
		{"sequential", []Option{WithStrategy(Sequential)}},
		{"cooperative", []Option{WithStrategy(Cooperative)}},
		{"parallel", []Option{WithStrategy(Parallel), WithWorkers(3)}},
	}
}

// newTestWorld builds a world with a quiet logger and registers cleanup.
func newTestWorld(t *testing.T, opts ...Option) *World[tmsg] {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithRunID("test-run")}, opts...)
	w, err := New[tmsg](opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// spawnAll spawns agents in order and returns their IDs.
func spawnAll(t *testing.T, w *World[tmsg], agents ...Agent[tmsg]) []AgentID {
	t.Helper()
	ids := make([]AgentID, 0, len(agents))
	for _, a := range agents {
		id, err := w.Spawn(a)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// step runs one tick and fails the test on error.
func step(t *testing.T, w *World[tmsg]) *StepReport {
	t.Helper()
	report, err := w.Step(context.Background())
	require.NoError(t, err)
	return report
}
