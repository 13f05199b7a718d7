package tickworld

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
		err  bool
	}{
		{"sequential", Sequential, false},
		{"Parallel", Parallel, false},
		{" cooperative ", Cooperative, false},
		{"cooperative-single", Cooperative, false},
		{"single", Cooperative, false},
		{"threads", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, []Strategy{Sequential, Cooperative, Parallel}, Strategies())
}

func TestNewRunner(t *testing.T) {
	for _, s := range []Strategy{"", Sequential, Cooperative, Parallel} {
		r, err := NewRunner[tmsg](RunnerConfig{Strategy: s, Workers: 2})
		require.NoError(t, err)
		if s == "" {
			assert.Equal(t, Sequential, r.Strategy())
		} else {
			assert.Equal(t, s, r.Strategy())
		}
		require.NoError(t, r.Close())
		require.NoError(t, r.Close(), "close is idempotent")
	}

	r, err := NewRunner[tmsg](RunnerConfig{Strategy: Parallel})
	require.NoError(t, err)
	defer r.Close()
	assert.GreaterOrEqual(t, r.(*ParallelRunner[tmsg]).Workers(), 1)

	_, err = NewRunner[tmsg](RunnerConfig{Strategy: "gpu"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestPartition(t *testing.T) {
	mk := func(n int) []*slot[tmsg] {
		out := make([]*slot[tmsg], n)
		for i := range out {
			out[i] = &slot[tmsg]{id: AgentID(i + 1)}
		}
		return out
	}
	sizes := func(chunks [][]*slot[tmsg]) []int {
		out := make([]int, len(chunks))
		for i, c := range chunks {
			out[i] = len(c)
		}
		return out
	}

	assert.Equal(t, []int{4, 3, 3}, sizes(partition(mk(10), 3)))
	assert.Equal(t, []int{1, 1}, sizes(partition(mk(2), 8)))
	assert.Equal(t, []int{5}, sizes(partition(mk(5), 0)))
	assert.Empty(t, partition(mk(0), 4))

	chunks := partition(mk(7), 3)
	var ids []AgentID
	for _, c := range chunks {
		for _, s := range c {
			ids = append(ids, s.id)
		}
	}
	assert.Equal(t, []AgentID{1, 2, 3, 4, 5, 6, 7}, ids, "chunks are contiguous and ascending")
}

// chaosAgent behaves as a pure function of its seed and everything it has
// seen, so any two runs of the same population must agree exactly.
type chaosAgent struct {
	state    uint64
	faultAt  uint64
	panics   bool
	spawning bool
	maxID    AgentID
}

func mix(h, v uint64) uint64 {
	h ^= v
	h *= 0x100000001b3
	h ^= h >> 29
	return h
}

func (a *chaosAgent) Process(ctx Context, batch []tmsg, out *Replies[tmsg]) (Flow, error) {
	h := mix(a.state, ctx.Tick())
	for _, m := range batch {
		h = mix(h, uint64(m.From)<<32|uint64(m.N))
	}
	a.state = h

	if a.faultAt == ctx.Tick() {
		out.Queue(tmsg{K: "lost", From: ctx.AgentID()})
		if a.panics {
			panic(fmt.Sprintf("chaos agent %d", ctx.AgentID()))
		}
		return Continue, errBoom
	}

	for i := range h % 4 {
		m := tmsg{K: "chaos", From: ctx.AgentID(), N: int((h >> (i * 8)) & 0xff)}
		if h%5 == 0 && a.maxID > 0 {
			m.To = AgentID(h%uint64(a.maxID)) + 1
		}
		out.Queue(m)
	}
	if a.spawning && h%7 == 0 {
		out.Spawn(&chaosAgent{state: h, spawning: h%3 == 0, maxID: a.maxID})
	}

	switch h % 13 {
	case 0:
		return Remove(), nil
	case 1, 2:
		return Sleep(h % 3), nil
	}
	return Continue, nil
}

func chaosPopulation(seed uint64, n int) []Agent[tmsg] {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	agents := make([]Agent[tmsg], n)
	for i := range agents {
		a := &chaosAgent{
			state:    rng.Uint64(),
			spawning: rng.IntN(4) == 0,
			maxID:    AgentID(n + 20),
		}
		if rng.IntN(6) == 0 {
			a.faultAt = uint64(rng.IntN(20) + 1)
			a.panics = rng.IntN(2) == 0
		}
		agents[i] = a
	}
	return agents
}

type runTrace struct {
	Batches     []json.RawMessage
	Agents      [][]AgentID
	Diagnostics []string
}

func traceRun(t *testing.T, seed uint64, addressing bool, opts ...Option) runTrace {
	t.Helper()
	sink := NewMemorySink(0)
	opts = append(opts,
		WithAddressing(addressing),
		WithMaxAgents(120),
		WithMaxBatch(300),
		WithMaxTicks(25),
		WithDiagnostics(sink),
	)
	w := newTestWorld(t, opts...)
	spawnAll(t, w, chaosPopulation(seed, 40)...)
	w.Inject(tmsg{K: "seed", N: int(seed)})

	var tr runTrace
	require.NoError(t, w.Observe(ObserverFunc[tmsg](func(tick uint64, batch []tmsg) Response {
		data, err := json.Marshal(batch)
		require.NoError(t, err)
		tr.Batches = append(tr.Batches, data)
		tr.Agents = append(tr.Agents, w.registry.IDs())
		return ResponseContinue
	})))

	require.NoError(t, w.Run(context.Background()))
	for _, d := range sink.All() {
		tr.Diagnostics = append(tr.Diagnostics, fmt.Sprintf("%s@%d/%d/%d", d.Kind, d.Tick, d.Agent, d.Count))
	}
	return tr
}

func TestRunners_ProduceIdenticalBatches(t *testing.T) {
	for _, seed := range []uint64{1, 7, 42, 1234, 99991} {
		for _, addressing := range []bool{false, true} {
			t.Run(fmt.Sprintf("seed=%d/addressing=%v", seed, addressing), func(t *testing.T) {
				want := traceRun(t, seed, addressing, WithStrategy(Sequential))
				require.NotEmpty(t, want.Batches)

				for _, tc := range []struct {
					name string
					opts []Option
				}{
					{"cooperative", []Option{WithStrategy(Cooperative)}},
					{"parallel-2", []Option{WithStrategy(Parallel), WithWorkers(2)}},
					{"parallel-5", []Option{WithStrategy(Parallel), WithWorkers(5)}},
					{"parallel-64", []Option{WithStrategy(Parallel), WithWorkers(64)}},
				} {
					got := traceRun(t, seed, addressing, tc.opts...)
					assert.Equal(t, want, got, tc.name)
				}
			})
		}
	}
}

func TestRunners_TieBreakByAgentID(t *testing.T) {
	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			opts := append(tc.opts, WithWorkers(7))
			w := newTestWorld(t, opts...)

			agents := make([]Agent[tmsg], 7)
			for i := range agents {
				id := AgentID(i + 1)
				agents[i] = AgentFunc[tmsg](func(ctx Context, _ []tmsg, out *Replies[tmsg]) (Flow, error) {
					switch id {
					case 3:
						// Finish last so completion order disagrees with ID order.
						time.Sleep(10 * time.Millisecond)
						out.Queue(tmsg{K: "from-3", From: 3})
					case 7:
						out.Queue(tmsg{K: "from-7", From: 7})
					}
					return Continue, nil
				})
			}
			spawnAll(t, w, agents...)

			step(t, w)
			assert.Equal(t, []string{"from-3", "from-7"}, kinds(w.Current()))
		})
	}
}

func TestRunners_JoinTimeout(t *testing.T) {
	for _, s := range []Strategy{Cooperative, Parallel} {
		t.Run(string(s), func(t *testing.T) {
			w := newTestWorld(t, WithStrategy(s), WithWorkers(2), WithJoinTimeout(20*time.Millisecond))

			release := make(chan struct{})
			t.Cleanup(func() { close(release) })

			spawnAll(t, w,
				noopAgent(),
				AgentFunc[tmsg](func(Context, []tmsg, *Replies[tmsg]) (Flow, error) {
					<-release
					return Continue, nil
				}),
			)

			_, err := w.Step(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrJoinTimeout)
			assert.ErrorIs(t, err, ErrRunnerFatal)
			assert.True(t, IsFatal(err))

			var rf *RunnerFatalError
			require.True(t, errors.As(err, &rf))
			assert.Equal(t, s, rf.Strategy)
			assert.Equal(t, uint64(1), rf.Tick)

			_, again := w.Step(context.Background())
			assert.Same(t, err, again, "a fatal error sticks")
			assert.ErrorIs(t, w.Run(context.Background()), ErrJoinTimeout)
		})
	}
}

func TestRunners_PanicOutsideAgentIsFatal(t *testing.T) {
	// A job without an emitter panics after the agents have run, outside
	// any agent's recovery.
	assertFatal := func(t *testing.T, s Strategy, err error) {
		t.Helper()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunnerPanic)
		assert.ErrorIs(t, err, ErrRunnerFatal)
		assert.True(t, IsFatal(err))
		var rf *RunnerFatalError
		require.True(t, errors.As(err, &rf))
		assert.Equal(t, s, rf.Strategy)
		assert.Equal(t, uint64(4), rf.Tick)
	}

	t.Run("parallel", func(t *testing.T) {
		r := NewParallelRunner[tmsg](1, 0)
		defer r.Close()

		var out []outcome[tmsg]
		var err error
		var wg sync.WaitGroup
		wg.Add(1)
		r.jobs <- parallelJob[tmsg]{ctx: context.Background(), work: &TickWork[tmsg]{Tick: 4}, out: &out, err: &err, wg: &wg}
		wg.Wait()
		assertFatal(t, Parallel, err)

		// The worker survives and serves the next tick.
		_, err = r.RunTick(context.Background(), &TickWork[tmsg]{Tick: 5, Bus: NewBus[tmsg](), agents: []*slot[tmsg]{{id: 1, agent: noopAgent()}}})
		assert.NoError(t, err)
	})

	t.Run("cooperative", func(t *testing.T) {
		r := NewCooperativeRunner[tmsg](0)
		defer r.Close()

		result := make(chan coopResult[tmsg], 1)
		r.jobs <- coopJob[tmsg]{ctx: context.Background(), work: &TickWork[tmsg]{Tick: 4}, result: result}
		assertFatal(t, Cooperative, (<-result).err)

		_, err := r.RunTick(context.Background(), &TickWork[tmsg]{Tick: 5, Bus: NewBus[tmsg]()})
		assert.NoError(t, err)
	})

	t.Run("sequential", func(t *testing.T) {
		r := NewSequentialRunner[tmsg]()
		_, err := r.RunTick(context.Background(), &TickWork[tmsg]{Tick: 4})
		assertFatal(t, Sequential, err)
	})
}

func TestRunners_StartRunsOnceBeforeProcess(t *testing.T) {
	for _, tc := range strategyCases() {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWorld(t, tc.opts...)
			a := &startCounter{}
			quitter := &startCounter{removeOnStart: true}
			spawnAll(t, w, a, quitter)

			for range 3 {
				step(t, w)
			}
			assert.Equal(t, 1, a.starts)
			assert.Equal(t, 3, a.processed)
			assert.Equal(t, []string{"hello"}, kinds(a.firstBatch))

			assert.Equal(t, 1, quitter.starts)
			assert.Zero(t, quitter.processed)
			assert.Equal(t, 1, w.Len())
		})
	}
}

type startCounter struct {
	removeOnStart bool
	starts        int
	processed     int
	firstBatch    []tmsg
}

func (a *startCounter) Start(ctx Context, out *Replies[tmsg]) Flow {
	a.starts++
	if a.removeOnStart {
		return Remove()
	}
	out.Queue(tmsg{K: "hello", From: ctx.AgentID()})
	return Continue
}

func (a *startCounter) Process(ctx Context, batch []tmsg, out *Replies[tmsg]) (Flow, error) {
	a.processed++
	if a.processed == 2 {
		a.firstBatch = append([]tmsg(nil), batch...)
	}
	return Continue, nil
}
