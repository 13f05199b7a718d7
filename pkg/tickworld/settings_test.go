package tickworld

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
strategy: parallel
workers: 6
join_timeout: 2s
max_agents: 500
max_batch: 10000
capacity_policy: abort
addressing: true
tick_interval: 50
max_ticks: 1000
run_id: nightly
`))
	require.NoError(t, err)

	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Settings{
		Strategy:       Parallel,
		Workers:        6,
		JoinTimeout:    2 * time.Second,
		MaxAgents:      500,
		MaxBatch:       10000,
		CapacityPolicy: CapacityAbort,
		Addressing:     true,
		TickInterval:   50 * time.Millisecond,
		MaxTicks:       1000,
		RunID:          "nightly",
	}, s)

	w := newTestWorld(t, WithSettings(s))
	assert.Equal(t, Parallel, w.Strategy())
	assert.Equal(t, "nightly", w.RunID())
	assert.Equal(t, 6, w.runner.(*ParallelRunner[tmsg]).Workers())
	assert.Equal(t, CapacityAbort, w.cfg.capacityPolicy)
	assert.True(t, w.cfg.addressing)
}

func TestSettingsFromConfig_FromEnv(t *testing.T) {
	cfg := config.FromEnv("TICKWORLD_", []string{
		"TICKWORLD_STRATEGY=single",
		"TICKWORLD_MAX_TICKS=12",
		"TICKWORLD_ADDRESSING=true",
		"OTHER=ignored",
	})
	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Cooperative, s.Strategy)
	assert.Equal(t, uint64(12), s.MaxTicks)
	assert.True(t, s.Addressing)
}

func TestSettingsFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		is   error
	}{
		{"unknown strategy", map[string]any{"strategy": "gpu"}, ErrUnknownStrategy},
		{"unknown policy", map[string]any{"capacity_policy": "explode"}, nil},
		{"negative workers", map[string]any{"workers": -1}, nil},
		{"negative batch", map[string]any{"max_batch": -5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SettingsFromConfig(config.New(tt.data))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestWithSettings_ZeroKeepsDefaults(t *testing.T) {
	w := newTestWorld(t, WithStrategy(Cooperative), WithMaxTicks(9), WithSettings(Settings{}))
	assert.Equal(t, Cooperative, w.Strategy())
	assert.Equal(t, uint64(9), w.cfg.maxTicks)
	assert.Equal(t, CapacityDrop, w.cfg.capacityPolicy)
}

func TestParseCapacityPolicy(t *testing.T) {
	p, err := ParseCapacityPolicy(" Abort ")
	require.NoError(t, err)
	assert.Equal(t, CapacityAbort, p)

	p, err = ParseCapacityPolicy("drop")
	require.NoError(t, err)
	assert.Equal(t, CapacityDrop, p)

	_, err = ParseCapacityPolicy("block")
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink(3)
	for i := range 5 {
		kind := DiagUndeliverable
		if i%2 == 0 {
			kind = DiagAgentFault
		}
		sink.Report(Diagnostic{Kind: kind, Tick: uint64(i + 1), Count: 1})
	}

	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, 2, sink.Evicted())
	all := sink.All()
	assert.Equal(t, uint64(3), all[0].Tick, "oldest entries are evicted first")
	assert.Len(t, sink.Kind(DiagAgentFault), 2)
	assert.Len(t, sink.Kind(DiagUndeliverable), 1)

	sink.Clear()
	assert.Zero(t, sink.Len())
	assert.Zero(t, sink.Evicted())
}

func TestDiagnosticFuncAndString(t *testing.T) {
	var got []Diagnostic
	sink := DiagnosticFunc(func(d Diagnostic) { got = append(got, d) })

	w := newTestWorld(t, WithDiagnostics(sink), WithAddressing(true))
	w.Inject(tmsg{K: "lost", To: 9}, tmsg{K: "lost", To: 9})
	step(t, w)

	require.Len(t, got, 2)
	assert.False(t, got[0].Time.IsZero())
	assert.Equal(t, tmsg{K: "lost", To: 9}, got[0].Message)
	assert.Equal(t, "tick 0: undeliverable agent-9", got[0].String())

	d := Diagnostic{Kind: DiagBatchDropped, Tick: 4, Count: 12, Err: &CapacityError{Resource: "batch", Limit: 10, Requested: 12, Tick: 4}}
	assert.Equal(t, "tick 4: batch_dropped (12): batch capacity exceeded at tick 4: 12 > 10", d.String())
}
