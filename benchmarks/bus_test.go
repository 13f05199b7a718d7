package benchmarks

import (
	"testing"

	"github.com/randalmurphal/tickworld/internal/demo"
	"github.com/randalmurphal/tickworld/pkg/tickworld"
)

func benchmarkAdvance(b *testing.B, emitters, perEmitter int) {
	bus := tickworld.NewBus[demo.Msg]()
	msg := demo.Msg{K: demo.KindPing}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Close in reverse so the sort has work to do.
		ems := make([]*tickworld.Emitter[demo.Msg], emitters)
		for e := range ems {
			ems[e] = bus.Open()
			for range perEmitter {
				ems[e].Emit(tickworld.AgentID(e+1), msg)
			}
		}
		for e := len(ems) - 1; e >= 0; e-- {
			ems[e].Close()
		}
		if _, err := bus.Advance(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBusAdvance_1x1000 is a single emitter, as used by the sequential runner.
func BenchmarkBusAdvance_1x1000(b *testing.B) {
	benchmarkAdvance(b, 1, 1000)
}

// BenchmarkBusAdvance_8x125 is eight emitters, as used by an 8-worker pool.
func BenchmarkBusAdvance_8x125(b *testing.B) {
	benchmarkAdvance(b, 8, 125)
}

// BenchmarkBusAdvance_64x100 is a larger pool.
func BenchmarkBusAdvance_64x100(b *testing.B) {
	benchmarkAdvance(b, 64, 100)
}
