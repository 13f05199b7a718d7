package demo

import (
	"fmt"

	"github.com/randalmurphal/tickworld/pkg/tickworld"
)

// Collatz is one member of a swarm that walks every Collatz sequence from 1
// to Agents. Each agent seeds its own starting value, then advances every
// sequence value whose residue mod Agents matches its own.
type Collatz struct {
	Factor uint64
	Agents uint64
}

// Start seeds the agent's sequence.
func (c *Collatz) Start(_ tickworld.Context, out *tickworld.Replies[Msg]) tickworld.Flow {
	out.Queue(Msg{K: KindCollatz, Value: c.Factor})
	return tickworld.Continue
}

// Process advances the sequence values this agent owns.
func (c *Collatz) Process(_ tickworld.Context, batch []Msg, out *tickworld.Replies[Msg]) (tickworld.Flow, error) {
	for _, m := range batch {
		if m.K != KindCollatz || m.Value <= 1 {
			continue
		}
		if m.Value%c.Agents != c.Factor%c.Agents {
			continue
		}
		out.Queue(Msg{K: KindCollatz, Value: CollatzNext(m.Value)})
	}
	return tickworld.Continue, nil
}

// Subscribes limits the agent to collatz messages.
func (c *Collatz) Subscribes(kind string) bool {
	return kind == KindCollatz
}

// CollatzNext returns the value after n in its Collatz sequence.
func CollatzNext(n uint64) uint64 {
	if n%2 == 0 {
		return n / 2
	}
	return 3*n + 1
}

// CollatzSwarm returns agents with factors 1..n.
func CollatzSwarm(n uint64) []tickworld.Agent[Msg] {
	agents := make([]tickworld.Agent[Msg], 0, n)
	for f := uint64(1); f <= n; f++ {
		agents = append(agents, &Collatz{Factor: f, Agents: n})
	}
	return agents
}

// CollatzTally observes a swarm, counting messages, the largest value seen
// and how many sequences reached 1. It asks the run to quit once every
// sequence has finished.
type CollatzTally struct {
	Agents   uint64
	Count    uint64
	Max      uint64
	Complete uint64
}

// Observe implements tickworld.Observer.
func (t *CollatzTally) Observe(_ uint64, batch []Msg) tickworld.Response {
	for _, m := range batch {
		if m.K != KindCollatz {
			continue
		}
		t.Count++
		if m.Value == 1 {
			t.Complete++
		} else if m.Value > t.Max {
			t.Max = m.Value
		}
	}
	if t.Complete >= t.Agents {
		return tickworld.ResponseQuit
	}
	return tickworld.ResponseContinue
}

// String summarizes the tally.
func (t *CollatzTally) String() string {
	return fmt.Sprintf("collatz: %d messages, max %d, %d/%d complete", t.Count, t.Max, t.Complete, t.Agents)
}
