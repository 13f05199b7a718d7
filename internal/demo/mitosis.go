package demo

import (
	"github.com/randalmurphal/tickworld/pkg/tickworld"
)

// Cell divides into two daughter cells every tick until it reaches
// generation Max, then reports a leaf. Every cell leaves the world after
// acting, so a run ends once the last generation has reported.
type Cell struct {
	Gen uint64
	Max uint64
}

// Process implements tickworld.Agent.
func (c *Cell) Process(ctx tickworld.Context, _ []Msg, out *tickworld.Replies[Msg]) (tickworld.Flow, error) {
	if c.Gen >= c.Max {
		out.Queue(Msg{K: KindLeaf, From: ctx.AgentID(), Value: c.Gen})
		return tickworld.Remove(), nil
	}
	out.Queue(Msg{K: KindDivide, From: ctx.AgentID(), Value: c.Gen})
	out.Spawn(&Cell{Gen: c.Gen + 1, Max: c.Max})
	out.Spawn(&Cell{Gen: c.Gen + 1, Max: c.Max})
	return tickworld.Remove(), nil
}

// Subscribes opts the cell out of every message; cells act on their own.
func (c *Cell) Subscribes(string) bool {
	return false
}
