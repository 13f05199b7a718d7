package demo

import (
	"github.com/randalmurphal/tickworld/pkg/tickworld"
)

// Counter answers every ping with a pong and counts the pings it saw.
type Counter struct {
	Pings int
}

// Process implements tickworld.Agent.
func (c *Counter) Process(ctx tickworld.Context, batch []Msg, out *tickworld.Replies[Msg]) (tickworld.Flow, error) {
	for _, m := range batch {
		if m.K == KindPing {
			c.Pings++
			out.Queue(Msg{K: KindPong, From: ctx.AgentID()})
		}
	}
	return tickworld.Continue, nil
}

// Player bounces a ball with Peer. Balls are addressed, so with addressing
// enabled each player only sees the balls sent to it. After Rally volleys
// the player holding the ball ends the game.
type Player struct {
	Peer    tickworld.AgentID
	Rally   uint64
	Volleys uint64
}

// Process implements tickworld.Agent.
func (p *Player) Process(ctx tickworld.Context, batch []Msg, out *tickworld.Replies[Msg]) (tickworld.Flow, error) {
	for _, m := range batch {
		if m.K != KindBall || m.To != ctx.AgentID() {
			continue
		}
		p.Volleys++
		if m.Value >= p.Rally {
			ctx.Logger().Info("rally finished", "volleys", m.Value)
			out.Queue(Shutdown())
			continue
		}
		out.Queue(Msg{K: KindBall, From: ctx.AgentID(), To: p.Peer, Value: m.Value + 1})
	}
	return tickworld.Continue, nil
}
