package demo

import (
	"fmt"

	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/catalog"
	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
)

// Catalog returns the demo scenarios.
//
// Scenario config keys:
//   - collatz: agents (default 100)
//   - pingpong: rally (default 10); needs addressing
//   - counters: agents (default 2)
//   - mitosis: generations (default 6)
func Catalog() *catalog.Catalog[Msg] {
	c := catalog.New[Msg]()
	c.MustRegister("collatz", "swarm walking every Collatz sequence up to N", collatzScenario)
	c.MustRegister("pingpong", "two players rallying an addressed ball", pingPongScenario)
	c.MustRegister("counters", "counters answering one ping with pongs", countersScenario)
	c.MustRegister("mitosis", "cells dividing for N generations", mitosisScenario)
	return c
}

func collatzScenario(cfg config.Config) (*catalog.Scenario[Msg], error) {
	n := cfg.Uint64("agents", 100)
	if n == 0 {
		return nil, fmt.Errorf("agents must be > 0")
	}
	return &catalog.Scenario[Msg]{
		Agents:    CollatzSwarm(n),
		Observers: []tickworld.Observer[Msg]{&CollatzTally{Agents: n}},
	}, nil
}

// pingPongScenario assumes a fresh world: the players get IDs 1 and 2.
func pingPongScenario(cfg config.Config) (*catalog.Scenario[Msg], error) {
	rally := cfg.Uint64("rally", 10)
	return &catalog.Scenario[Msg]{
		Agents: []tickworld.Agent[Msg]{
			&Player{Peer: 2, Rally: rally},
			&Player{Peer: 1, Rally: rally},
		},
		Inputs: []Msg{{K: KindBall, To: 1, Value: 1}},
	}, nil
}

func countersScenario(cfg config.Config) (*catalog.Scenario[Msg], error) {
	n := cfg.Int("agents", 2)
	if n <= 0 {
		return nil, fmt.Errorf("agents must be > 0")
	}
	agents := make([]tickworld.Agent[Msg], 0, n)
	for range n {
		agents = append(agents, &Counter{})
	}
	return &catalog.Scenario[Msg]{
		Agents: agents,
		Inputs: []Msg{{K: KindPing}},
	}, nil
}

func mitosisScenario(cfg config.Config) (*catalog.Scenario[Msg], error) {
	gens := cfg.Uint64("generations", 6)
	if gens > 20 {
		return nil, fmt.Errorf("generations must be <= 20, got %d", gens)
	}
	return &catalog.Scenario[Msg]{
		Agents: []tickworld.Agent[Msg]{&Cell{Max: gens}},
	}, nil
}
