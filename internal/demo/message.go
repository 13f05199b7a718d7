// Package demo contains small agent populations used by the CLI, examples and
// benchmarks.
package demo

import (
	"fmt"

	"github.com/randalmurphal/tickworld/pkg/tickworld"
)

// Message kinds used by the demo agents.
const (
	KindCollatz = "collatz"
	KindPing    = "ping"
	KindPong    = "pong"
	KindBall    = "ball"
	KindDivide  = "divide"
	KindLeaf    = "leaf"
	KindTick    = "tick"
)

// Msg is the message type shared by every demo scenario.
type Msg struct {
	K     string            `json:"kind"`
	From  tickworld.AgentID `json:"from,omitempty"`
	To    tickworld.AgentID `json:"to,omitempty"`
	Value uint64            `json:"value,omitempty"`
}

// Kind implements tickworld.Message.
func (m Msg) Kind() string {
	return m.K
}

// Recipient implements tickworld.Addressed. A zero To means broadcast.
func (m Msg) Recipient() (tickworld.AgentID, bool) {
	return m.To, m.To != 0
}

// String renders the message for CLI output.
func (m Msg) String() string {
	s := m.K
	if m.From != 0 {
		s += fmt.Sprintf(" from=%d", m.From)
	}
	if m.To != 0 {
		s += fmt.Sprintf(" to=%d", m.To)
	}
	if m.Value != 0 {
		s += fmt.Sprintf(" value=%d", m.Value)
	}
	return s
}

// Shutdown returns the reserved shutdown message.
func Shutdown() Msg {
	return Msg{K: tickworld.KindShutdown}
}

// Idle returns the message delivered when a tick would otherwise be empty.
func Idle() Msg {
	return Msg{K: KindTick}
}
