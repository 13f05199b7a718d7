package tickworld

// KindShutdown is the reserved message kind that halts a running World.
// When a finalized batch contains a message of this kind, Run returns after
// the barrier of the tick that produced it, without delivering the batch.
const KindShutdown = "tickworld.shutdown"

// Message is the unit of communication between agents.
//
// Implementations are usually small value types (a struct carrying a kind
// tag and a payload). Messages must be treated as immutable once emitted:
// the same batch is shared read-only by every agent and every worker.
type Message interface {
	// Kind returns the message's discriminating tag.
	Kind() string
}

// Addressed is implemented by messages that may target a single agent.
//
// Recipient reports the target and whether the message is addressed at all.
// Addressing is only honoured when the World is built WithAddressing(true);
// otherwise every message is broadcast and agents filter for themselves.
type Addressed interface {
	Recipient() (AgentID, bool)
}

// Subscriber is implemented by agents that only want some message kinds.
// It must be a pure function of kind; it is re-evaluated every tick.
type Subscriber interface {
	Subscribes(kind string) bool
}

// IsShutdown reports whether msg carries the reserved shutdown kind.
func IsShutdown[M Message](msg M) bool {
	return msg.Kind() == KindShutdown
}

// recipientOf returns msg's addressed recipient, if any.
func recipientOf[M Message](msg M) (AgentID, bool) {
	if a, ok := any(msg).(Addressed); ok {
		return a.Recipient()
	}
	return 0, false
}

// deliverable reports whether msg should be in agent id's view of the batch.
func deliverable[M Message](msg M, id AgentID, agent any, addressing bool) bool {
	if addressing {
		if to, ok := recipientOf(msg); ok && to != id {
			return false
		}
	}
	if sub, ok := agent.(Subscriber); ok && !sub.Subscribes(msg.Kind()) {
		return false
	}
	return true
}

// viewFor returns the slice of batch that agent id should receive.
// When no filtering applies the batch itself is shared without copying.
func viewFor[M Message](batch []M, id AgentID, agent any, addressing bool) []M {
	_, subscribes := agent.(Subscriber)
	if !subscribes && !addressing {
		return batch
	}
	var view []M
	for i, msg := range batch {
		if deliverable(msg, id, agent, addressing) {
			if view == nil {
				view = make([]M, 0, len(batch)-i)
			}
			view = append(view, msg)
		}
	}
	return view
}
