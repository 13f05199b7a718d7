package tickworld

import (
	"iter"
	"slices"
)

// slot is the registry's per-agent record. During a tick a slot is touched
// only by the single runner goroutine its agent was partitioned to.
type slot[M Message] struct {
	id      AgentID
	agent   Agent[M]
	flow    Flow
	started bool
}

// Registry owns the authoritative set of live agents.
//
// The registry is not safe for concurrent use. The World mutates it only
// between ticks; runners read the participant list computed before dispatch.
type Registry[M Message] struct {
	next      AgentID
	ids       []AgentID // ascending; IDs are allocated in increasing order
	slots     map[AgentID]*slot[M]
	pending   map[AgentID]struct{}
	maxAgents int
	tick      uint64
}

// NewRegistry creates an empty registry. maxAgents <= 0 means unbounded.
func NewRegistry[M Message](maxAgents int) *Registry[M] {
	return &Registry[M]{
		slots:     make(map[AgentID]*slot[M]),
		pending:   make(map[AgentID]struct{}),
		maxAgents: maxAgents,
	}
}

// Spawn inserts agent under a fresh ID.
// It returns a *CapacityError if the live population is already at its bound.
func (r *Registry[M]) Spawn(agent Agent[M]) (AgentID, error) {
	if r.maxAgents > 0 && len(r.ids) >= r.maxAgents {
		return 0, &CapacityError{
			Resource:  "agents",
			Limit:     r.maxAgents,
			Requested: len(r.ids) + 1,
			Tick:      r.tick,
		}
	}
	r.next++
	id := r.next
	r.ids = append(r.ids, id)
	r.slots[id] = &slot[M]{id: id, agent: agent}
	return id, nil
}

// Remove marks id for removal at the next Commit.
// Removing an unknown or already-removed ID is a no-op.
func (r *Registry[M]) Remove(id AgentID) {
	if _, ok := r.slots[id]; ok {
		r.pending[id] = struct{}{}
	}
}

// Commit applies pending removals and returns the removed IDs ascending.
func (r *Registry[M]) Commit() []AgentID {
	if len(r.pending) == 0 {
		return nil
	}
	removed := make([]AgentID, 0, len(r.pending))
	r.ids = slices.DeleteFunc(r.ids, func(id AgentID) bool {
		if _, ok := r.pending[id]; ok {
			removed = append(removed, id)
			delete(r.slots, id)
			return true
		}
		return false
	})
	clear(r.pending)
	return removed
}

// All yields live agents in ascending ID order.
// Agents marked for removal are still yielded until Commit.
func (r *Registry[M]) All() iter.Seq2[AgentID, Agent[M]] {
	return func(yield func(AgentID, Agent[M]) bool) {
		for _, id := range r.ids {
			if !yield(id, r.slots[id].agent) {
				return
			}
		}
	}
}

// IDs returns a copy of the live IDs, ascending.
func (r *Registry[M]) IDs() []AgentID {
	return slices.Clone(r.ids)
}

// Get returns the agent registered under id.
func (r *Registry[M]) Get(id AgentID) (Agent[M], bool) {
	s, ok := r.slots[id]
	if !ok {
		return nil, false
	}
	return s.agent, true
}

// Has reports whether id is live.
func (r *Registry[M]) Has(id AgentID) bool {
	_, ok := r.slots[id]
	return ok
}

// Removed reports whether id was allocated and is no longer live.
func (r *Registry[M]) Removed(id AgentID) bool {
	return id != 0 && id <= r.next && !r.Has(id)
}

// Len returns the number of live agents.
func (r *Registry[M]) Len() int {
	return len(r.ids)
}

// participants returns the slots that take part in tick, ascending by ID.
func (r *Registry[M]) participants(tick uint64) []*slot[M] {
	r.tick = tick
	out := make([]*slot[M], 0, len(r.ids))
	for _, id := range r.ids {
		s := r.slots[id]
		if s.flow.ready(tick) {
			out = append(out, s)
		}
	}
	return out
}
