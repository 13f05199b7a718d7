package tickworld

import "context"

// SequentialRunner processes agents one by one, in ascending ID order, on
// the calling goroutine. It is the reference strategy the others must match.
type SequentialRunner[M Message] struct {
	replies Replies[M]
}

// NewSequentialRunner creates a sequential runner.
func NewSequentialRunner[M Message]() *SequentialRunner[M] {
	return &SequentialRunner[M]{}
}

// Strategy returns Sequential.
func (r *SequentialRunner[M]) Strategy() Strategy {
	return Sequential
}

// RunTick processes every participant in order.
func (r *SequentialRunner[M]) RunTick(ctx context.Context, work *TickWork[M]) (res *TickResult[M], err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, runnerPanic(Sequential, work.Tick, p)
		}
	}()
	em := work.Bus.Open()
	defer em.Close()
	return collect(runAll(ctx, work, work.agents, em, &r.replies)), nil
}

// Close is a no-op.
func (r *SequentialRunner[M]) Close() error {
	return nil
}

// runAll processes agents in order with a shared emitter.
func runAll[M Message](ctx context.Context, work *TickWork[M], agents []*slot[M], em *Emitter[M], replies *Replies[M]) []outcome[M] {
	outcomes := make([]outcome[M], 0, len(agents))
	for _, s := range agents {
		outcomes = append(outcomes, runAgent(ctx, work, s, em, replies))
	}
	return outcomes
}
