package tickworld

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// CooperativeRunner processes agents one at a time on a single dedicated
// goroutine, yielding the processor between agents. Agents never overlap, so
// its output is identical to the sequential runner's.
type CooperativeRunner[M Message] struct {
	joinTimeout time.Duration
	jobs        chan coopJob[M]
	closeOnce   sync.Once
}

type coopJob[M Message] struct {
	ctx    context.Context
	work   *TickWork[M]
	em     *Emitter[M]
	result chan coopResult[M]
}

type coopResult[M Message] struct {
	outcomes []outcome[M]
	err      error
}

// NewCooperativeRunner starts the runner's goroutine. joinTimeout <= 0 waits
// indefinitely for each tick.
func NewCooperativeRunner[M Message](joinTimeout time.Duration) *CooperativeRunner[M] {
	r := &CooperativeRunner[M]{
		joinTimeout: joinTimeout,
		jobs:        make(chan coopJob[M]),
	}
	go r.loop()
	return r
}

func (r *CooperativeRunner[M]) loop() {
	var replies Replies[M]
	for job := range r.jobs {
		r.run(job, &replies)
	}
}

// run processes one tick and always delivers a result, converting a panic
// outside agent code into a RunnerFatalError.
func (r *CooperativeRunner[M]) run(job coopJob[M], replies *Replies[M]) {
	var res coopResult[M]
	defer func() {
		if p := recover(); p != nil {
			res = coopResult[M]{err: runnerPanic(Cooperative, job.work.Tick, p)}
		}
		job.result <- res
	}()
	res.outcomes = make([]outcome[M], 0, len(job.work.agents))
	for _, s := range job.work.agents {
		res.outcomes = append(res.outcomes, runAgent(job.ctx, job.work, s, job.em, replies))
		runtime.Gosched()
	}
	job.em.Close()
}

// Strategy returns Cooperative.
func (r *CooperativeRunner[M]) Strategy() Strategy {
	return Cooperative
}

// RunTick hands the tick to the runner goroutine and waits for it.
func (r *CooperativeRunner[M]) RunTick(ctx context.Context, work *TickWork[M]) (*TickResult[M], error) {
	job := coopJob[M]{
		ctx:    ctx,
		work:   work,
		em:     work.Bus.Open(),
		result: make(chan coopResult[M], 1),
	}
	r.jobs <- job

	var timeout <-chan time.Time
	if r.joinTimeout > 0 {
		t := time.NewTimer(r.joinTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case res := <-job.result:
		if res.err != nil {
			return nil, res.err
		}
		return collect(res.outcomes), nil
	case <-timeout:
		return nil, &RunnerFatalError{Strategy: Cooperative, Tick: work.Tick, Cause: ErrJoinTimeout}
	}
}

// Close stops the runner goroutine once the current tick, if any, finishes.
func (r *CooperativeRunner[M]) Close() error {
	r.closeOnce.Do(func() { close(r.jobs) })
	return nil
}
