package tickworld

import (
	"context"
	"sync"
	"time"
)

// ParallelRunner executes a tick's agents on a fixed pool of worker goroutines.
//
// Participants are split into contiguous ID ranges, one per worker, so every
// agent is touched by exactly one goroutine and no per-agent locking is
// needed. Each range gets its own Emitter; the bus orders the merged
// emissions by source ID, so the next batch does not depend on which worker
// finished first.
type ParallelRunner[M Message] struct {
	workers     int
	joinTimeout time.Duration
	jobs        chan parallelJob[M]
	closeOnce   sync.Once
}

type parallelJob[M Message] struct {
	ctx    context.Context
	work   *TickWork[M]
	agents []*slot[M]
	em     *Emitter[M]
	out    *[]outcome[M]
	err    *error
	wg     *sync.WaitGroup
}

// NewParallelRunner starts workers goroutines (at least one).
func NewParallelRunner[M Message](workers int, joinTimeout time.Duration) *ParallelRunner[M] {
	if workers < 1 {
		workers = 1
	}
	r := &ParallelRunner[M]{
		workers:     workers,
		joinTimeout: joinTimeout,
		jobs:        make(chan parallelJob[M], workers),
	}
	for range workers {
		go r.worker()
	}
	return r
}

func (r *ParallelRunner[M]) worker() {
	var replies Replies[M]
	for job := range r.jobs {
		r.run(job, &replies)
	}
}

// run executes one chunk. A panic that escapes agent recovery is turned into
// a RunnerFatalError and the worker still reaches the barrier.
func (r *ParallelRunner[M]) run(job parallelJob[M], replies *Replies[M]) {
	defer job.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			*job.err = runnerPanic(Parallel, job.work.Tick, p)
		}
	}()
	*job.out = runAll(job.ctx, job.work, job.agents, job.em, replies)
	job.em.Close()
}

// Strategy returns Parallel.
func (r *ParallelRunner[M]) Strategy() Strategy {
	return Parallel
}

// Workers returns the pool size.
func (r *ParallelRunner[M]) Workers() int {
	return r.workers
}

// RunTick partitions the participants across the pool and waits at the barrier.
func (r *ParallelRunner[M]) RunTick(ctx context.Context, work *TickWork[M]) (*TickResult[M], error) {
	chunks := partition(work.agents, r.workers)
	results := make([][]outcome[M], len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for i, chunk := range chunks {
		r.jobs <- parallelJob[M]{
			ctx:    ctx,
			work:   work,
			agents: chunk,
			em:     work.Bus.Open(),
			out:    &results[i],
			err:    &errs[i],
			wg:     &wg,
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if r.joinTimeout > 0 {
		t := time.NewTimer(r.joinTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
	case <-timeout:
		return nil, &RunnerFatalError{Strategy: Parallel, Tick: work.Tick, Cause: ErrJoinTimeout}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	n := 0
	for _, res := range results {
		n += len(res)
	}
	merged := make([]outcome[M], 0, n)
	for _, res := range results {
		merged = append(merged, res...)
	}
	return collect(merged), nil
}

// Close stops the workers after any in-flight jobs complete.
func (r *ParallelRunner[M]) Close() error {
	r.closeOnce.Do(func() { close(r.jobs) })
	return nil
}
