package tickworld

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_AdvanceOrdersBySourceThenSeq(t *testing.T) {
	b := NewBus[tmsg]()

	late := b.Open()
	early := b.Open()

	late.Emit(7, tmsg{K: "7a"}, tmsg{K: "7b"})
	early.Emit(3, tmsg{K: "3a"})
	early.Emit(9, tmsg{K: "9a"})
	early.Emit(3, tmsg{K: "3b"})

	// Commit order is the reverse of ID order.
	late.Close()
	early.Close()

	next, err := b.Advance()
	require.NoError(t, err)
	assert.Equal(t, []string{"3a", "3b", "7a", "7b", "9a"}, kinds(next))
	assert.Equal(t, next, b.Current())
	assert.Equal(t, 0, b.Pending())
}

func TestBus_InjectedFollowEmissions(t *testing.T) {
	b := NewBus[tmsg]()
	b.Inject(tmsg{K: "in1"})

	em := b.Open()
	em.Emit(2, tmsg{K: "agent"})
	em.Close()
	b.Inject(tmsg{K: "in2"})
	b.Inject()

	next, err := b.Advance()
	require.NoError(t, err)
	assert.Equal(t, []string{"agent", "in1", "in2"}, kinds(next))
	assert.Equal(t, []string{"in1", "in2"}, kinds(b.Injected()))

	next, err = b.Advance()
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Empty(t, b.Injected())
}

func TestBus_AdvanceWithOpenEmitter(t *testing.T) {
	b := NewBus[tmsg]()
	em := b.Open()
	em.Emit(1, tmsg{K: "x"})

	_, err := b.Advance()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusCorruption)
	assert.True(t, IsFatal(err))

	var busErr *BusCorruptionError
	require.True(t, errors.As(err, &busErr))
	assert.Equal(t, 1, busErr.Outstanding)

	em.Close()
	next, err := b.Advance()
	require.NoError(t, err)
	assert.Len(t, next, 1)
}

func TestEmitter_CloseIdempotentAndEmitAfterClosePanics(t *testing.T) {
	b := NewBus[tmsg]()
	em := b.Open()
	em.Emit(1, tmsg{K: "x"})
	assert.Equal(t, 1, em.Len())

	em.Close()
	em.Close()
	assert.Equal(t, 1, b.Pending())

	assert.Panics(t, func() { em.Emit(1, tmsg{K: "y"}) })

	_, err := b.Advance()
	assert.NoError(t, err, "double close must not unbalance the open count")
}

func TestBus_ConcurrentEmittersAndInject(t *testing.T) {
	b := NewBus[tmsg]()

	var wg sync.WaitGroup
	for src := AgentID(1); src <= 8; src++ {
		em := b.Open()
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 10 {
				em.Emit(src, tmsg{K: "m", From: src, N: i})
			}
			em.Close()
		}()
		go func() {
			defer wg.Done()
			b.Inject(tmsg{K: "ext"})
		}()
	}
	wg.Wait()

	next, err := b.Advance()
	require.NoError(t, err)
	require.Len(t, next, 88)
	for i := range 80 {
		assert.Equal(t, AgentID(i/10+1), next[i].From)
		assert.Equal(t, i%10, next[i].N)
	}
	assert.Len(t, b.Injected(), 8)
}
