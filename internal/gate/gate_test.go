package gate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/gate"
)

func TestGate_BoundsConcurrency(t *testing.T) {
	const limit = 2
	g := gate.New(limit)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := g.Acquire(context.Background())
			require.NoError(t, err)
			defer slot.Release()

			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, int64(0), g.InUse())
	assert.Equal(t, int64(0), g.Waiting())
}

func TestGate_Unlimited(t *testing.T) {
	for _, limit := range []int64{0, -1} {
		g := gate.New(limit)
		assert.False(t, g.Limited())
		assert.Equal(t, int64(0), g.Limit())

		slots := make([]*gate.Slot, 0, 50)
		for i := 0; i < 50; i++ {
			s, err := g.Acquire(context.Background())
			require.NoError(t, err)
			slots = append(slots, s)
		}
		assert.NotNil(t, g.TryAcquire())
		for _, s := range slots {
			s.Release()
		}
	}
}

func TestGate_TryAcquireAndWaiting(t *testing.T) {
	g := gate.New(1)
	require.True(t, g.Limited())
	assert.Equal(t, int64(1), g.Limit())

	held := g.TryAcquire()
	require.NotNil(t, held)
	assert.Nil(t, g.TryAcquire(), "gate is full")

	acquired := make(chan *gate.Slot)
	go func() {
		s, err := g.Acquire(context.Background())
		if err == nil {
			acquired <- s
		}
	}()

	assert.Eventually(t, func() bool { return g.Waiting() == 1 }, time.Second, time.Millisecond)

	held.Release()
	select {
	case s := <-acquired:
		assert.Equal(t, int64(0), g.Waiting())
		assert.Equal(t, int64(1), g.InUse())
		s.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter was not admitted after release")
	}
	assert.Equal(t, int64(0), g.InUse())
}

func TestGate_AcquireHonorsContext(t *testing.T) {
	g := gate.New(1)
	held, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	slot, err := g.Acquire(ctx)
	assert.Nil(t, slot)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), g.Waiting())
	assert.Equal(t, int64(1), g.InUse())
}

func TestSlot_ReleaseTwiceAndNil(t *testing.T) {
	g := gate.New(1)
	s := g.TryAcquire()
	require.NotNil(t, s)

	s.Release()
	s.Release()
	assert.Equal(t, int64(0), g.InUse())

	// Double release must not have freed a second permit.
	a := g.TryAcquire()
	require.NotNil(t, a)
	assert.Nil(t, g.TryAcquire())
	a.Release()

	var none *gate.Slot
	assert.NotPanics(t, none.Release)
}
