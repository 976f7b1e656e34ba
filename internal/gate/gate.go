// Package gate bounds how many pipeline invocations run at the same time.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore with an advisory waiter count.
// A Gate built with a non-positive limit never blocks.
type Gate struct {
	limit int64
	sem   *semaphore.Weighted

	waiting atomic.Int64
	inUse   atomic.Int64
}

func New(limit int64) *Gate {
	g := &Gate{limit: limit}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(limit)
	}
	return g
}

// Slot is a granted admission. Release is safe to call more than once.
type Slot struct {
	g    *Gate
	once sync.Once
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Slot, error) {
	if g.sem != nil {
		g.waiting.Add(1)
		err := g.sem.Acquire(ctx, 1)
		g.waiting.Add(-1)

		if err != nil {
			return nil, err
		}
	}

	g.inUse.Add(1)

	return &Slot{g: g}, nil
}

func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.g.inUse.Add(-1)
		if s.g.sem != nil {
			s.g.sem.Release(1)
		}
	})
}

// Limited reports whether the gate enforces a limit at all.
func (g *Gate) Limited() bool { return g.sem != nil }

// Limit returns the configured slot count, 0 meaning unlimited.
func (g *Gate) Limit() int64 {
	if g.sem == nil {
		return 0
	}
	return g.limit
}

// Waiting is an approximate number of callers blocked in Acquire.
func (g *Gate) Waiting() int64 { return g.waiting.Load() }

// InUse is the number of slots currently held.
func (g *Gate) InUse() int64 { return g.inUse.Load() }

// TryAcquire grants a slot without blocking. It returns nil when the gate is
// full.
func (g *Gate) TryAcquire() *Slot {
	if g.sem != nil && !g.sem.TryAcquire(1) {
		return nil
	}

	g.inUse.Add(1)

	return &Slot{g: g}
}
