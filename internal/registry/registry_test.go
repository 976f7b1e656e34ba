package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/models"
	"mtserver/internal/registry"
)

func TestRegistry_CancelFlagsTaskAndCallsHandle(t *testing.T) {
	r := registry.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := registry.NewID()
	r.Register(id, models.WorkflowNormal, cancel)

	assert.False(t, r.IsCancelled(id))
	assert.True(t, r.Cancel(id))
	assert.True(t, r.IsCancelled(id))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// A second cancel is still reported as found.
	assert.True(t, r.Cancel(id))
}

func TestRegistry_CancelUnknownTask(t *testing.T) {
	r := registry.New()
	assert.False(t, r.Cancel("does-not-exist"))
	assert.False(t, r.IsCancelled("does-not-exist"))
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := registry.New()
	r.Register("a", models.WorkflowNormal, nil)

	r.Unregister("a")
	r.Unregister("a")

	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Cancel("a"), "cancel after unregister must report not found")
	assert.False(t, r.IsCancelled("a"))
}

func TestRegistry_NilHandle(t *testing.T) {
	r := registry.New()
	r.Register("a", models.WorkflowUpscaleOnly, nil)
	assert.True(t, r.Cancel("a"))
	assert.True(t, r.IsCancelled("a"))
}

func TestRegistry_Checker(t *testing.T) {
	r := registry.New()
	r.Register("a", models.WorkflowNormal, nil)
	check := r.Checker("a")

	assert.False(t, check())
	r.Cancel("a")
	assert.True(t, check())

	r.Unregister("a")
	assert.False(t, check())
}

func TestRegistry_ListSnapshot(t *testing.T) {
	r := registry.New()
	r.Register("first", models.WorkflowNormal, nil)
	time.Sleep(2 * time.Millisecond)
	r.Register("second", models.WorkflowColorizeOnly, nil)
	r.Cancel("second")

	tasks := r.List()
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].ID)
	assert.Equal(t, models.WorkflowNormal, tasks[0].Workflow)
	assert.False(t, tasks[0].Cancelled)
	assert.Equal(t, "second", tasks[1].ID)
	assert.True(t, tasks[1].Cancelled)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := registry.New()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			r.Register(id, models.WorkflowNormal, nil)
			r.IsCancelled(id)
			if i%2 == 0 {
				r.Cancel(id)
			}
			_ = r.List()
			r.Unregister(id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := registry.NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}
