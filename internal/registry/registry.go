// Package registry keeps the process-wide table of running translation tasks
// and their cooperative cancellation flags.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/models"
)

type entry struct {
	id        string
	workflow  models.Workflow
	createdAt time.Time

	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// Registry maps task ids to cancellation state. The zero value is not usable;
// construct it with New.
type Registry struct {
	mu    sync.RWMutex
	table map[string]*entry
}

func New() *Registry {
	return &Registry{
		table: make(map[string]*entry),
	}
}

// NewID returns a fresh opaque task identifier.
func NewID() string {
	return uuid.NewString()
}

// Register adds a task. The cancel func is the handle to the running work and
// may be nil. Registering an id that is already present replaces the entry.
func (r *Registry) Register(id string, workflow models.Workflow, cancel context.CancelFunc) {
	e := &entry{
		id:        id,
		workflow:  workflow,
		createdAt: time.Now(),
		cancel:    cancel,
	}

	r.mu.Lock()
	r.table[id] = e
	r.mu.Unlock()

	log.WithField("task_id", id).Debug("Task registered")
}

// Cancel flips the cancellation flag of the task and signals its handle.
// It reports whether a task with that id was registered.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	e, found := r.table[id]
	r.mu.RUnlock()

	if !found {
		return false
	}

	if e.cancelled.CompareAndSwap(false, true) {
		log.WithField("task_id", id).Warn("Cancellation requested")

		if e.cancel != nil {
			e.cancel()
		}
	}

	return true
}

// IsCancelled reports whether the task was cancelled. Unknown ids are not
// cancelled.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.RLock()
	e, found := r.table[id]
	r.mu.RUnlock()

	return found && e.cancelled.Load()
}

// Checker returns a poll predicate bound to one task id.
func (r *Registry) Checker(id string) func() bool {
	return func() bool { return r.IsCancelled(id) }
}

// Unregister removes the task. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, found := r.table[id]
	delete(r.table, id)
	r.mu.Unlock()

	if found {
		log.WithField("task_id", id).Debug("Task unregistered")
	}
}

// List returns a snapshot of registered tasks ordered by creation time.
func (r *Registry) List() []models.Task {
	r.mu.RLock()
	tasks := make([]models.Task, 0, len(r.table))
	for _, e := range r.table {
		tasks = append(tasks, models.Task{
			ID:        e.id,
			Workflow:  e.workflow,
			Cancelled: e.cancelled.Load(),
			CreatedAt: e.createdAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.table)
}
