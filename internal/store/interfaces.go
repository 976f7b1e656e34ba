package store

import (
	"context"

	"github.com/hibiken/asynq"

	"mtserver/internal/tasks"
)

// --- Job Client ---

// JobClient queues batch translations for the worker process.
type JobClient interface {
	EnqueueBatch(ctx context.Context, payload tasks.BatchPayload) (*asynq.TaskInfo, error)
	// BatchStatus looks up a queued batch; the result is set once it completed.
	BatchStatus(ctx context.Context, id string) (*BatchStatus, error)
	Close() error
}

// BatchStatus is the queue-side view of an enqueued batch job.
type BatchStatus struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Retried  int    `json:"retried"`
	LastErr  string `json:"last_error,omitempty"`
	Result   []byte `json:"-"`
	Finished bool   `json:"finished"`
}
