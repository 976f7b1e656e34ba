package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/tasks"
)

// AsynqJobClient enqueues batch translation tasks on Redis through asynq and
// reads their results back with an inspector.
type AsynqJobClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
	closed    atomic.Bool
}

// Ensure it implements JobClient
var _ JobClient = (*AsynqJobClient)(nil)

func NewAsynqJobClient(opt asynq.RedisClientOpt, retention time.Duration) (*AsynqJobClient, error) {
	if opt.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &AsynqJobClient{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		retention: retention,
	}, nil
}

// Close releases the Redis connections. Later calls are no-ops.
func (jc *AsynqJobClient) Close() error {
	if !jc.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Join(jc.client.Close(), jc.inspector.Close())
}

// EnqueueBatch queues a batch translation. Batches are not retried: a failed
// pipeline call is reported, not repeated.
func (jc *AsynqJobClient) EnqueueBatch(ctx context.Context, payload tasks.BatchPayload) (*asynq.TaskInfo, error) {
	if jc.closed.Load() {
		return nil, ErrClosed
	}
	task, err := tasks.NewBatchTranslateTask(payload)
	if err != nil {
		return nil, err
	}

	info, err := jc.client.EnqueueContext(ctx, task,
		asynq.Queue(tasks.QueueTranslate),
		asynq.MaxRetry(0),
		asynq.Retention(jc.retention),
	)
	if err != nil {
		log.Errorf("Failed to enqueue task type '%s': %v", task.Type(), err)
		return nil, fmt.Errorf("enqueue batch translation: %w", err)
	}

	log.WithField("job_id", info.ID).Debugf("Enqueued batch translation of %d images", len(payload.Images))

	return info, nil
}

func (jc *AsynqJobClient) BatchStatus(ctx context.Context, id string) (*BatchStatus, error) {
	if jc.closed.Load() {
		return nil, ErrClosed
	}
	info, err := jc.inspector.GetTaskInfo(tasks.QueueTranslate, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("inspect batch job %s: %w", id, err)
	}

	return &BatchStatus{
		ID:       info.ID,
		State:    info.State.String(),
		Retried:  info.Retried,
		LastErr:  info.LastErr,
		Result:   info.Result,
		Finished: info.State == asynq.TaskStateCompleted || info.State == asynq.TaskStateArchived,
	}, nil
}
