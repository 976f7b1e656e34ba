package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mtserver/internal/models"
	"mtserver/internal/services"
	"mtserver/internal/tasks"
	"mtserver/internal/worker"
)

type mockBatchRunner struct {
	mock.Mock
}

func (m *mockBatchRunner) Batch(ctx context.Context, req services.BatchRequest) ([]models.BatchItem, error) {
	args := m.Called(ctx, req)
	items, _ := args.Get(0).([]models.BatchItem)
	return items, args.Error(1)
}

func newTask(t *testing.T, p tasks.BatchPayload) *asynq.Task {
	t.Helper()
	task, err := tasks.NewBatchTranslateTask(p)
	require.NoError(t, err)
	return task
}

func TestHandleBatchTranslate_RunsBatch(t *testing.T) {
	runner := new(mockBatchRunner)
	attempts := 3
	runner.On("Batch", mock.Anything, mock.MatchedBy(func(req services.BatchRequest) bool {
		return len(req.Images) == 2 &&
			req.Images[1].Ref == "https://example.com/2.png" &&
			req.Workflow == models.WorkflowLoadText &&
			req.BatchSize == 4 &&
			req.Attempts != nil && *req.Attempts == 3
	})).Return([]models.BatchItem{{Index: 0}, {Index: 1}}, nil).Once()

	handler := worker.HandleBatchTranslate(runner, 4)
	err := handler(context.Background(), newTask(t, tasks.BatchPayload{
		Images:   []string{"https://example.com/1.png", "https://example.com/2.png"},
		Workflow: "load_text",
		Attempts: &attempts,
	}))
	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestHandleBatchTranslate_SkipsRetryOnBadInput(t *testing.T) {
	runner := new(mockBatchRunner)
	handler := worker.HandleBatchTranslate(runner, 4)

	err := handler(context.Background(), asynq.NewTask(tasks.TypeBatchTranslate, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = handler(context.Background(), newTask(t, tasks.BatchPayload{Images: []string{"x"}, Workflow: "bogus"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	runner.AssertNotCalled(t, "Batch", mock.Anything, mock.Anything)
}

func TestHandleBatchTranslate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{"image load", models.ErrImageLoad, true},
		{"cancelled", models.ErrCancelled, true},
		{"pipeline", errors.New("pipeline crashed"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mockBatchRunner)
			runner.On("Batch", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			err := worker.HandleBatchTranslate(runner, 4)(context.Background(), newTask(t, tasks.BatchPayload{Images: []string{"x"}}))
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestBatchPayload_RoundTrip(t *testing.T) {
	in := tasks.BatchPayload{
		Images:    []string{"data:image/png;base64,AAAA"},
		Config:    map[string]any{"translator": map[string]any{"target_lang": "ENG"}},
		Workflow:  "normal",
		BatchSize: 2,
	}
	task := newTask(t, in)
	assert.Equal(t, tasks.TypeBatchTranslate, task.Type())

	out, err := tasks.ParseBatchPayload(task)
	require.NoError(t, err)
	assert.Equal(t, in.Images, out.Images)
	assert.Equal(t, in.BatchSize, out.BatchSize)
	assert.Nil(t, out.Attempts)
}
