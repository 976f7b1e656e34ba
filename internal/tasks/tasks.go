package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Defines constants for task types used in Asynq.

const (
	// TypeBatchTranslate runs the batch orchestrator on a queued request.
	TypeBatchTranslate = "translate:batch"

	// QueueTranslate is the queue batch jobs are enqueued on.
	QueueTranslate = "translate"
)

// BatchPayload is the body of a TypeBatchTranslate task. Images are data URIs
// or URLs as sent by the client.
type BatchPayload struct {
	Images    []string       `json:"images"`
	Config    map[string]any `json:"config,omitempty"`
	Workflow  string         `json:"workflow"`
	BatchSize int            `json:"batch_size"`
	Attempts  *int           `json:"attempts,omitempty"`
	FontPath  string         `json:"font_path,omitempty"`
}

// NewBatchTranslateTask builds the asynq task for a batch payload.
func NewBatchTranslateTask(p BatchPayload, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal batch payload: %w", err)
	}
	return asynq.NewTask(TypeBatchTranslate, b, opts...), nil
}

// ParseBatchPayload decodes the body of a TypeBatchTranslate task.
func ParseBatchPayload(t *asynq.Task) (BatchPayload, error) {
	var p BatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal batch payload: %w", err)
	}
	return p, nil
}
