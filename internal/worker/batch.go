// Package worker holds the asynq handlers run by the worker process.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/imageloader"
	"mtserver/internal/models"
	"mtserver/internal/services"
	"mtserver/internal/tasks"
)

// BatchRunner is the part of the orchestrator the batch handler needs.
type BatchRunner interface {
	Batch(ctx context.Context, req services.BatchRequest) ([]models.BatchItem, error)
}

// BatchResult is what a completed batch task stores as its asynq result.
type BatchResult struct {
	Items []models.BatchItem `json:"items"`
}

// HandleBatchTranslate returns the handler for TypeBatchTranslate tasks.
func HandleBatchTranslate(runner BatchRunner, defaultBatchSize int) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParseBatchPayload(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		workflow, err := models.ParseWorkflow(payload.Workflow)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		sources := make([]imageloader.Source, len(payload.Images))
		for i, ref := range payload.Images {
			sources[i] = imageloader.FromString(ref)
		}

		batchSize := payload.BatchSize
		if batchSize <= 0 {
			batchSize = defaultBatchSize
		}

		rw := t.ResultWriter()
		jobID := ""
		if rw != nil {
			jobID = rw.TaskID()
		}

		logger := log.WithFields(log.Fields{"job_id": jobID, "images": len(sources)})
		logger.Info("Running queued batch translation")

		items, err := runner.Batch(ctx, services.BatchRequest{
			Images:    sources,
			Config:    payload.Config,
			Workflow:  workflow,
			BatchSize: batchSize,
			Attempts:  payload.Attempts,
			FontPath:  payload.FontPath,
		})
		if err != nil {
			if errors.Is(err, models.ErrImageLoad) || errors.Is(err, models.ErrCancelled) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}

		b, err := json.Marshal(BatchResult{Items: items})
		if err != nil {
			return fmt.Errorf("marshal batch result: %w", err)
		}
		// Tasks built outside an asynq server carry no result writer.
		if rw != nil {
			if _, err := rw.Write(b); err != nil {
				return fmt.Errorf("write batch result: %w", err)
			}
		}

		logger.Info("Queued batch translation finished")
		return nil
	}
}

// RegisterHandlers wires every task type onto mux.
func RegisterHandlers(mux *asynq.ServeMux, runner BatchRunner, defaultBatchSize int) {
	mux.HandleFunc(tasks.TypeBatchTranslate, HandleBatchTranslate(runner, defaultBatchSize))
}
