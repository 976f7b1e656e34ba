package services

import (
	"context"
	"errors"
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"

	"mtserver/internal/gate"
	"mtserver/internal/imageloader"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
	"mtserver/internal/registry"
)

// OrchestratorDeps lists what the orchestrator needs. Registry and Gate are
// shared by every job; everything else a job creates is its own.
type OrchestratorDeps struct {
	Registry *registry.Registry
	Gate     *gate.Gate
	Pipeline pipeline.Pipeline
	Loader   imageloader.Loader
	Policy   ServerPolicy
}

// Orchestrator drives single-image jobs (streamed or not) and batches.
type Orchestrator struct {
	registry *registry.Registry
	gate     *gate.Gate
	pipeline pipeline.Pipeline
	loader   imageloader.Loader
	policy   ServerPolicy
}

func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("orchestrator: task registry is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("orchestrator: pipeline is required")
	}
	if deps.Loader == nil {
		deps.Loader = imageloader.New(imageloader.Options{})
	}
	if deps.Gate == nil {
		log.Warn("Concurrency gate not configured, running with unlimited concurrency")
		deps.Gate = gate.New(0)
	}

	return &Orchestrator{
		registry: deps.Registry,
		gate:     deps.Gate,
		pipeline: deps.Pipeline,
		loader:   deps.Loader,
		policy:   deps.Policy,
	}, nil
}

// JobRequest is one single-image submission.
type JobRequest struct {
	Image    imageloader.Source
	Config   pipeline.Config
	Workflow models.Workflow

	// Attempts and FontPath come from the client config; the server policy
	// may override them.
	Attempts *int
	FontPath string
}

// Cancel flags a task for cooperative cancellation. It reports whether the
// task was known.
func (o *Orchestrator) Cancel(taskID string) bool {
	return o.registry.Cancel(taskID)
}

// Tasks lists the tasks currently registered.
func (o *Orchestrator) Tasks() []models.Task {
	return o.registry.List()
}

// Gate exposes the admission gate for diagnostics.
func (o *Orchestrator) Gate() *gate.Gate {
	return o.gate
}

// admit registers a new task whose handle cancels the returned context, and
// schedules its removal on rel.
func (o *Orchestrator) admit(ctx context.Context, workflow models.Workflow, rel *releaseStack) (string, context.Context) {
	taskID := registry.NewID()
	jobCtx, cancel := context.WithCancel(ctx)

	o.registry.Register(taskID, workflow, cancel)

	rel.pushFunc("task registration", func() {
		o.registry.Unregister(taskID)
		cancel()
	})

	return taskID, jobCtx
}

// acquire takes a gate slot, calling onWait first when the caller has to
// queue. The slot is released by rel.
func (o *Orchestrator) acquire(jobCtx context.Context, taskID string, logger *log.Entry, rel *releaseStack, onWait func(waiting int64) error) error {
	if !o.gate.Limited() {
		return nil
	}

	slot := o.gate.TryAcquire()
	if slot == nil {
		waiting := o.gate.Waiting()
		logger.Infof("Waiting for a translation slot (queue length: %d)", waiting)

		if onWait != nil {
			if err := onWait(waiting); err != nil {
				return err
			}
		}

		var err error
		if slot, err = o.gate.Acquire(jobCtx); err != nil {
			if o.registry.IsCancelled(taskID) {
				return stageErr(models.StageCancelled, models.ErrCancelled)
			}
			return stageErr(models.StageUnknown, fmt.Errorf("waiting for a translation slot: %w", err))
		}
	}

	rel.pushFunc("gate slot", slot.Release)
	logger.Info("Acquired translation slot")

	return nil
}

// checkpoint fails with a cancellation error once the task is flagged.
func (o *Orchestrator) checkpoint(taskID string) error {
	if o.registry.IsCancelled(taskID) {
		return stageErr(models.StageCancelled, models.ErrCancelled)
	}
	return nil
}

func (o *Orchestrator) load(jobCtx context.Context, taskID string, src imageloader.Source) (image.Image, error) {
	img, err := o.loader.Load(jobCtx, src)
	if err != nil {
		if o.registry.IsCancelled(taskID) {
			return nil, stageErr(models.StageCancelled, models.ErrCancelled)
		}
		return nil, stageErr(models.StageImageLoading, err)
	}
	return img, nil
}

// invoke calls the pipeline. The pipeline gets the request context, not the
// job context: an admin cancel is observed through the poll callback only.
func (o *Orchestrator) invoke(ctx context.Context, taskID string, img image.Image, req JobRequest, params pipeline.Params) (res *pipeline.Result, err error) {
	err = recoverAs(func() error {
		var callErr error
		res, callErr = o.pipeline.Translate(ctx, img, req.Config, params, o.registry.Checker(taskID))
		return callErr
	})

	if err != nil {
		if errors.Is(err, models.ErrCancelled) {
			return res, stageErr(models.StageCancelled, models.ErrCancelled)
		}
		return res, stageErr(models.StageTranslate, fmt.Errorf("%w: %v", models.ErrPipeline, err))
	}

	// A cancel that lands while the engine runs lets the call finish but
	// stops every later stage.
	if err := o.checkpoint(taskID); err != nil {
		return res, err
	}

	return res, nil
}

// Single runs one job to completion and returns its record.
func (o *Orchestrator) Single(ctx context.Context, req JobRequest) (rec *models.ResultRecord, err error) {
	logger := log.WithField("workflow", req.Workflow)
	rel := newReleaseStack(logger)

	defer func() {
		if r := recover(); r != nil {
			err = stageErr(models.StageUnknown, fmt.Errorf("panic: %v", r))
		}
		_ = rel.run()
	}()

	taskID, jobCtx := o.admit(ctx, req.Workflow, rel)
	logger = logger.WithField("task_id", taskID)
	rel.logger = logger

	if err := o.acquire(jobCtx, taskID, logger, rel, nil); err != nil {
		return nil, err
	}
	if err := o.checkpoint(taskID); err != nil {
		return nil, err
	}

	img, err := o.load(jobCtx, taskID, req.Image)
	if err != nil {
		return nil, err
	}
	rel.pushFunc("decoded image", func() { img = nil })

	params := PrepareParams(req.Workflow, req.Attempts, req.FontPath, o.policy)

	if err := o.checkpoint(taskID); err != nil {
		return nil, err
	}

	res, err := o.invoke(ctx, taskID, img, req, params)
	if res != nil {
		rel.pushFunc("pipeline buffers", res.Release)
	}
	if err != nil {
		logger.Errorf("Translation failed: %v", err)
		return nil, err
	}

	record := newRecord(req.Workflow, res)
	logger.Infof("Translation finished (success=%v, regions=%d)", record.Success, len(record.TextRegions))

	return &record, nil
}
