package services

import (
	"context"
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mtserver/internal/imageloader"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
)

// DefaultBatchSize is the chunking hint used when the caller gives none.
const DefaultBatchSize = 4

// maxParallelDecodes bounds concurrent image fetches of one batch.
const maxParallelDecodes = 8

// BatchRequest is a list of images translated in one pipeline call.
type BatchRequest struct {
	Images    []imageloader.Source
	Config    pipeline.Config
	Workflow  models.Workflow
	BatchSize int

	Attempts *int
	FontPath string
}

// Batch decodes every image, then runs a single batch pipeline call. One
// undecodable image fails the whole request before the pipeline is touched.
// The returned items follow input order; an item with a nil Result is an
// image the pipeline produced nothing for.
func (o *Orchestrator) Batch(ctx context.Context, req BatchRequest) (items []models.BatchItem, err error) {
	if len(req.Images) == 0 {
		return nil, stageErr(models.StageImageLoading, models.ErrEmptyBatch)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	logger := log.WithFields(log.Fields{"workflow": req.Workflow, "images": len(req.Images)})
	rel := newReleaseStack(logger)

	defer func() {
		if r := recover(); r != nil {
			items, err = nil, stageErr(models.StageUnknown, fmt.Errorf("panic: %v", r))
		}
		_ = rel.run()
	}()

	taskID, jobCtx := o.admit(ctx, req.Workflow, rel)
	logger = logger.WithField("task_id", taskID)
	rel.logger = logger

	images, err := o.decodeAll(jobCtx, taskID, req.Images)
	if err != nil {
		return nil, err
	}
	rel.pushFunc("decoded images", func() { clear(images) })

	params := PrepareParams(req.Workflow, req.Attempts, req.FontPath, o.policy)

	if err := o.acquire(jobCtx, taskID, logger, rel, nil); err != nil {
		return nil, err
	}
	if err := o.checkpoint(taskID); err != nil {
		return nil, err
	}

	inputs := make([]pipeline.BatchInput, len(images))
	for i, img := range images {
		inputs[i] = pipeline.BatchInput{Image: img, Config: req.Config}
	}

	logger.Infof("Starting batch translation (batch size %d)", batchSize)

	var results []*pipeline.Result
	err = recoverAs(func() error {
		var callErr error
		results, callErr = o.pipeline.TranslateBatch(ctx, inputs, batchSize, params, o.registry.Checker(taskID))
		return callErr
	})
	rel.pushFunc("pipeline buffers", func() {
		for _, r := range results {
			r.Release()
		}
	})

	if err != nil {
		if o.registry.IsCancelled(taskID) {
			return nil, stageErr(models.StageCancelled, models.ErrCancelled)
		}
		logger.Errorf("Batch translation failed: %v", err)
		return nil, stageErr(models.StageTranslate, fmt.Errorf("%w: %v", models.ErrPipeline, err))
	}
	if err := o.checkpoint(taskID); err != nil {
		return nil, err
	}
	if len(results) != len(images) {
		return nil, stageErr(models.StageTranslate, fmt.Errorf("%w: %d results for %d images", models.ErrPipeline, len(results), len(images)))
	}

	items = make([]models.BatchItem, len(results))
	missing := 0
	for i, res := range results {
		items[i].Index = i
		if res == nil {
			missing++
			continue
		}
		rec := newRecord(req.Workflow, res)
		items[i].Result = &rec
	}

	logger.Infof("Batch translation finished (%d of %d images produced a result)", len(items)-missing, len(items))

	return items, nil
}

// decodeAll loads every source concurrently and fails on the first error.
func (o *Orchestrator) decodeAll(ctx context.Context, taskID string, sources []imageloader.Source) ([]image.Image, error) {
	images := make([]image.Image, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDecodes)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			img, err := o.loader.Load(gctx, src)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		clear(images)
		if o.registry.IsCancelled(taskID) {
			return nil, stageErr(models.StageCancelled, models.ErrCancelled)
		}
		return nil, stageErr(models.StageImageLoading, err)
	}

	return images, nil
}
