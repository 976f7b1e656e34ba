package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"mtserver/internal/framing"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
)

// streamJob is the per-request state of one streamed translation. It is
// owned by a single goroutine and needs no locking.
type streamJob struct {
	o         *Orchestrator
	taskID    string
	req       JobRequest
	transform Transform

	fw     *framing.Writer
	rel    *releaseStack
	logger *log.Entry
	state  string
}

// Stream runs one job and writes its frames to w: progress frames, then
// either the payload frame followed by the complete frame, or a single error
// frame. Resources are released before Stream returns on every path. The
// returned error describes a failed or cancelled job; the client already
// received it as a frame.
func (o *Orchestrator) Stream(ctx context.Context, w io.Writer, req JobRequest, transform Transform) (err error) {
	logger := log.WithField("workflow", req.Workflow)

	if transform == nil {
		transform = JSONTransform
	}

	job := &streamJob{
		o:         o,
		req:       req,
		transform: transform,
		fw:        framing.NewWriter(w),
		rel:       newReleaseStack(logger),
		logger:    logger,
		state:     models.JobStateAdmitted,
	}

	defer func() {
		if r := recover(); r != nil {
			err = stageErr(models.StageUnknown, fmt.Errorf("panic: %v", r))
			job.fail(err)
		}

		job.logger.Debug("Releasing translation resources")
		_ = job.rel.run()
	}()

	taskID, jobCtx := o.admit(ctx, req.Workflow, job.rel)
	job.taskID = taskID
	job.logger = logger.WithField("task_id", taskID)
	job.rel.logger = job.logger

	if err = job.run(ctx, jobCtx); err != nil {
		job.fail(err)
		return err
	}

	return nil
}

func (j *streamJob) setState(s string) {
	j.state = s
	j.logger.WithField("state", s).Debug("Job state changed")
}

func (j *streamJob) progress(stage models.Stage, message string) error {
	taskID := ""
	if stage == models.StageTaskID {
		taskID = j.taskID
	}

	if err := j.fw.Progress(stage.String(), message, taskID); err != nil {
		return stageErr(models.StageUnknown, fmt.Errorf("send %s frame: %w", stage, err))
	}

	return nil
}

// fail emits the terminal error frame. Emission is best effort.
func (j *streamJob) fail(err error) {
	stage := StageOf(err)

	message := err.Error()
	var se *StageError
	if errors.As(err, &se) {
		message = se.Err.Error()
	}

	if stage == models.StageCancelled {
		j.setState(models.JobStateCancelled)
		j.logger.Warn("Task cancelled by admin")
	} else {
		j.setState(models.JobStateFailed)
		j.logger.Errorf("Translation failed at stage %s: %s", stage, message)
	}

	if j.fw.Closed() {
		return
	}
	if werr := j.fw.Error(stage.String(), message); werr != nil {
		j.logger.Debugf("Could not send error frame: %v", werr)
	}
}

func (j *streamJob) run(ctx, jobCtx context.Context) error {
	o := j.o

	if err := j.progress(models.StageTaskID, ""); err != nil {
		return err
	}

	onWait := func(waiting int64) error {
		return j.progress(models.StageQueued, fmt.Sprintf("waiting for a translation slot (%d in queue)", waiting))
	}
	if err := o.acquire(jobCtx, j.taskID, j.logger, j.rel, onWait); err != nil {
		return err
	}
	j.setState(models.JobStateGateAcquired)

	if err := o.checkpoint(j.taskID); err != nil {
		return err
	}

	j.logger.Info("Starting translation")
	if err := j.progress(models.StageStart, "starting translation"); err != nil {
		return err
	}
	if err := j.progress(models.StageImageLoading, "loading image"); err != nil {
		return err
	}

	img, err := o.load(jobCtx, j.taskID, j.req.Image)
	if err != nil {
		return err
	}
	j.rel.pushFunc("decoded image", func() { img = nil })
	j.setState(models.JobStateImageLoaded)

	params := prepareStreamParams(j.req.Workflow, j.req.Attempts, j.req.FontPath, o.policy)
	j.logger.Infof("Translation retry attempts: %d", params.Attempts)
	j.logger.Debugf("GPU settings: use_gpu=%v use_gpu_limited=%v", params.UseGPU, params.UseGPULimited)
	j.setState(models.JobStateParamsPrepared)

	if err := o.checkpoint(j.taskID); err != nil {
		return err
	}
	if err := j.progress(models.StageTranslatorInit, "initializing translator"); err != nil {
		return err
	}

	if err := o.checkpoint(j.taskID); err != nil {
		return err
	}
	if err := j.progress(models.StageTranslating, "translating"); err != nil {
		return err
	}

	if err := o.checkpoint(j.taskID); err != nil {
		return err
	}

	j.setState(models.JobStatePipelineInvoked)
	res, err := o.invoke(ctx, j.taskID, img, j.req, params)
	if res != nil {
		j.rel.pushFunc("pipeline buffers", res.Release)
	}
	if err != nil {
		return err
	}

	rec := newRecord(j.req.Workflow, res)
	j.setState(models.JobStateResultReady)
	j.logger.Infof("Translation finished, has image: %v", rec.HasImage)

	if err := j.progress(models.StageTranslateDone, "translation finished, processing result"); err != nil {
		return err
	}
	if n := len(rec.TextRegions); n > 0 {
		if err := j.progress(models.StageProcessing, fmt.Sprintf("detected %d text regions", n)); err != nil {
			return err
		}
	}

	if !rec.HasImage {
		return stageErr(models.StageNoResult, fmt.Errorf("%w (no text detected or the pipeline failed silently)", models.ErrNoResult))
	}

	return j.deliver(res, rec)
}

func (j *streamJob) deliver(res *pipeline.Result, rec models.ResultRecord) error {
	if err := j.progress(models.StageTransforming, "transforming result"); err != nil {
		return err
	}

	var data []byte
	err := recoverAs(func() error {
		var terr error
		data, terr = j.transform(res, rec)
		return terr
	})
	if err != nil {
		return stageErr(models.StageTransform, fmt.Errorf("%w: %v", models.ErrTransform, err))
	}
	j.setState(models.JobStateTransformed)
	j.logger.Debugf("Result size: %d bytes", len(data))

	if err := j.progress(models.StageSending, "sending result"); err != nil {
		return err
	}
	if err := j.fw.Payload(data); err != nil {
		return stageErr(models.StageUnknown, fmt.Errorf("send payload frame: %w", err))
	}
	j.setState(models.JobStateSent)

	if err := j.progress(models.StageComplete, "done"); err != nil {
		// The payload is out; a lost complete frame is not a job failure.
		j.logger.Warnf("Could not send complete frame: %v", err)
	}
	j.setState(models.JobStateDone)
	j.logger.Info("Translation complete")

	return nil
}
