package models

/*
Stage names emitted in progress and error frames. Clients match on these
strings, so they are part of the wire contract.
*/

// Stage is a named checkpoint of a translation job.
type Stage string

// Progress stages, in emission order.
const (
	StageTaskID         Stage = "task_id"
	StageQueued         Stage = "queued"
	StageStart          Stage = "start"
	StageImageLoading   Stage = "image_loading"
	StageTranslatorInit Stage = "translator_init"
	StageTranslating    Stage = "translating"
	StageTranslateDone  Stage = "translate_done"
	StageProcessing     Stage = "processing"
	StageTransforming   Stage = "transforming"
	StageSending        Stage = "sending"
	StageComplete       Stage = "complete"
)

// Terminal error stages. StageImageLoading doubles as the input error tag.
const (
	StageCancelled Stage = "cancelled"
	StageTranslate Stage = "translate"
	StageNoResult  Stage = "no_result"
	StageTransform Stage = "transform"
	StageUnknown   Stage = "unknown"
)

func (s Stage) String() string { return string(s) }

// Job states of a single orchestrated request.
const (
	JobStateAdmitted        = "admitted"
	JobStateImageLoaded     = "image_loaded"
	JobStateParamsPrepared  = "params_prepared"
	JobStateGateAcquired    = "gate_acquired"
	JobStatePipelineInvoked = "pipeline_invoked"
	JobStateResultReady     = "result_ready"
	JobStateTransformed     = "transformed"
	JobStateSent            = "sent"
	JobStateDone            = "done"
	JobStateCancelled       = "cancelled"
	JobStateFailed          = "failed"
)
