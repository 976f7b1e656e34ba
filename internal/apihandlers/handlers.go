package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/app"
	"mtserver/internal/gate"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
	"mtserver/internal/services"
	"mtserver/internal/store"
	"mtserver/internal/tasks"
)

// Translator is the orchestration surface the handlers drive.
type Translator interface {
	Stream(ctx context.Context, w io.Writer, req services.JobRequest, transform services.Transform) error
	Single(ctx context.Context, req services.JobRequest) (*models.ResultRecord, error)
	Batch(ctx context.Context, req services.BatchRequest) ([]models.BatchItem, error)
	Cancel(taskID string) bool
	Tasks() []models.Task
}

type APIHandler struct {
	Translator Translator
	Gate       *gate.Gate
	Jobs       store.JobClient // nil disables queued batches

	MaxBatchImages   int
	DefaultBatchSize int
}

// NewAPIHandler builds the handler set from an initialized app.
func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{
		Translator:       app.Orchestrator,
		Gate:             app.Gate,
		Jobs:             app.JobClient,
		MaxBatchImages:   app.Config.Batch.MaxImages,
		DefaultBatchSize: app.Config.Batch.DefaultSize,
	}
}

// RegisterRoutes mounts every endpoint on router.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		translate := v1.Group("/translate")
		{
			translate.POST("/json", h.TranslateJSONHandler)
			translate.POST("/json/stream", h.StreamJSONHandler)
			translate.POST("/image/stream", h.StreamImageHandler)
			translate.POST("/with-form/image/stream", h.StreamFormImageHandler)
			translate.POST("/batch", h.BatchHandler)
			translate.POST("/batch/queue", h.QueueBatchHandler)
			translate.GET("/batch/queue/:id", h.BatchStatusHandler)
		}

		taskGroup := v1.Group("/tasks")
		{
			taskGroup.GET("", h.ListTasksHandler)
			taskGroup.POST("/:id/cancel", h.CancelTaskHandler)
		}
	}

	router.GET("/health", h.HealthHandler)
}

// --- Single image ---

// TranslateJSONHandler runs one job and answers with its result record.
func (h *APIHandler) TranslateJSONHandler(c *gin.Context) {
	req, err := parseTranslateRequest(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.Translator.Single(c.Request.Context(), req)
	if err != nil {
		respondJobError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// --- Streaming ---

func (h *APIHandler) StreamJSONHandler(c *gin.Context) {
	req, err := parseTranslateRequest(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	h.stream(c, req, services.JSONTransform)
}

func (h *APIHandler) StreamImageHandler(c *gin.Context) {
	req, err := parseTranslateRequest(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	h.streamImage(c, req)
}

func (h *APIHandler) StreamFormImageHandler(c *gin.Context) {
	req, err := parseFormRequest(c)
	if err != nil {
		BadRequest(c, "Invalid form data: "+err.Error())
		return
	}
	h.streamImage(c, req)
}

func (h *APIHandler) streamImage(c *gin.Context, req services.JobRequest) {
	transform, err := services.ImageTransform(c.DefaultQuery("format", "png"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.stream(c, req, transform)
}

// stream writes the framed response. Once the header is sent every outcome,
// failures included, travels inside the stream.
func (h *APIHandler) stream(c *gin.Context, req services.JobRequest, transform services.Transform) {
	c.Header("Content-Type", "application/octet-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	if err := h.Translator.Stream(c.Request.Context(), c.Writer, req, transform); err != nil {
		log.Debugf("Streamed job ended with: %v", err)
	}
}

// --- Batch ---

func (h *APIHandler) BatchHandler(c *gin.Context) {
	body, workflow, err := parseBatchRequest(c, h.MaxBatchImages, h.DefaultBatchSize)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	req := newBatchRequest(body, workflow)

	items, err := h.Translator.Batch(c.Request.Context(), req)
	if err != nil {
		respondJobError(c, err)
		return
	}

	c.JSON(http.StatusOK, BatchTranslateResponse{Items: items})
}

func (h *APIHandler) QueueBatchHandler(c *gin.Context) {
	if h.Jobs == nil {
		Unavailable(c, "Queued batch translation is not configured on this server")
		return
	}

	body, workflow, err := parseBatchRequest(c, h.MaxBatchImages, h.DefaultBatchSize)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	attempts, fontPath := clientOverrides(body.Config)

	info, err := h.Jobs.EnqueueBatch(c.Request.Context(), tasks.BatchPayload{
		Images:    body.Images,
		Config:    body.Config,
		Workflow:  workflow.String(),
		BatchSize: body.BatchSize,
		Attempts:  attempts,
		FontPath:  fontPath,
	})
	if err != nil {
		Internal(c, fmt.Sprintf("QueueBatchHandler: failed to enqueue batch: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, QueuedBatchResponse{
		ID:    info.ID,
		Queue: info.Queue,
		State: info.State.String(),
	})
}

func (h *APIHandler) BatchStatusHandler(c *gin.Context) {
	if h.Jobs == nil {
		Unavailable(c, "Queued batch translation is not configured on this server")
		return
	}

	status, err := h.Jobs.BatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Batch job not found with ID: %s", c.Param("id")))
		} else {
			Internal(c, fmt.Sprintf("BatchStatusHandler: %v", err))
		}
		return
	}

	resp := gin.H{"job": status}
	if len(status.Result) > 0 {
		resp["result"] = rawJSON(status.Result)
	}
	c.JSON(http.StatusOK, resp)
}

func newBatchRequest(body BatchTranslateRequest, workflow models.Workflow) services.BatchRequest {
	cfg := body.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	attempts, fontPath := clientOverrides(cfg)

	return services.BatchRequest{
		Images:    sourcesFromStrings(body.Images),
		Config:    pipeline.Config(cfg),
		Workflow:  workflow,
		BatchSize: body.BatchSize,
		Attempts:  attempts,
		FontPath:  fontPath,
	}
}

// --- Task administration ---

func (h *APIHandler) ListTasksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.Translator.Tasks()})
}

// CancelTaskHandler flags a running task. The job stops at its next
// checkpoint, not immediately.
func (h *APIHandler) CancelTaskHandler(c *gin.Context) {
	id := c.Param("id")
	if !h.Translator.Cancel(id) {
		NotFound(c, fmt.Sprintf("Task not found with ID: %s", id))
		return
	}
	log.WithField("task_id", id).Info("Task cancellation requested via API")
	c.JSON(http.StatusOK, gin.H{"task_id": id, "cancelled": true})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Gate != nil {
		resp["concurrency"] = gin.H{
			"limit":   h.Gate.Limit(),
			"in_use":  h.Gate.InUse(),
			"waiting": h.Gate.Waiting(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// respondJobError maps a non-streamed job failure to an HTTP status.
func respondJobError(c *gin.Context, err error) {
	stage := services.StageOf(err)

	switch {
	case errors.Is(err, models.ErrImageLoad), errors.Is(err, models.ErrEmptyBatch):
		StageJSONError(c, http.StatusUnprocessableEntity, "invalid_image", stage.String(), err.Error())
	case errors.Is(err, models.ErrCancelled):
		StageJSONError(c, http.StatusConflict, "cancelled", stage.String(), err.Error())
	default:
		StageJSONError(c, http.StatusInternalServerError, "translation_failed", stage.String(), err.Error())
	}
}
