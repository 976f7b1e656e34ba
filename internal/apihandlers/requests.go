package apihandlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"mtserver/internal/imageloader"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
	"mtserver/internal/services"
)

// TranslateRequest is the JSON body of the single-image endpoints.
// Image is a data URI or an http(s) URL.
type TranslateRequest struct {
	Image    string         `json:"image" binding:"required"`
	Config   map[string]any `json:"config"`
	Workflow string         `json:"workflow"`
}

// BatchTranslateRequest is the JSON body of the batch endpoints.
type BatchTranslateRequest struct {
	Images    []string       `json:"images" binding:"required"`
	Config    map[string]any `json:"config"`
	Workflow  string         `json:"workflow"`
	BatchSize int            `json:"batch_size"`
}

// BatchTranslateResponse lists per-image results in input order.
type BatchTranslateResponse struct {
	Items []models.BatchItem `json:"items"`
}

// QueuedBatchResponse describes an enqueued batch job.
type QueuedBatchResponse struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
	State string `json:"state"`
}

// workflowParam prefers the query string over the body value.
func workflowParam(c *gin.Context, body string) (models.Workflow, error) {
	if q := c.Query("workflow"); q != "" {
		return models.ParseWorkflow(q)
	}
	return models.ParseWorkflow(body)
}

// clientOverrides pulls the few config values the orchestrator looks at.
// Everything else in cfg goes to the pipeline untouched.
func clientOverrides(cfg map[string]any) (attempts *int, fontPath string) {
	if cli, ok := cfg["cli"].(map[string]any); ok {
		if v, ok := cli["attempts"].(float64); ok {
			n := int(v)
			attempts = &n
		}
	}
	if render, ok := cfg["render"].(map[string]any); ok {
		if v, ok := render["font_path"].(string); ok {
			fontPath = v
		}
	}
	return attempts, fontPath
}

func newJobRequest(src imageloader.Source, cfg map[string]any, workflow models.Workflow) services.JobRequest {
	if cfg == nil {
		cfg = map[string]any{}
	}
	attempts, fontPath := clientOverrides(cfg)
	return services.JobRequest{
		Image:    src,
		Config:   pipeline.Config(cfg),
		Workflow: workflow,
		Attempts: attempts,
		FontPath: fontPath,
	}
}

// parseTranslateRequest parses the JSON body of a single-image endpoint.
func parseTranslateRequest(c *gin.Context) (services.JobRequest, error) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return services.JobRequest{}, err
	}
	workflow, err := workflowParam(c, req.Workflow)
	if err != nil {
		return services.JobRequest{}, err
	}
	return newJobRequest(imageloader.FromString(req.Image), req.Config, workflow), nil
}

// parseFormRequest parses a multipart upload: an "image" file, an optional
// "config" field holding JSON, and an optional "workflow" field.
func parseFormRequest(c *gin.Context) (services.JobRequest, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return services.JobRequest{}, fmt.Errorf("missing image file: %w", err)
	}

	f, err := fh.Open()
	if err != nil {
		return services.JobRequest{}, fmt.Errorf("open uploaded image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.JobRequest{}, fmt.Errorf("read uploaded image: %w", err)
	}

	cfg := map[string]any{}
	if raw := c.PostForm("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return services.JobRequest{}, fmt.Errorf("invalid config JSON: %w", err)
		}
	}

	workflow, err := workflowParam(c, c.PostForm("workflow"))
	if err != nil {
		return services.JobRequest{}, err
	}

	return newJobRequest(imageloader.FromBytes(data), cfg, workflow), nil
}

// parseBatchRequest parses and validates a batch body against maxImages
// (0 disables the limit).
func parseBatchRequest(c *gin.Context, maxImages, defaultSize int) (BatchTranslateRequest, models.Workflow, error) {
	var req BatchTranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, "", err
	}
	if len(req.Images) == 0 {
		return req, "", models.ErrEmptyBatch
	}
	if maxImages > 0 && len(req.Images) > maxImages {
		return req, "", fmt.Errorf("%w: %d > %d", models.ErrBatchTooLarge, len(req.Images), maxImages)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = defaultSize
	}
	workflow, err := workflowParam(c, req.Workflow)
	if err != nil {
		return req, "", err
	}
	return req, workflow, nil
}
