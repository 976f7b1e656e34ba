package services

import (
	"os"
	"path/filepath"
	"strings"

	"mtserver/internal/models"
	"mtserver/internal/pipeline"
)

// defaultStreamAttempts applies when neither the server nor the client set a
// retry count for a streamed job.
const defaultStreamAttempts = 2

// ServerPolicy holds the server-controlled pipeline settings. They always
// override whatever the client sent.
type ServerPolicy struct {
	UseGPU        bool
	UseGPULimited bool
	Verbose       bool
	ModelsTTL     int
	RetryAttempts *int // nil leaves the client value in place
	FontDir       string
}

// PrepareParams derives the pipeline parameters of one call from the
// workflow, the client's retry count and the server policy.
func PrepareParams(workflow models.Workflow, clientAttempts *int, fontPath string, policy ServerPolicy) pipeline.Params {
	var p pipeline.Params

	if clientAttempts != nil && *clientAttempts > 0 {
		p.Attempts = *clientAttempts
	}

	p.FontPath = resolveFontPath(fontPath, policy.FontDir)

	switch workflow {
	case models.WorkflowExportOriginal:
		// detection + OCR only, source text exported
		p.Template = true
		p.SaveText = true
	case models.WorkflowSaveJSON:
		// translate and export, skip rendering
		p.SaveText = true
		p.GenerateAndExport = true
	case models.WorkflowLoadText:
		p.LoadText = true
	case models.WorkflowUpscaleOnly:
		p.UpscaleOnly = true
	case models.WorkflowColorizeOnly:
		p.ColorizeOnly = true
	}

	p.UseGPU = policy.UseGPU
	p.UseGPULimited = policy.UseGPULimited
	p.Verbose = policy.Verbose
	p.ModelsTTL = policy.ModelsTTL

	if policy.RetryAttempts != nil {
		p.Attempts = *policy.RetryAttempts
	}

	return p
}

// prepareStreamParams is PrepareParams plus the streaming default for the
// retry count.
func prepareStreamParams(workflow models.Workflow, clientAttempts *int, fontPath string, policy ServerPolicy) pipeline.Params {
	p := PrepareParams(workflow, clientAttempts, fontPath, policy)
	if policy.RetryAttempts == nil && (p.Attempts == 0 || p.Attempts == -1) {
		p.Attempts = defaultStreamAttempts
	}
	return p
}

// resolveFontPath returns the absolute path of a font shipped in fontDir, or
// "" when the client value is empty, absolute, or not found.
func resolveFontPath(name, fontDir string) string {
	if name == "" || filepath.IsAbs(name) || fontDir == "" {
		return ""
	}

	full := filepath.Join(fontDir, filepath.Clean(name))
	if rel, err := filepath.Rel(fontDir, full); err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	if fi, err := os.Stat(full); err != nil || fi.IsDir() {
		return ""
	}

	return full
}
