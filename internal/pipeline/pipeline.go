// Package pipeline describes the detection/OCR/translation/render engine the
// server drives. The engine itself is external; this package only fixes the
// narrow interface and the result schema.
package pipeline

import (
	"context"
	"image"

	"mtserver/internal/models"
)

// CancelCheck is polled by the engine between its internal stages.
type CancelCheck func() bool

// Config is the client-supplied translation configuration. It is passed
// through to the engine untouched.
type Config map[string]any

// Params is the fully derived, server-controlled parameter set of one call.
type Params struct {
	// Workflow-controlled flags.
	Template          bool `json:"template"`
	SaveText          bool `json:"save_text"`
	GenerateAndExport bool `json:"generate_and_export"`
	LoadText          bool `json:"load_text"`
	UpscaleOnly       bool `json:"upscale_only"`
	ColorizeOnly      bool `json:"colorize_only"`

	// Server policy.
	UseGPU        bool `json:"use_gpu"`
	UseGPULimited bool `json:"use_gpu_limited"`
	Verbose       bool `json:"verbose"`
	ModelsTTL     int  `json:"models_ttl"`
	Attempts      int  `json:"attempts,omitempty"`

	FontPath string `json:"font_path,omitempty"`
}

// Result is what the engine produces for one image. Image is nil when no
// output image was rendered; TextRegions is empty rather than nil.
type Result struct {
	Success     bool
	Image       image.Image
	TextRegions []models.TextRegion
}

// HasImage reports whether the engine rendered an output image.
func (r *Result) HasImage() bool { return r != nil && r.Image != nil }

// Release drops the rendered image. Text regions are kept.
func (r *Result) Release() {
	if r == nil {
		return
	}
	r.Image = nil
}

// BatchInput is one image of a batch call with its configuration.
type BatchInput struct {
	Image  image.Image
	Config Config
}

// Pipeline is the black-box engine.
type Pipeline interface {
	Translate(ctx context.Context, img image.Image, cfg Config, params Params, cancel CancelCheck) (*Result, error)

	// TranslateBatch returns one entry per input, in input order. A nil entry
	// marks an image the engine could not produce a result for.
	TranslateBatch(ctx context.Context, items []BatchInput, batchSize int, params Params, cancel CancelCheck) ([]*Result, error)
}
