package pipeline

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"mtserver/internal/models"
)

// None is an engine that detects nothing: it hands back a copy of the input
// and zero text regions. It keeps the server usable without a model backend.
type None struct{}

func NewNone() *None { return &None{} }

func (n *None) Translate(ctx context.Context, img image.Image, cfg Config, params Params, cancel CancelCheck) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cancel != nil && cancel() {
		return nil, models.ErrCancelled
	}

	return &Result{
		Success:     true,
		Image:       imaging.Clone(img),
		TextRegions: []models.TextRegion{},
	}, nil
}

func (n *None) TranslateBatch(ctx context.Context, items []BatchInput, batchSize int, params Params, cancel CancelCheck) ([]*Result, error) {
	out := make([]*Result, len(items))
	for i, it := range items {
		res, err := n.Translate(ctx, it.Image, it.Config, params, cancel)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

var _ Pipeline = (*None)(nil)
