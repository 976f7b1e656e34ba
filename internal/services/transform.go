package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/disintegration/imaging"

	"mtserver/internal/models"
	"mtserver/internal/pipeline"
)

// Transform turns a successful pipeline result into the payload of the
// status-0 frame.
type Transform func(res *pipeline.Result, rec models.ResultRecord) ([]byte, error)

// newRecord builds the caller-facing record of one pipeline result.
func newRecord(workflow models.Workflow, res *pipeline.Result) models.ResultRecord {
	rec := models.ResultRecord{
		Workflow:    workflow,
		TextRegions: []models.TextRegion{},
	}
	if res == nil {
		return rec
	}

	rec.Success = res.Success
	rec.HasImage = res.HasImage()
	rec.TextRegions = append(rec.TextRegions, res.TextRegions...)

	return rec
}

// ImageTransform encodes the rendered image. format is "png" (default) or
// "jpeg"/"jpg".
func ImageTransform(format string) (Transform, error) {
	var f imaging.Format

	switch format {
	case "", "png":
		f = imaging.PNG
	case "jpg", "jpeg":
		f = imaging.JPEG
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	return func(res *pipeline.Result, _ models.ResultRecord) ([]byte, error) {
		if !res.HasImage() {
			return nil, fmt.Errorf("result carries no image")
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, res.Image, f, imaging.JPEGQuality(90)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", format, err)
		}
		return buf.Bytes(), nil
	}, nil
}

// JSONTransform serializes the result record.
func JSONTransform(res *pipeline.Result, rec models.ResultRecord) ([]byte, error) {
	return json.Marshal(rec)
}
