package models

import (
	"errors"
)

var (
	ErrInvalidWorkflow = errors.New("invalid workflow")
	ErrEmptyBatch      = errors.New("batch contains no images")
	ErrBatchTooLarge   = errors.New("batch exceeds the configured image limit")

	ErrImageLoad = errors.New("image loading failed")
	ErrCancelled = errors.New("task cancelled by admin")
	ErrPipeline  = errors.New("translation pipeline failed")
	ErrNoResult  = errors.New("translation produced no result image")
	ErrTransform = errors.New("result transform failed")
)
