package models

import (
	"time"
)

// Task is a read-only snapshot of a registered job, used by the admin listing.
type Task struct {
	ID        string    `json:"id"`
	Workflow  Workflow  `json:"workflow,omitempty"`
	Cancelled bool      `json:"cancelled"`
	CreatedAt time.Time `json:"created_at"`
}

// TextRegion is one detected text block with its translation.
type TextRegion struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// ResultRecord is the caller-facing outcome of one translated image.
// Every field is always present; TextRegions is empty, never nil.
type ResultRecord struct {
	Success     bool         `json:"success"`
	Workflow    Workflow     `json:"workflow"`
	HasImage    bool         `json:"has_image"`
	TextRegions []TextRegion `json:"text_regions"`
}

// BatchItem pairs an input position with its result. A nil Result marks an
// image the pipeline reported as unavailable.
type BatchItem struct {
	Index  int           `json:"index"`
	Result *ResultRecord `json:"result"`
}
