package framing

import (
	"encoding/json"
	"fmt"
)

// Progress is the JSON body of a status-1 frame.
type Progress struct {
	Stage   string `json:"stage"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Failure is the JSON body of a status-2 frame.
type Failure struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

// ParseProgress decodes the payload of a progress frame.
func ParseProgress(f Frame) (Progress, error) {
	var p Progress
	if f.Status != StatusProgress {
		return p, fmt.Errorf("framing: frame status %d is not progress", f.Status)
	}
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return p, fmt.Errorf("framing: decode progress: %w", err)
	}
	return p, nil
}

// ParseFailure decodes the payload of an error frame.
func ParseFailure(f Frame) (Failure, error) {
	var e Failure
	if f.Status != StatusError {
		return e, fmt.Errorf("framing: frame status %d is not an error", f.Status)
	}
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		return e, fmt.Errorf("framing: decode failure: %w", err)
	}
	return e, nil
}
