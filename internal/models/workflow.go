package models

import (
	"fmt"
	"strings"
)

// Workflow selects which pipeline parameters are forced for a request.
type Workflow string

const (
	WorkflowNormal         Workflow = "normal"
	WorkflowExportOriginal Workflow = "export_original"
	WorkflowSaveJSON       Workflow = "save_json"
	WorkflowLoadText       Workflow = "load_text"
	WorkflowUpscaleOnly    Workflow = "upscale_only"
	WorkflowColorizeOnly   Workflow = "colorize_only"
)

var workflows = []Workflow{
	WorkflowNormal,
	WorkflowExportOriginal,
	WorkflowSaveJSON,
	WorkflowLoadText,
	WorkflowUpscaleOnly,
	WorkflowColorizeOnly,
}

// Workflows returns every known workflow in a stable order.
func Workflows() []Workflow {
	out := make([]Workflow, len(workflows))
	copy(out, workflows)
	return out
}

// ParseWorkflow maps a request value to a Workflow. Empty input means normal.
func ParseWorkflow(s string) (Workflow, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return WorkflowNormal, nil
	}
	for _, w := range workflows {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWorkflow, s)
}

func (w Workflow) String() string { return string(w) }
