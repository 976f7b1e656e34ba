package clix

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"mtserver/internal/models"
)

// ParseWorkflow reads the --workflow flag.
func ParseWorkflow(flags *pflag.FlagSet) (models.Workflow, error) {
	raw, _ := flags.GetString("workflow")
	return models.ParseWorkflow(raw)
}

// ParseConfigFile reads the optional --config-json flag: a path to a JSON
// file with the translation config sent to the server.
func ParseConfigFile(flags *pflag.FlagSet) (map[string]any, error) {
	path, _ := flags.GetString("config-json")
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translation config '%s': %w", path, err)
	}
	cfg := map[string]any{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse translation config '%s': %w", path, err)
	}
	return cfg, nil
}
