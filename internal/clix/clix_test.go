package clix_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/clix"
	"mtserver/internal/framing"
	"mtserver/internal/models"
)

func decodeOne(t *testing.T, write func(w *framing.Writer)) framing.Frame {
	t.Helper()
	var buf bytes.Buffer
	write(framing.NewWriter(&buf))
	f, err := framing.Decode(&buf)
	require.NoError(t, err)
	return f
}

func TestRenderFrame(t *testing.T) {
	var out bytes.Buffer

	clix.RenderFrame(&out, decodeOne(t, func(w *framing.Writer) { w.Progress("task_id", "", "abc-123") }))
	clix.RenderFrame(&out, decodeOne(t, func(w *framing.Writer) { w.Progress("translating", "translating", "") }))
	clix.RenderFrame(&out, framing.Frame{Status: framing.StatusPayload, Payload: []byte("12345")})
	clix.RenderFrame(&out, decodeOne(t, func(w *framing.Writer) { w.Error("no_result", "nothing rendered") }))

	s := out.String()
	assert.Contains(t, s, "abc-123")
	assert.Contains(t, s, "[translating]")
	assert.Contains(t, s, "received 5 bytes")
	assert.Contains(t, s, "[no_result]")
	assert.Contains(t, s, "nothing rendered")
}

func TestRenderTasks(t *testing.T) {
	var out bytes.Buffer
	clix.RenderTasks(&out, []models.Task{
		{ID: "t-1", Workflow: models.WorkflowNormal, CreatedAt: time.Now().Add(-time.Minute)},
		{ID: "t-2", Workflow: models.WorkflowColorizeOnly, Cancelled: true, CreatedAt: time.Now()},
	})
	s := out.String()
	assert.Contains(t, s, "t-1")
	assert.Contains(t, s, "colorize_only")
}

func TestParseFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("workflow", "", "")
	flags.String("config-json", "", "")

	cfgPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"translator":{"target_lang":"ENG"}}`), 0o644))
	require.NoError(t, flags.Parse([]string{"--workflow", "save_json", "--config-json", cfgPath}))

	wf, err := clix.ParseWorkflow(flags)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSaveJSON, wf)

	cfg, err := clix.ParseConfigFile(flags)
	require.NoError(t, err)
	assert.Contains(t, cfg, "translator")

	require.NoError(t, flags.Set("workflow", "nope"))
	_, err = clix.ParseWorkflow(flags)
	assert.ErrorIs(t, err, models.ErrInvalidWorkflow)
}
