package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/models"
)

func intPtr(v int) *int { return &v }

func TestPrepareParams_Workflows(t *testing.T) {
	p := PrepareParams(models.WorkflowNormal, nil, "", ServerPolicy{})
	assert.False(t, p.Template || p.SaveText || p.GenerateAndExport || p.LoadText || p.UpscaleOnly || p.ColorizeOnly)

	p = PrepareParams(models.WorkflowExportOriginal, nil, "", ServerPolicy{})
	assert.True(t, p.Template)
	assert.True(t, p.SaveText)

	p = PrepareParams(models.WorkflowSaveJSON, nil, "", ServerPolicy{})
	assert.True(t, p.SaveText)
	assert.True(t, p.GenerateAndExport)

	assert.True(t, PrepareParams(models.WorkflowLoadText, nil, "", ServerPolicy{}).LoadText)
	assert.True(t, PrepareParams(models.WorkflowUpscaleOnly, nil, "", ServerPolicy{}).UpscaleOnly)
	assert.True(t, PrepareParams(models.WorkflowColorizeOnly, nil, "", ServerPolicy{}).ColorizeOnly)
}

func TestPrepareParams_ServerPolicyWins(t *testing.T) {
	policy := ServerPolicy{
		UseGPU:        true,
		UseGPULimited: true,
		Verbose:       true,
		ModelsTTL:     300,
		RetryAttempts: intPtr(-1),
	}

	p := PrepareParams(models.WorkflowNormal, intPtr(7), "", policy)
	assert.True(t, p.UseGPU)
	assert.True(t, p.UseGPULimited)
	assert.True(t, p.Verbose)
	assert.Equal(t, 300, p.ModelsTTL)
	assert.Equal(t, -1, p.Attempts, "server retry policy overrides the client")
}

func TestPrepareParams_ClientAttempts(t *testing.T) {
	assert.Equal(t, 3, PrepareParams(models.WorkflowNormal, intPtr(3), "", ServerPolicy{}).Attempts)
	assert.Equal(t, 0, PrepareParams(models.WorkflowNormal, intPtr(0), "", ServerPolicy{}).Attempts)
	assert.Equal(t, 0, PrepareParams(models.WorkflowNormal, intPtr(-1), "", ServerPolicy{}).Attempts)
}

func TestPrepareStreamParams_DefaultAttempts(t *testing.T) {
	assert.Equal(t, defaultStreamAttempts, prepareStreamParams(models.WorkflowNormal, nil, "", ServerPolicy{}).Attempts)
	assert.Equal(t, 4, prepareStreamParams(models.WorkflowNormal, intPtr(4), "", ServerPolicy{}).Attempts)
	assert.Equal(t, -1, prepareStreamParams(models.WorkflowNormal, intPtr(4), "", ServerPolicy{RetryAttempts: intPtr(-1)}).Attempts)
}

func TestResolveFontPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comic.ttf"), []byte("font"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	assert.Equal(t, filepath.Join(dir, "comic.ttf"), resolveFontPath("comic.ttf", dir))
	assert.Empty(t, resolveFontPath("", dir))
	assert.Empty(t, resolveFontPath("missing.ttf", dir))
	assert.Empty(t, resolveFontPath("sub", dir), "directories are not fonts")
	assert.Empty(t, resolveFontPath("../etc/passwd", dir))
	assert.Empty(t, resolveFontPath("/etc/passwd", dir))
	assert.Empty(t, resolveFontPath("comic.ttf", ""))
}
