package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/apiclient"
	"mtserver/internal/apihandlers"
	"mtserver/internal/framing"
	"mtserver/internal/gate"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
	"mtserver/internal/registry"
	"mtserver/internal/services"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	g := gate.New(1)
	orch, err := services.NewOrchestrator(services.OrchestratorDeps{
		Registry: registry.New(),
		Gate:     g,
		Pipeline: pipeline.NewNone(),
	})
	require.NoError(t, err)

	router := gin.New()
	(&apihandlers.APIHandler{Translator: orch, Gate: g, DefaultBatchSize: 4}).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func writeImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(7, 5, color.NRGBA{R: 10, A: 255}), imaging.PNG))
	path := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestClient_StreamFile(t *testing.T) {
	srv := startServer(t)
	c := apiclient.New(srv.URL, srv.Client())

	var frames []framing.Frame
	err := c.StreamFile(context.Background(), writeImage(t), apiclient.StreamOptions{
		Workflow: models.WorkflowNormal,
		Format:   "jpg",
		Config:   map[string]any{"cli": map[string]any{"attempts": 1}},
	}, func(f framing.Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(frames), 2)

	payload := frames[len(frames)-2]
	assert.Equal(t, framing.StatusPayload, payload.Status)
	img, err := imaging.Decode(bytes.NewReader(payload.Payload))
	require.NoError(t, err)
	assert.Equal(t, 7, img.Bounds().Dx())

	last, err := framing.ParseProgress(frames[len(frames)-1])
	require.NoError(t, err)
	assert.Equal(t, "complete", last.Stage)
}

func TestClient_StreamFile_RejectedUpfront(t *testing.T) {
	srv := startServer(t)
	c := apiclient.New(srv.URL, nil)

	err := c.StreamFile(context.Background(), writeImage(t), apiclient.StreamOptions{Format: "tiff"}, func(framing.Frame) error { return nil })
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "bad_request", apiErr.Code)

	err = c.StreamFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), apiclient.StreamOptions{}, nil)
	assert.Error(t, err)
}

func TestClient_TasksAndCancel(t *testing.T) {
	srv := startServer(t)
	c := apiclient.New(srv.URL+"/", nil)

	tasks, err := c.Tasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	ok, err := c.Cancel(context.Background(), "no-such-task")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_QueueBatchAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/translate/batch/queue", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "save_json", body["workflow"])
		assert.Len(t, body["images"], 1)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"job-7","queue":"translate","state":"pending"}`))
	})
	mux.HandleFunc("/api/v1/translate/batch/queue/job-7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job":{"id":"job-7","state":"completed","finished":true},"result":{"items":[{"index":0,"result":null}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	uri, err := apiclient.FileDataURI(writeImage(t))
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")

	c := apiclient.New(srv.URL, nil)
	queued, err := c.QueueBatch(context.Background(), []string{uri}, apiclient.BatchOptions{Workflow: models.WorkflowSaveJSON})
	require.NoError(t, err)
	assert.Equal(t, "job-7", queued.ID)

	job, err := c.BatchStatus(context.Background(), queued.ID)
	require.NoError(t, err)
	assert.True(t, job.Job.Finished)
	require.NotNil(t, job.Result)
	require.Len(t, job.Result.Items, 1)
	assert.Nil(t, job.Result.Items[0].Result)

	_, err = c.BatchStatus(context.Background(), "unknown")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
