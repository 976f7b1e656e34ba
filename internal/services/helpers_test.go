package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mtserver/internal/framing"
	"mtserver/internal/gate"
	"mtserver/internal/imageloader"
	"mtserver/internal/models"
	"mtserver/internal/pipeline"
	"mtserver/internal/registry"
)

// mockPipeline is a testify mock of pipeline.Pipeline.
type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Translate(ctx context.Context, img image.Image, cfg pipeline.Config, params pipeline.Params, cancel pipeline.CancelCheck) (*pipeline.Result, error) {
	args := m.Called(ctx, img, cfg, params, cancel)
	res, _ := args.Get(0).(*pipeline.Result)
	return res, args.Error(1)
}

func (m *mockPipeline) TranslateBatch(ctx context.Context, items []pipeline.BatchInput, batchSize int, params pipeline.Params, cancel pipeline.CancelCheck) ([]*pipeline.Result, error) {
	args := m.Called(ctx, items, batchSize, params, cancel)
	res, _ := args.Get(0).([]*pipeline.Result)
	return res, args.Error(1)
}

// loaderFunc adapts a function to imageloader.Loader.
type loaderFunc func(ctx context.Context, src imageloader.Source) (image.Image, error)

func (f loaderFunc) Load(ctx context.Context, src imageloader.Source) (image.Image, error) {
	return f(ctx, src)
}

func testImage() image.Image {
	return imaging.New(8, 8, color.NRGBA{R: 255, A: 255})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(), imaging.PNG))
	return buf.Bytes()
}

func renderedResult() *pipeline.Result {
	return &pipeline.Result{
		Success: true,
		Image:   testImage(),
		TextRegions: []models.TextRegion{
			{Text: "こんにちは", Translation: "hello"},
			{Text: "さようなら", Translation: "goodbye"},
		},
	}
}

type testEnv struct {
	reg      *registry.Registry
	gate     *gate.Gate
	pipeline *mockPipeline
	orch     *Orchestrator
}

func newTestEnv(t *testing.T, limit int64, loader imageloader.Loader) *testEnv {
	t.Helper()
	env := &testEnv{
		reg:      registry.New(),
		gate:     gate.New(limit),
		pipeline: new(mockPipeline),
	}
	orch, err := NewOrchestrator(OrchestratorDeps{
		Registry: env.reg,
		Gate:     env.gate,
		Pipeline: env.pipeline,
		Loader:   loader,
	})
	require.NoError(t, err)
	env.orch = orch
	return env
}

// decodeStages returns the stage of every progress frame, "<payload>" for the
// payload frame and "error:<stage>" for the error frame.
func decodeStages(t *testing.T, raw []byte) []string {
	t.Helper()
	var stages []string
	err := framing.NewReader(bytes.NewReader(raw), 0).Each(func(f framing.Frame) error {
		switch f.Status {
		case framing.StatusProgress:
			p, err := framing.ParseProgress(f)
			require.NoError(t, err)
			stages = append(stages, p.Stage)
		case framing.StatusPayload:
			stages = append(stages, "<payload>")
		case framing.StatusError:
			e, err := framing.ParseFailure(f)
			require.NoError(t, err)
			stages = append(stages, "error:"+e.Stage)
		}
		return nil
	})
	require.NoError(t, err)
	return stages
}
