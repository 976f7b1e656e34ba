package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/models"
)

type remoteRequest struct {
	Images    []string `json:"images"`
	Configs   []Config `json:"configs"`
	Params    Params   `json:"params"`
	BatchSize int      `json:"batch_size"`
}

type remoteRegion struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

type remoteResult struct {
	Success     bool           `json:"success"`
	Image       string         `json:"image"`
	TextRegions []remoteRegion `json:"text_regions"`
}

type remoteResponse struct {
	Results []*remoteResult `json:"results"`
	Error   string          `json:"error"`
}

// Remote talks to an inference service over HTTP. Images travel as base64
// PNG. Chunks of batchSize images are sent one request at a time so the
// cancel check is polled between chunks.
type Remote struct {
	endpoint string
	client   *http.Client
}

func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Translate(ctx context.Context, img image.Image, cfg Config, params Params, cancel CancelCheck) (*Result, error) {
	results, err := r.TranslateBatch(ctx, []BatchInput{{Image: img, Config: cfg}}, 1, params, cancel)
	if err != nil {
		return nil, err
	}
	if results[0] == nil {
		return &Result{TextRegions: []models.TextRegion{}}, nil
	}
	return results[0], nil
}

func (r *Remote) TranslateBatch(ctx context.Context, items []BatchInput, batchSize int, params Params, cancel CancelCheck) ([]*Result, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([]*Result, 0, len(items))

	for start := 0; start < len(items); start += batchSize {
		if cancel != nil && cancel() {
			return nil, models.ErrCancelled
		}

		end := min(start+batchSize, len(items))

		chunk, err := r.call(ctx, items[start:end], batchSize, params)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}

	return out, nil
}

func (r *Remote) call(ctx context.Context, items []BatchInput, batchSize int, params Params) ([]*Result, error) {
	req := remoteRequest{
		Images:    make([]string, len(items)),
		Configs:   make([]Config, len(items)),
		Params:    params,
		BatchSize: batchSize,
	}

	for i, it := range items {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, it.Image, imaging.PNG); err != nil {
			return nil, fmt.Errorf("encode image %d: %w", i, err)
		}
		req.Images[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
		req.Configs[i] = it.Config
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		hint, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(hint)))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("inference service: %s", decoded.Error)
	}
	if len(decoded.Results) != len(items) {
		return nil, fmt.Errorf("inference service returned %d results for %d images", len(decoded.Results), len(items))
	}

	out := make([]*Result, len(items))
	for i, rr := range decoded.Results {
		if rr == nil {
			continue
		}
		res, err := rr.toResult()
		if err != nil {
			log.Warnf("Discarding result %d from inference service: %v", i, err)
			continue
		}
		out[i] = res
	}

	return out, nil
}

func (rr *remoteResult) toResult() (*Result, error) {
	res := &Result{
		Success:     rr.Success,
		TextRegions: make([]models.TextRegion, 0, len(rr.TextRegions)),
	}

	for _, reg := range rr.TextRegions {
		res.TextRegions = append(res.TextRegions, models.TextRegion{Text: reg.Text, Translation: reg.Translation})
	}

	if rr.Image != "" {
		data, err := base64.StdEncoding.DecodeString(rr.Image)
		if err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		res.Image = img
	}

	return res, nil
}

var _ Pipeline = (*Remote)(nil)
