// Package apiclient is the HTTP client the CLI uses to talk to a running
// server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"mtserver/internal/framing"
	"mtserver/internal/models"
)

// MaxFrameBytes caps a single streamed frame; a rendered page is far smaller.
const MaxFrameBytes = 256 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL (e.g. http://127.0.0.1:8000).
// A nil httpClient means http.DefaultClient; streams may run for minutes, so
// it should not carry a short timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// StreamOptions tune a streamed translation.
type StreamOptions struct {
	Workflow models.Workflow
	Format   string
	Config   map[string]any
}

// StreamFile uploads the image at path and calls fn for every frame, in
// order, until the terminal frame.
func (c *Client) StreamFile(ctx context.Context, path string, opts StreamOptions, fn func(framing.Frame) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image '%s': %w", path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if opts.Config != nil {
		cfg, err := json.Marshal(opts.Config)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if err := mw.WriteField("config", string(cfg)); err != nil {
			return err
		}
	}
	if opts.Workflow != "" {
		if err := mw.WriteField("workflow", opts.Workflow.String()); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	endpoint := c.baseURL + "/api/v1/translate/with-form/image/stream"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit translation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return framing.NewReader(resp.Body, MaxFrameBytes).Each(fn)
}

// Tasks lists the tasks registered on the server.
func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Cancel requests cancellation of a task. It reports false when the server
// does not know the id.
func (c *Client) Cancel(ctx context.Context, taskID string) (bool, error) {
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(taskID)+"/cancel", nil, nil)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BatchOptions tune a queued batch.
type BatchOptions struct {
	Workflow  models.Workflow
	BatchSize int
	Config    map[string]any
}

// QueuedBatch identifies a batch accepted by the server's queue.
type QueuedBatch struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
	State string `json:"state"`
}

// BatchJob is the queue-side state of a batch and, once finished, its items.
type BatchJob struct {
	Job struct {
		ID       string `json:"id"`
		State    string `json:"state"`
		Retried  int    `json:"retried"`
		LastErr  string `json:"last_error,omitempty"`
		Finished bool   `json:"finished"`
	} `json:"job"`
	Result *struct {
		Items []models.BatchItem `json:"items"`
	} `json:"result,omitempty"`
}

// QueueBatch enqueues images (data URIs or URLs) for the worker process.
func (c *Client) QueueBatch(ctx context.Context, images []string, opts BatchOptions) (*QueuedBatch, error) {
	body := map[string]any{
		"images":     images,
		"workflow":   opts.Workflow.String(),
		"batch_size": opts.BatchSize,
	}
	if opts.Config != nil {
		body["config"] = opts.Config
	}

	var out QueuedBatch
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/translate/batch/queue", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchStatus fetches a queued batch.
func (c *Client) BatchStatus(ctx context.Context, id string) (*BatchJob, error) {
	var out BatchJob
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/translate/batch/queue/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FileDataURI reads an image file into a data URI for the JSON endpoints.
func FileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image '%s': %w", path, err)
	}
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".bmp":
		mime = "image/bmp"
	case ".tif", ".tiff":
		mime = "image/tiff"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
