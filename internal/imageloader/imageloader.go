// Package imageloader turns request inputs (raw bytes, data URIs or URLs)
// into decoded images.
package imageloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"mtserver/internal/models"
)

var dataURIPattern = regexp.MustCompile(`^data:image/.+;base64,`)

// Source is one image input: either raw bytes (multipart upload) or a string
// holding a data URI or an http(s) URL.
type Source struct {
	Bytes []byte
	Ref   string
}

// FromBytes wraps raw encoded image bytes.
func FromBytes(b []byte) Source { return Source{Bytes: b} }

// FromString wraps a data URI or URL.
func FromString(s string) Source { return Source{Ref: s} }

// Empty reports whether the source carries no input at all.
func (s Source) Empty() bool { return len(s.Bytes) == 0 && strings.TrimSpace(s.Ref) == "" }

// Loader defines the interface for decoding a request image
type Loader interface {
	Load(ctx context.Context, src Source) (image.Image, error)
}

// Options tune remote fetching.
type Options struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	Client       *http.Client
}

// New creates the default loader implementation
func New(opts Options) Loader {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &defaultLoader{opts: opts}
}

type defaultLoader struct {
	opts Options
}

// Load implements the Loader interface. Every failure wraps models.ErrImageLoad.
func (l *defaultLoader) Load(ctx context.Context, src Source) (image.Image, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageLoad, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", models.ErrImageLoad, err)
	}

	return img, nil
}

func (l *defaultLoader) read(ctx context.Context, src Source) ([]byte, error) {
	if src.Empty() {
		return nil, fmt.Errorf("empty image input")
	}
	if len(src.Bytes) > 0 {
		return src.Bytes, nil
	}

	ref := strings.TrimSpace(src.Ref)

	// --- Data URI ---
	if loc := dataURIPattern.FindStringIndex(ref); loc != nil {
		data, err := base64.StdEncoding.DecodeString(ref[loc[1]:])
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		return data, nil
	}

	// --- URL ---
	parsedURL, err := url.Parse(ref)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("input is neither a data URI nor an http(s) URL")
	}

	return l.fetch(ctx, parsedURL.String())
}

func (l *defaultLoader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL '%s': %w", rawURL, err)
	}

	resp, err := l.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL '%s': %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL '%s': status code %d %s", rawURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from URL '%s': %w", rawURL, err)
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return nil, fmt.Errorf("image at '%s' exceeds %d bytes", rawURL, l.opts.MaxBytes)
	}

	log.WithField("url", rawURL).Debugf("Fetched %d bytes", len(data))

	return data, nil
}

// Ensure defaultLoader satisfies the Loader interface.
var _ Loader = (*defaultLoader)(nil)
