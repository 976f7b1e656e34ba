package imageloader_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtserver/internal/imageloader"
	"mtserver/internal/models"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{B: 255, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func TestLoad_Bytes(t *testing.T) {
	l := imageloader.New(imageloader.Options{})
	img, err := l.Load(context.Background(), imageloader.FromBytes(encodePNG(t, 4, 3)))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
}

func TestLoad_DataURI(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, 2, 2))

	l := imageloader.New(imageloader.Options{})
	img, err := l.Load(context.Background(), imageloader.FromString(uri))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestLoad_URL(t *testing.T) {
	data := encodePNG(t, 5, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := imageloader.New(imageloader.Options{Client: srv.Client()})

	img, err := l.Load(context.Background(), imageloader.FromString(srv.URL+"/page.png"))
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	_, err = l.Load(context.Background(), imageloader.FromString(srv.URL+"/missing.png"))
	assert.ErrorIs(t, err, models.ErrImageLoad)

	small := imageloader.New(imageloader.Options{Client: srv.Client(), MaxBytes: 10})
	_, err = small.Load(context.Background(), imageloader.FromString(srv.URL+"/page.png"))
	assert.ErrorIs(t, err, models.ErrImageLoad)
}

func TestLoad_InvalidInputs(t *testing.T) {
	l := imageloader.New(imageloader.Options{})

	for name, src := range map[string]imageloader.Source{
		"empty":          {},
		"whitespace":     imageloader.FromString("   "),
		"bad base64":     imageloader.FromString("data:image/png;base64,!!!"),
		"not a uri":      imageloader.FromString("just some text"),
		"ftp url":        imageloader.FromString("ftp://example.com/a.png"),
		"not an image":   imageloader.FromBytes([]byte("hello")),
		"non-image data": imageloader.FromString("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))),
	} {
		src := src
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(context.Background(), src)
			assert.ErrorIs(t, err, models.ErrImageLoad)
		})
	}
}

func TestSource_Empty(t *testing.T) {
	assert.True(t, imageloader.Source{}.Empty())
	assert.True(t, imageloader.FromString(" ").Empty())
	assert.False(t, imageloader.FromBytes([]byte{1}).Empty())
	assert.False(t, imageloader.FromString("http://x").Empty())
}
