package letterhead

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 65, G: 105, B: 225, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchPNG(t *testing.T) {
	data := pngBytes(t, 300, 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	logo, err := NewFetcher(Config{}).Fetch(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", logo.ContentType)
	assert.Equal(t, 300, logo.Width)
	assert.Equal(t, 100, logo.Height)

	w, h := logo.Fit(150, 150)
	assert.Equal(t, 150, w)
	assert.Equal(t, 50, h)
}

func TestFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/page")
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = f.Fetch(context.Background(), "")
	require.Error(t, err)
}
