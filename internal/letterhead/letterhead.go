// Package letterhead fetches the institution logo printed on exported
// documents.
package letterhead

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxLogoBytes bounds the size of a downloaded logo.
const MaxLogoBytes = 4 << 20

var ErrUnsupportedImage = errors.New("unsupported logo image")

// Logo is a decoded letterhead image.
type Logo struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

type Config struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewFetcher(cfg Config) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Fetcher{client: cfg.Client, timeout: cfg.Timeout, log: cfg.Logger}
}

// Fetch downloads and decodes the logo at url. Callers treat every error as
// non-fatal and export without the image.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Logo, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("empty logo url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("logo request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch logo: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxLogoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if len(data) > MaxLogoBytes {
		return nil, fmt.Errorf("logo larger than %d bytes", MaxLogoBytes)
	}
	logo, err := Decode(data)
	if err != nil {
		return nil, err
	}
	f.log.Debug("letterhead logo fetched",
		zap.String("url", url),
		zap.String("content_type", logo.ContentType),
		zap.Int("width", logo.Width),
		zap.Int("height", logo.Height))
	return logo, nil
}

// Decode inspects raw image bytes. Only png and jpeg are accepted since
// both document formats embed them natively.
func Decode(data []byte) (*Logo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	logo := &Logo{Data: data, Width: cfg.Width, Height: cfg.Height}
	switch format {
	case "png":
		logo.ContentType, logo.Ext = "image/png", "png"
	case "jpeg":
		logo.ContentType, logo.Ext = "image/jpeg", "jpeg"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	return logo, nil
}

// Fit scales the logo to at most maxW x maxH pixels keeping the ratio.
func (l *Logo) Fit(maxW, maxH int) (int, int) {
	w, h := l.Width, l.Height
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
