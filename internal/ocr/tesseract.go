//go:build ocr_tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs recognition through a local libtesseract via gosseract.
// The client is not safe for concurrent use, so calls are serialised.
type Tesseract struct {
	mu       sync.Mutex
	client   *gosseract.Client
	language string
}

// NewTesseract creates a client for the given language ("eng" when empty).
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	return &Tesseract{client: client, language: language}, nil
}

// Recognize implements Engine.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	mode := gosseract.PSM_AUTO
	if opts.RecognitionOnly {
		mode = gosseract.PSM_SINGLE_LINE
	}
	if err := t.client.SetPageSegMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	frags := make([]Fragment, 0, len(boxes))
	for _, b := range boxes {
		frags = append(frags, Fragment{Text: b.Word, Confidence: b.Confidence / 100, Box: b.Box})
	}
	slog.Debug("Tesseract recognition", "fragments", len(frags), "psm", mode)
	return frags, nil
}

// Close releases the tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
