//go:build !ocr_tesseract

package ocr

import (
	"context"
	"fmt"
	"image"
)

// Tesseract is unavailable in builds without the ocr_tesseract tag.
type Tesseract struct{}

// NewTesseract reports that tesseract support was not compiled in.
func NewTesseract(string) (*Tesseract, error) {
	return nil, fmt.Errorf("%w: built without ocr_tesseract tag", ErrUnavailable)
}

// Recognize implements Engine.
func (*Tesseract) Recognize(context.Context, image.Image, Options) ([]Fragment, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (*Tesseract) Close() error { return nil }
