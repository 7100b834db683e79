// Package ocr defines the text-recognition boundary used by the extraction
// adapter and the engines that implement it.
package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrUnavailable is returned by engines whose backend was not compiled in or
// could not be reached.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Options tunes a single recognition call.
type Options struct {
	// RecognitionOnly asks the engine to skip text localisation and treat the
	// whole image as one line.
	RecognitionOnly bool
}

// Fragment is one piece of recognised text. Box is relative to the image
// passed to Recognize.
type Fragment struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Engine recognises text in a grayscale crop.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, opts Options) ([]Fragment, error)
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(ctx context.Context, img image.Image, opts Options) ([]Fragment, error)

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, opts Options) ([]Fragment, error) {
	return f(ctx, img, opts)
}

// Join concatenates fragment texts in the order returned, with no
// separator, and cleans the result. Whitespace inside a fragment is kept
// and collapsed by Clean.
func Join(frags []Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.Text)
	}
	return Clean(b.String(), DefaultCleanOptions())
}

// MeanConfidence averages fragment confidences; 0 when empty.
func MeanConfidence(frags []Fragment) float64 {
	if len(frags) == 0 {
		return 0
	}
	var s float64
	for _, f := range frags {
		s += f.Confidence
	}
	return s / float64(len(frags))
}
