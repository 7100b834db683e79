// Package extract crops detected text fields out of a frame and reads them
// with an OCR engine.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/imgproc"
	"github.com/MeKo-Tech/linecheck/internal/ocr"
)

// ErrExtractionFailure means no text could be obtained for a region. It is
// never fatal to a cycle.
var ErrExtractionFailure = errors.New("extraction failure")

// DefaultMargin is the padding added around a detection box before cropping.
const DefaultMargin = 5

// StrategyNone is reported when no attempt produced text.
const StrategyNone = "none"

// DefaultAttempts are the preprocessing steps tried in order.
var DefaultAttempts = []string{imgproc.StrategyGray, imgproc.StrategyUpscale2x}

// Extraction is the outcome for one region. Text is nil when nothing was read.
type Extraction struct {
	Text       *string
	Strategy   string
	Confidence float64
	Region     image.Rectangle
}

// Adapter runs an OCR engine over cropped regions.
type Adapter struct {
	engine   ocr.Engine
	margin   int
	attempts []imgproc.Strategy
	opts     ocr.Options
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMargin sets the crop margin in pixels.
func WithMargin(m int) Option {
	return func(a *Adapter) { a.margin = max(0, m) }
}

// WithAttempts replaces the preprocessing attempts.
func WithAttempts(s []imgproc.Strategy) Option {
	return func(a *Adapter) { a.attempts = append([]imgproc.Strategy(nil), s...) }
}

// NewAdapter builds an adapter that always requests recognition-only mode.
func NewAdapter(engine ocr.Engine, opts ...Option) *Adapter {
	attempts, _ := imgproc.Resolve(DefaultAttempts)
	a := &Adapter{
		engine:   engine,
		margin:   DefaultMargin,
		attempts: attempts,
		opts:     ocr.Options{RecognitionOnly: true},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Extract reads the text inside box. The first attempt yielding non-empty
// text wins. When every attempt fails with an error the returned error wraps
// ErrExtractionFailure; an engine that simply finds nothing yields a nil Text
// and a nil error.
func (a *Adapter) Extract(ctx context.Context, f *frame.Frame, box image.Rectangle) (Extraction, error) {
	ex := Extraction{Strategy: StrategyNone}
	if a.engine == nil {
		return ex, fmt.Errorf("%w: no OCR engine configured", ErrExtractionFailure)
	}
	if err := f.Validate(); err != nil {
		return ex, fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}

	ex.Region = box.Inset(-a.margin).Intersect(f.Bounds())
	gray := f.Gray(ex.Region)
	if gray == nil {
		return ex, fmt.Errorf("%w: empty crop for %v", ErrExtractionFailure, box)
	}

	var lastErr error
	failed := 0
	for _, s := range a.attempts {
		if err := ctx.Err(); err != nil {
			return ex, fmt.Errorf("%w: %w", ErrExtractionFailure, err)
		}
		frags, err := a.recognize(ctx, s, gray)
		if err != nil {
			failed++
			lastErr = err
			slog.Debug("Extraction attempt failed", "attempt", s.Name, "error", err)
			continue
		}
		if text := ocr.Join(frags); text != "" {
			ex.Text = &text
			ex.Strategy = s.Name
			ex.Confidence = ocr.MeanConfidence(frags)
			return ex, nil
		}
	}
	if failed > 0 && failed == len(a.attempts) {
		return ex, fmt.Errorf("%w: %w", ErrExtractionFailure, lastErr)
	}
	return ex, nil
}

// recognize turns engine panics into errors.
func (a *Adapter) recognize(ctx context.Context, s imgproc.Strategy, gray *image.Gray) (frags []ocr.Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ocr engine panic: %v", r)
		}
	}()
	return a.engine.Recognize(ctx, s.Apply(gray), a.opts)
}
