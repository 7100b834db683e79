// Package router dispatches detections by class id to the component that
// turns them into results.
package router

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/extract"
	"github.com/MeKo-Tech/linecheck/internal/frame"
)

// NoClass disables the optional barcode class.
const NoClass = -1

// Extractor reads text from a frame region.
type Extractor interface {
	Extract(ctx context.Context, f *frame.Frame, box image.Rectangle) (extract.Extraction, error)
}

// Recoverer decodes barcodes from a frame region.
type Recoverer interface {
	Recover(ctx context.Context, f *frame.Frame, region image.Rectangle) ([]barcode.Readout, error)
}

// Routed is the outcome of routing one frame's detections. Results keep
// detection order.
type Routed struct {
	Results  []ExtractionResult
	Barcodes []barcode.Readout
	Failures []error
}

type handler func(ctx context.Context, f *frame.Frame, det detector.Detection, out *Routed)

// Router holds a dispatch table keyed by class id and no per-cycle state.
type Router struct {
	table map[int]handler
}

// Config selects which class ids map to which behaviour.
type Config struct {
	LabelClass   int // class classified by name (default: detector.ClassFlavor)
	FieldClass   int // class read by the extractor (default: detector.ClassDate)
	BarcodeClass int // class sent to barcode recovery, NoClass to disable
}

// DefaultConfig returns the production class mapping.
func DefaultConfig() Config {
	return Config{LabelClass: detector.ClassFlavor, FieldClass: detector.ClassDate, BarcodeClass: NoClass}
}

// New builds a router. extractor may be nil, in which case field detections
// yield a FieldResult with no text. recoverer is only used when a barcode
// class is configured.
func New(cfg Config, extractor Extractor, recoverer Recoverer) *Router {
	r := &Router{table: map[int]handler{
		cfg.LabelClass: routeLabel,
		cfg.FieldClass: fieldHandler(extractor),
	}}
	if cfg.BarcodeClass != NoClass && recoverer != nil {
		r.table[cfg.BarcodeClass] = barcodeHandler(recoverer)
	}
	return r
}

// Handles reports whether class id has a route.
func (r *Router) Handles(classID int) bool {
	_, ok := r.table[classID]
	return ok
}

// Route dispatches every detection. It never fails; component errors are
// collected in Failures and unknown classes are logged and dropped.
func (r *Router) Route(ctx context.Context, f *frame.Frame, dets []detector.Detection) Routed {
	out := Routed{Results: make([]ExtractionResult, 0, len(dets))}
	for _, det := range dets {
		h, ok := r.table[det.ClassID]
		if !ok {
			slog.Warn("Dropping detection with unrouted class", "class_id", det.ClassID, "class_name", det.ClassName)
			continue
		}
		h(ctx, f, det, &out)
	}
	return out
}

func routeLabel(_ context.Context, _ *frame.Frame, det detector.Detection, out *Routed) {
	out.Results = append(out.Results, LabelResult{Detection: det, Label: det.ClassName})
}

func fieldHandler(ex Extractor) handler {
	return func(ctx context.Context, f *frame.Frame, det detector.Detection, out *Routed) {
		res := FieldResult{Detection: det, SourceStrategy: extract.StrategyNone}
		if ex == nil {
			out.Results = append(out.Results, res)
			return
		}
		got, err := ex.Extract(ctx, f, det.Box.Rectangle())
		if err != nil {
			slog.Debug("Field extraction failed", "class_id", det.ClassID, "box", det.Box, "error", err)
			out.Failures = append(out.Failures, fmt.Errorf("class %d at %v: %w", det.ClassID, det.Box, err))
		}
		res.Text = got.Text
		res.Confidence = got.Confidence
		if got.Strategy != "" {
			res.SourceStrategy = got.Strategy
		}
		out.Results = append(out.Results, res)
	}
}

func barcodeHandler(rc Recoverer) handler {
	return func(ctx context.Context, f *frame.Frame, det detector.Detection, out *Routed) {
		readouts, err := rc.Recover(ctx, f, det.Box.Rectangle())
		if err != nil {
			out.Failures = append(out.Failures, fmt.Errorf("barcode class %d at %v: %w", det.ClassID, det.Box, err))
			return
		}
		if len(readouts) == 0 {
			out.Failures = append(out.Failures, fmt.Errorf("barcode class %d at %v: %w", det.ClassID, det.Box, barcode.ErrRecoveryExhausted))
			return
		}
		out.Barcodes = append(out.Barcodes, readouts...)
	}
}
