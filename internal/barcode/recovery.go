package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/imgproc"
)

// ErrRecoveryExhausted describes a search in which no strategy decoded a
// symbol. Recover itself reports this as an empty result, not an error.
var ErrRecoveryExhausted = errors.New("barcode recovery exhausted")

// ErrEmptyRegion is returned when the search region does not overlap the frame.
var ErrEmptyRegion = errors.New("barcode search region is empty")

// Readout is one symbol recovered from a frame.
type Readout struct {
	Content   string    `json:"content" yaml:"content"`
	Format    string    `json:"symbol_format" yaml:"symbol_format"`
	Strategy  string    `json:"strategy_name" yaml:"strategy_name"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Engine tries each strategy in order against a search region and stops at
// the first one that yields any symbol.
type Engine struct {
	backend    Backend
	strategies []imgproc.Strategy
	opts       Options
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategies replaces the strategy table.
func WithStrategies(s []imgproc.Strategy) Option {
	return func(e *Engine) { e.strategies = append([]imgproc.Strategy(nil), s...) }
}

// WithOptions sets decode options passed to the backend.
func WithOptions(o Options) Option {
	return func(e *Engine) { e.opts = o }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over backend using the full strategy catalogue
// unless WithStrategies is given.
func NewEngine(backend Backend, opts ...Option) *Engine {
	if backend == nil {
		backend = NoBackend{}
	}
	e := &Engine{
		backend:    backend,
		strategies: imgproc.DefaultStrategies(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Strategies returns the strategy names in search order.
func (e *Engine) Strategies() []string {
	out := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		out[i] = s.Name
	}
	return out
}

// Recover searches region of f (the whole frame when region is empty). Every
// symbol found by the winning strategy is returned. When all strategies fail
// the result is empty with a nil error.
func (e *Engine) Recover(ctx context.Context, f *frame.Frame, region image.Rectangle) ([]Readout, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if region.Empty() {
		region = f.Bounds()
	}
	gray := f.Gray(region)
	if gray == nil {
		return nil, fmt.Errorf("%w: %v outside %v", ErrEmptyRegion, region, f.Bounds())
	}

	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := e.backend.Decode(ctx, s.Apply(gray), e.opts)
		if err != nil {
			if errors.Is(err, ErrNoBackend) || ctx.Err() != nil {
				return nil, err
			}
			slog.Debug("Barcode decode failed", "strategy", s.Name, "error", err)
			continue
		}
		if len(results) == 0 {
			continue
		}

		ts := e.now()
		out := make([]Readout, 0, len(results))
		for _, r := range results {
			out = append(out, Readout{Content: r.Value, Format: r.Format.String(), Strategy: s.Name, Timestamp: ts})
		}
		slog.Debug("Barcode recovered", "strategy", s.Name, "symbols", len(out))
		return out, nil
	}

	slog.Debug("Barcode recovery exhausted", "strategies", len(e.strategies), "region", region)
	return []Readout{}, nil
}
