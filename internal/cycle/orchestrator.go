// Package cycle runs one inspection per trigger: capture a frame, detect,
// route detections to their extractors, recover the printed barcode, verify
// it and emit exactly one Result to every sink.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/MeKo-Tech/linecheck/internal/capture"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/extract"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/router"
	"github.com/MeKo-Tech/linecheck/internal/verify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrBusy is returned by Trigger while another cycle is in flight.
var ErrBusy = errors.New("cycle in progress")

var errNoFrame = errors.New("no frame supplied and no frame source configured")

// Detector finds labelled boxes in a frame.
type Detector interface {
	Detect(ctx context.Context, f *frame.Frame) ([]detector.Detection, error)
	Simulated() bool
}

// Router turns detections into extraction results.
type Router interface {
	Route(ctx context.Context, f *frame.Frame, dets []detector.Detection) router.Routed
}

// Config bounds a cycle.
type Config struct {
	Timeout       time.Duration   // wall-clock limit from trigger to emission (default: 5s)
	EmitTimeout   time.Duration   // limit for delivering to all sinks (default: 5s)
	BarcodeRegion image.Rectangle // barcode search area; empty means the whole frame
}

// DefaultConfig returns the production cycle bounds.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, EmitTimeout: 5 * time.Second}
}

// Request starts a cycle. When Frame is nil the orchestrator's source is
// asked for one. Serial is the expected product serial; when empty and a
// codec is configured a fresh one is issued.
type Request struct {
	Frame   *frame.Frame
	Serial  string
	Trigger string
}

// Orchestrator serializes cycles. It refuses overlapping triggers rather than
// queueing them.
type Orchestrator struct {
	cfg       Config
	source    capture.Source
	detector  Detector
	router    Router
	recoverer router.Recoverer
	codec     verify.Codec
	sinks     []Sink
	onState   func(State)

	busy  atomic.Bool
	state atomic.Int32
	last  atomic.Pointer[Result]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSource sets the frame source used when a request carries no frame.
func WithSource(s capture.Source) Option {
	return func(o *Orchestrator) { o.source = s }
}

// WithRecoverer enables the barcode stage.
func WithRecoverer(r router.Recoverer) Option {
	return func(o *Orchestrator) { o.recoverer = r }
}

// WithCodec enables serial verification of recovered barcodes.
func WithCodec(c verify.Codec) Option {
	return func(o *Orchestrator) { o.codec = c }
}

// WithSinks appends result sinks.
func WithSinks(s ...Sink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, s...) }
}

// WithStateHook registers a callback invoked on every state change.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// New builds an orchestrator. The detector and router are required.
func New(cfg Config, det Detector, rt Router, opts ...Option) (*Orchestrator, error) {
	if det == nil {
		return nil, errors.New("detector cannot be nil")
	}
	if rt == nil {
		return nil, errors.New("router cannot be nil")
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.EmitTimeout <= 0 {
		cfg.EmitTimeout = def.EmitTimeout
	}
	o := &Orchestrator{cfg: cfg, detector: det, router: rt}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Last returns the most recently emitted result, or nil.
func (o *Orchestrator) Last() *Result { return o.last.Load() }

// Config returns the cycle bounds in effect.
func (o *Orchestrator) Config() Config { return o.cfg }

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	stateGauge.Set(float64(s))
	if o.onState != nil {
		o.onState(s)
	}
}

// Trigger runs one cycle to completion. It returns ErrBusy without side
// effects when a cycle is already running; otherwise the returned Result is
// always non-nil and has been handed to every sink.
func (o *Orchestrator) Trigger(ctx context.Context, req Request) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		busyRejectionsTotal.Inc()
		slog.Warn("Trigger refused, cycle in progress", "trigger", req.Trigger)
		return nil, ErrBusy
	}
	defer o.busy.Store(false)
	return o.run(ctx, req), nil
}

// Run processes triggers one at a time until ctx is done or triggers is
// closed.
func (o *Orchestrator) Run(ctx context.Context, triggers <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-triggers:
			if !ok {
				return nil
			}
			if _, err := o.Trigger(ctx, req); err != nil {
				slog.Debug("Trigger not processed", "error", err)
			}
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := newResult(uuid.New(), start.UTC())
	res.Trigger = req.Trigger
	res.Simulated = o.detector.Simulated()

	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	o.process(cctx, req, res)
	cancel()

	res.ElapsedMs = float64(time.Since(start).Nanoseconds()) / 1e6
	o.setState(StateEmitted)
	o.emit(ctx, res)
	o.last.Store(res)

	outcome := OutcomeClean
	if res.Degraded() {
		outcome = OutcomeDegraded
	}
	cyclesTotal.WithLabelValues(outcome).Inc()
	cycleDuration.Observe(time.Since(start).Seconds())
	o.setState(StateIdle)
	return res
}

func (o *Orchestrator) process(ctx context.Context, req Request, res *Result) {
	log := slog.With("cycle_id", res.ID.String())

	if o.codec != nil {
		res.Serial = req.Serial
		if res.Serial == "" {
			res.Serial = verify.NewSerial()
		}
	}

	f, err := runStage(ctx, StageCapture, func(ctx context.Context) (*frame.Frame, error) {
		return o.capture(ctx, req, res.Serial)
	})
	if err == nil {
		err = f.Validate()
	}
	if err != nil {
		o.fail(res, StageCapture, err, FailureInvalidFrame)
		return
	}
	res.Width, res.Height = f.Width(), f.Height()
	o.setState(StateCaptured)
	log.Debug("Frame captured", "width", res.Width, "height", res.Height)

	dets, err := runStage(ctx, StageDetect, func(ctx context.Context) ([]detector.Detection, error) {
		return o.detector.Detect(ctx, f)
	})
	if err != nil {
		if o.fail(res, StageDetect, err, FailureInferenceUnavailable) == FailureTimeout {
			return
		}
	} else {
		res.Detections = dets
	}
	o.setState(StateDetected)
	log.Debug("Detection done", "detections", len(res.Detections))

	if len(res.Detections) > 0 {
		routed, err := runStage(ctx, StageExtract, func(ctx context.Context) (router.Routed, error) {
			return o.router.Route(ctx, f, res.Detections), nil
		})
		if err != nil {
			if o.fail(res, StageExtract, err, FailureExtraction) == FailureTimeout {
				return
			}
		}
		res.Results = append(res.Results, routed.Results...)
		res.Barcodes = append(res.Barcodes, routed.Barcodes...)
		for _, ferr := range routed.Failures {
			o.fail(res, StageExtract, ferr, FailureExtraction)
		}
	}
	o.setState(StateExtracted)
	log.Debug("Routing done", "results", len(res.Results))

	if o.recoverer != nil {
		readouts, err := runStage(ctx, StageRecover, func(ctx context.Context) ([]barcode.Readout, error) {
			return o.recoverer.Recover(ctx, f, o.cfg.BarcodeRegion)
		})
		switch {
		case err != nil:
			if o.fail(res, StageRecover, err, FailureRecoveryExhausted) == FailureTimeout {
				return
			}
		case len(readouts) == 0:
			o.fail(res, StageRecover, barcode.ErrRecoveryExhausted, FailureRecoveryExhausted)
		default:
			res.Barcodes = append(res.Barcodes, readouts...)
		}
		log.Debug("Barcode stage done", "barcodes", len(res.Barcodes))
	}

	if o.codec != nil {
		out := verify.Verify(res.Serial, res.Barcodes, o.codec)
		res.Verification = &out
		log.Debug("Serial verified", "serial", res.Serial, "matched", out.Matched)
	}
}

func (o *Orchestrator) capture(ctx context.Context, req Request, serial string) (*frame.Frame, error) {
	if req.Frame != nil {
		return req.Frame, nil
	}
	if o.source == nil {
		return nil, errNoFrame
	}
	hint := capture.Hint{}
	if o.codec != nil && serial != "" {
		content, err := o.codec.Encode(serial)
		if err != nil {
			return nil, fmt.Errorf("encode serial: %w", err)
		}
		hint.Content = content
	}
	return o.source.Next(ctx, hint)
}

// fail records err under the kind its sentinel maps to, or fallback.
func (o *Orchestrator) fail(res *Result, stage string, err error, fallback FailureKind) FailureKind {
	kind := classify(err, fallback)
	res.addFailure(kind, stage, err)
	failuresTotal.WithLabelValues(string(kind)).Inc()
	slog.Debug("Cycle stage failed", "cycle_id", res.ID.String(), "stage", stage, "kind", kind, "error", err)
	return kind
}

func classify(err error, fallback FailureKind) FailureKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTimeout
	case errors.Is(err, frame.ErrInvalidFrame):
		return FailureInvalidFrame
	case errors.Is(err, detector.ErrInferenceUnavailable):
		return FailureInferenceUnavailable
	case errors.Is(err, extract.ErrExtractionFailure):
		return FailureExtraction
	case errors.Is(err, barcode.ErrRecoveryExhausted), errors.Is(err, barcode.ErrNoBackend):
		return FailureRecoveryExhausted
	}
	return fallback
}

// runStage runs fn in its own goroutine so an overrunning stage cannot hold
// the cycle past its deadline. A stage that overruns keeps running in the
// background until it observes ctx.
func runStage[T any](ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{zero, fmt.Errorf("%s stage panic: %v", stage, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()
	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%s stage: %w", stage, ctx.Err())
	}
}

// emit fans res out to every sink. Sinks get a snapshot so emit failures can
// be appended to the returned result afterwards.
func (o *Orchestrator) emit(ctx context.Context, res *Result) {
	if len(o.sinks) == 0 {
		return
	}
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.EmitTimeout)
	defer cancel()

	snapshot := *res
	errs := make([]error, len(o.sinks))
	var g errgroup.Group
	for i, s := range o.sinks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sink panic: %v", r)
				}
				errs[i] = err
			}()
			return s.Emit(ectx, &snapshot)
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		name := o.sinks[i].Name()
		sinkErrorsTotal.WithLabelValues(name).Inc()
		failuresTotal.WithLabelValues(string(FailureEmit)).Inc()
		slog.Warn("Sink emission failed", "cycle_id", res.ID.String(), "sink", name, "error", err)
		res.addFailure(FailureEmit, StageEmit, fmt.Errorf("%s: %w", name, err))
	}
}
