// Package detector turns a frame into labelled boxes: letterbox
// preprocessing, an inference engine and YOLO-style decoding with per-class
// non-maximum suppression.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/mempool"
)

// ErrInferenceUnavailable is returned when the runtime or model cannot be loaded.
var ErrInferenceUnavailable = errors.New("inference unavailable")

// Detector runs object detection on frames. It is safe for concurrent use
// once constructed; the engine is never mutated after load.
type Detector struct {
	config Config
	engine Engine
}

// NewDetector loads the ONNX model described by config.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"input_size", config.InputSize,
		"conf_threshold", config.ConfThreshold,
		"iou_threshold", config.IoUThreshold)

	engine, err := newONNXEngine(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceUnavailable, err)
	}
	if err := engine.Warmup(config.WarmupIterations); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("%w: warmup: %w", ErrInferenceUnavailable, err)
	}
	config.InputSize = engine.InputSize()

	slog.Debug("Detector initialized successfully", "input_size", config.InputSize)
	return &Detector{config: config, engine: engine}, nil
}

// NewWithEngine wraps an existing engine.
func NewWithEngine(config Config, engine Engine) (*Detector, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if s := engine.InputSize(); s > 0 {
		config.InputSize = s
	}
	return &Detector{config: config, engine: engine}, nil
}

// NewSimulated returns a detector that emits placeholder detections.
func NewSimulated(config Config) *Detector {
	if config.Labels == nil {
		config.Labels = DefaultLabels()
	}
	return &Detector{config: config}
}

// NewWithFallback loads the model and, when that fails with
// ErrInferenceUnavailable and simulation is allowed, returns a simulated detector.
func NewWithFallback(config Config) (*Detector, error) {
	d, err := NewDetector(config)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrInferenceUnavailable) || !config.AllowSimulation {
		return nil, err
	}
	slog.Warn("Inference unavailable, running in simulation mode", "error", err)
	return NewSimulated(config), nil
}

// Simulated reports whether detections are placeholders.
func (d *Detector) Simulated() bool { return d.engine == nil }

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() Config { return d.config }

// Detect runs letterbox, inference and decoding on one frame.
func (d *Detector) Detect(ctx context.Context, f *frame.Frame) ([]Detection, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.engine == nil {
		return simulate(d.config.Labels, f.Bounds()), nil
	}

	tensor, tr, err := Letterbox(f, d.config.InputSize, d.config.InputOrder)
	if err != nil {
		return nil, err
	}
	out, err := d.engine.Infer(tensor)
	mempool.PutFloat32(tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceUnavailable, err)
	}

	raw, err := NewRawOutput(out.Data, out.Shape, d.config.NumClasses())
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	dets := Postprocess(raw, tr, d.config.Labels, d.config.ConfThreshold, d.config.IoUThreshold)
	slog.Debug("Detection complete", "candidates", raw.Candidates, "detections", len(dets))
	return dets, nil
}

// Info summarises the detector for status endpoints.
func (d *Detector) Info() map[string]any {
	return map[string]any{
		"model_path":     d.config.ModelPath,
		"input_size":     d.config.InputSize,
		"conf_threshold": d.config.ConfThreshold,
		"iou_threshold":  d.config.IoUThreshold,
		"classes":        d.config.Labels,
		"simulated":      d.Simulated(),
	}
}

// Close releases the engine.
func (d *Detector) Close() error {
	if d.engine == nil {
		return nil
	}
	return d.engine.Close()
}
