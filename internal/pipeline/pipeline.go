// Package pipeline assembles the detector, OCR engine, extraction adapter,
// barcode recovery engine and router from one configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/linecheck/internal/barcode"
	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/extract"
	"github.com/MeKo-Tech/linecheck/internal/imgproc"
	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/ocr"
	"github.com/MeKo-Tech/linecheck/internal/recognizer"
	"github.com/MeKo-Tech/linecheck/internal/router"
)

// OCR backends selectable in configuration.
const (
	OCRBackendONNX        = "onnx"
	OCRBackendTesseract   = "tesseract"
	OCRBackendCloudVision = "cloudvision"
	OCRBackendNone        = "none"
)

// OCRConfig selects and tunes the text extraction engine.
type OCRConfig struct {
	Backend         string   // onnx (default), tesseract, cloudvision or none
	Language        string   // tesseract language / cloud vision hint
	CredentialsFile string   // cloud vision service account file
	Attempts        []string // preprocessing attempts, in order
	Margin          int      // crop margin around field boxes
}

// BarcodeConfig controls the barcode recovery stage.
type BarcodeConfig struct {
	Enabled    bool
	Formats    []string // e.g. ["qr","code128"]; empty means all
	Strategies []string // empty means the full catalogue
	TryHarder  bool
	Multi      bool
}

// Config holds configuration for every cycle component.
type Config struct {
	ModelsDir  string
	Detector   detector.Config
	Recognizer recognizer.Config
	OCR        OCRConfig
	Barcode    BarcodeConfig
	Router     router.Config
}

// DefaultConfig returns a default config with component defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:  models.GetModelsDir(""),
		Detector:   detector.DefaultConfig(),
		Recognizer: recognizer.DefaultConfig(),
		OCR: OCRConfig{
			Backend:  OCRBackendONNX,
			Language: "eng",
			Attempts: append([]string(nil), extract.DefaultAttempts...),
			Margin:   extract.DefaultMargin,
		},
		Barcode: BarcodeConfig{Enabled: true, Strategies: imgproc.Names()},
		Router:  router.DefaultConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFrom starts from an existing configuration.
func NewBuilderFrom(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelsDir sets the models directory and re-resolves model paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	b.cfg.Detector.ModelPath = models.GetDetectorModelPath(b.cfg.ModelsDir)
	b.cfg.Recognizer.ModelPath = models.GetRecognitionModelPath(b.cfg.ModelsDir)
	b.cfg.Recognizer.DictPath = models.GetDictionaryPath(b.cfg.ModelsDir, models.Dictionary)
	return b
}

// WithDetectorModelPath overrides the detector model path directly.
func (b *Builder) WithDetectorModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
	}
	return b
}

// WithRecognizerModelPath overrides the recognizer model path directly.
func (b *Builder) WithRecognizerModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.ModelPath = path
	}
	return b
}

// WithDictionaryPath overrides the dictionary path directly.
func (b *Builder) WithDictionaryPath(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.DictPath = path
	}
	return b
}

// WithLibraryPath sets the ONNX Runtime shared library for both models.
func (b *Builder) WithLibraryPath(path string) *Builder {
	b.cfg.Detector.LibraryPath = path
	b.cfg.Recognizer.LibraryPath = path
	return b
}

// WithDetectorThresholds sets the confidence and NMS IoU thresholds.
func (b *Builder) WithDetectorThresholds(conf, iou float64) *Builder {
	if conf > 0 {
		b.cfg.Detector.ConfThreshold = conf
	}
	if iou > 0 {
		b.cfg.Detector.IoUThreshold = iou
	}
	return b
}

// WithSimulation allows the detector to fall back to placeholder detections.
func (b *Builder) WithSimulation(allowed bool) *Builder {
	b.cfg.Detector.AllowSimulation = allowed
	return b
}

// WithThreads sets intra-op thread counts for both models (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.NumThreads = n
		b.cfg.Recognizer.NumThreads = n
	}
	return b
}

// WithWarmupIterations sets detector warmup runs to reduce cold-start latency.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.Detector.WarmupIterations = n
	}
	return b
}

// WithImageHeight sets target recognition image height.
func (b *Builder) WithImageHeight(h int) *Builder {
	if h > 0 {
		b.cfg.Recognizer.ImageHeight = h
	}
	return b
}

// WithGPU enables GPU acceleration for both models.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	b.cfg.Recognizer.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID for both models.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Detector.GPU.DeviceID = deviceID
	b.cfg.Recognizer.GPU.DeviceID = deviceID
	return b
}

// WithOCRBackend selects the text extraction engine.
func (b *Builder) WithOCRBackend(name string) *Builder {
	if name != "" {
		b.cfg.OCR.Backend = strings.ToLower(name)
	}
	return b
}

// WithExtractionAttempts replaces the preprocessing attempts for fields.
func (b *Builder) WithExtractionAttempts(names []string) *Builder {
	if len(names) > 0 {
		b.cfg.OCR.Attempts = append([]string(nil), names...)
	}
	return b
}

// WithExtractionMargin sets the crop margin around field boxes.
func (b *Builder) WithExtractionMargin(m int) *Builder {
	if m >= 0 {
		b.cfg.OCR.Margin = m
	}
	return b
}

// WithBarcodes enables or disables barcode recovery, optionally restricting formats.
func (b *Builder) WithBarcodes(enabled bool, formats []string) *Builder {
	b.cfg.Barcode.Enabled = enabled
	if len(formats) > 0 {
		b.cfg.Barcode.Formats = formats
	}
	return b
}

// WithBarcodeStrategies replaces the barcode strategy order.
func (b *Builder) WithBarcodeStrategies(names []string) *Builder {
	if len(names) > 0 {
		b.cfg.Barcode.Strategies = append([]string(nil), names...)
	}
	return b
}

// WithRouter sets the class mapping.
func (b *Builder) WithRouter(cfg router.Config) *Builder {
	b.cfg.Router = cfg
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that configuration looks sane. Missing model files are not
// an error: the detector may simulate and fields then fail per cycle.
func (b *Builder) Validate() error {
	if err := b.cfg.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	switch b.cfg.OCR.Backend {
	case OCRBackendONNX, OCRBackendTesseract, OCRBackendCloudVision, OCRBackendNone:
	default:
		return fmt.Errorf("unknown ocr backend %q", b.cfg.OCR.Backend)
	}
	if b.cfg.OCR.Backend == OCRBackendONNX && b.cfg.Recognizer.ImageHeight <= 0 {
		return errors.New("recognizer image height must be > 0")
	}
	if _, err := imgproc.Resolve(b.cfg.OCR.Attempts); err != nil {
		return fmt.Errorf("extraction attempts: %w", err)
	}
	if _, err := imgproc.Resolve(b.cfg.Barcode.Strategies); err != nil {
		return fmt.Errorf("barcode strategies: %w", err)
	}
	if _, unknown := barcode.ParseFormats(b.cfg.Barcode.Formats); len(unknown) > 0 {
		return fmt.Errorf("unknown barcode formats: %s", strings.Join(unknown, ", "))
	}
	r := b.cfg.Router
	if r.LabelClass == r.FieldClass || (r.BarcodeClass != router.NoClass && (r.BarcodeClass == r.LabelClass || r.BarcodeClass == r.FieldClass)) {
		return errors.New("router classes must be distinct")
	}
	return nil
}

// Pipeline holds the constructed cycle components.
type Pipeline struct {
	cfg       Config
	Detector  *detector.Detector
	Engine    ocr.Engine // nil when no OCR backend could be loaded
	Extractor *extract.Adapter
	Barcode   *barcode.Engine // nil when barcode recovery is disabled
	Router    *router.Router

	closers []io.Closer
}

// Build initializes every component. Only configuration errors and
// non-recoverable detector failures are fatal; an unavailable OCR backend is
// logged and leaves field extraction failing per cycle.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	det, err := detector.NewWithFallback(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("init detector: %w", err)
	}
	p := &Pipeline{cfg: b.cfg, Detector: det}
	p.closers = append(p.closers, det)

	engine, closer, err := newEngine(ctx, b.cfg)
	if err != nil {
		slog.Warn("OCR engine unavailable, field extraction disabled", "backend", b.cfg.OCR.Backend, "error", err)
	} else if engine != nil {
		p.Engine = engine
		if closer != nil {
			p.closers = append(p.closers, closer)
		}
	}

	attempts, _ := imgproc.Resolve(b.cfg.OCR.Attempts)
	p.Extractor = extract.NewAdapter(p.Engine, extract.WithMargin(b.cfg.OCR.Margin), extract.WithAttempts(attempts))

	if b.cfg.Barcode.Enabled {
		strategies, _ := imgproc.Resolve(b.cfg.Barcode.Strategies)
		formats, _ := barcode.ParseFormats(b.cfg.Barcode.Formats)
		p.Barcode = barcode.NewEngine(barcode.NewBackend(),
			barcode.WithStrategies(strategies),
			barcode.WithOptions(barcode.Options{Formats: formats, TryHarder: b.cfg.Barcode.TryHarder, Multi: b.cfg.Barcode.Multi}))
	}

	var rec router.Recoverer
	if p.Barcode != nil {
		rec = p.Barcode
	}
	var ex router.Extractor
	if p.Engine != nil {
		ex = p.Extractor
	}
	p.Router = router.New(b.cfg.Router, ex, rec)

	slog.Debug("Pipeline built",
		"simulated", det.Simulated(),
		"ocr_backend", b.cfg.OCR.Backend,
		"ocr_available", p.Engine != nil,
		"barcode", p.Barcode != nil)
	return p, nil
}

func newEngine(ctx context.Context, cfg Config) (ocr.Engine, io.Closer, error) {
	switch cfg.OCR.Backend {
	case OCRBackendNone:
		return nil, nil, nil
	case OCRBackendTesseract:
		t, err := ocr.NewTesseract(cfg.OCR.Language)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case OCRBackendCloudVision:
		var hints []string
		if cfg.OCR.Language != "" {
			hints = []string{cfg.OCR.Language}
		}
		c, err := ocr.NewCloudVision(ctx, ocr.CloudVisionConfig{CredentialsFile: cfg.OCR.CredentialsFile, LanguageHints: hints})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		r, err := recognizer.NewRecognizer(cfg.Recognizer)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	}
}

// Orchestrator wires the pipeline into a cycle orchestrator. The barcode
// stage is enabled when barcode recovery is.
func (p *Pipeline) Orchestrator(cfg cycle.Config, opts ...cycle.Option) (*cycle.Orchestrator, error) {
	if p.Barcode != nil {
		opts = append([]cycle.Option{cycle.WithRecoverer(p.Barcode)}, opts...)
	}
	return cycle.New(cfg, p.Detector, p.Router, opts...)
}

// Close releases all resources in reverse construction order.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties and model info.
func (p *Pipeline) Info() map[string]any {
	info := map[string]any{
		"models_dir": p.cfg.ModelsDir,
		"detector":   p.Detector.Info(),
		"ocr": map[string]any{
			"backend":   p.cfg.OCR.Backend,
			"available": p.Engine != nil,
			"attempts":  p.cfg.OCR.Attempts,
			"margin":    p.cfg.OCR.Margin,
		},
		"router": map[string]any{
			"label_class":   p.cfg.Router.LabelClass,
			"field_class":   p.cfg.Router.FieldClass,
			"barcode_class": p.cfg.Router.BarcodeClass,
		},
	}
	if p.Barcode != nil {
		info["barcode"] = map[string]any{
			"enabled":    true,
			"formats":    p.cfg.Barcode.Formats,
			"strategies": p.Barcode.Strategies(),
		}
	} else {
		info["barcode"] = map[string]any{"enabled": false}
	}
	return info
}
