package config

import (
	"fmt"
	"image"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/detector"
	"github.com/MeKo-Tech/linecheck/internal/extract"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/imgproc"
	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/MeKo-Tech/linecheck/internal/pipeline"
	"github.com/MeKo-Tech/linecheck/internal/recognizer"
	"github.com/MeKo-Tech/linecheck/internal/router"
	"github.com/MeKo-Tech/linecheck/internal/server"
	"github.com/MeKo-Tech/linecheck/internal/upload"
	"github.com/MeKo-Tech/linecheck/internal/verify"
)

// Frame source types.
const (
	SourceSynthetic = "synthetic"
	SourceFile      = "file"
	SourceDir       = "dir"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	cyc := cycle.DefaultConfig()
	return Config{
		LogLevel: "info",
		Detector: DetectorConfig{
			InputSize:       det.InputSize,
			ConfThreshold:   det.ConfThreshold,
			IoUThreshold:    det.IoUThreshold,
			InputOrder:      det.InputOrder.String(),
			Classes:         []string{"flavor", "date"},
			AllowSimulation: det.AllowSimulation,
		},
		Recognizer: RecognizerConfig{
			ImageHeight:      rec.ImageHeight,
			MaxWidth:         rec.MaxWidth,
			PadWidthMultiple: rec.PadWidthMultiple,
		},
		OCR: OCRConfig{
			Backend:  pipeline.OCRBackendONNX,
			Language: "eng",
			Attempts: append([]string(nil), extract.DefaultAttempts...),
			Margin:   extract.DefaultMargin,
		},
		Barcode: BarcodeConfig{
			Enabled:    true,
			Strategies: imgproc.Names(),
		},
		Router: RouterConfig{
			LabelClass:   detector.ClassFlavor,
			FieldClass:   detector.ClassDate,
			BarcodeClass: router.NoClass,
		},
		Cycle: CycleConfig{
			Timeout:     cyc.Timeout,
			EmitTimeout: cyc.EmitTimeout,
			Interval:    3 * time.Second,
			Codec:       "base64",
			Source:      SourceConfig{Type: SourceSynthetic},
		},
		Output: OutputConfig{Format: "json"},
		Upload: UploadConfig{
			DeviceID:   "EDGE-001",
			OperatorID: upload.DefaultOperatorID,
			SourceType: upload.DefaultSourceType,
			HTTP: HTTPUploadConfig{
				Endpoint: upload.DefaultEndpoint,
				Timeout:  10 * time.Second,
			},
			Redis: RedisUploadConfig{
				Addr:   "localhost:6379",
				Stream: upload.DefaultStream,
				MaxLen: 10000,
			},
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			RequestsPerMinute: 60,
		},
		GPU: GPUConfig{MemoryLimit: "auto"},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"json", "yaml", "csv", "none"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := validateThreshold(c.Detector.ConfThreshold, "detector.conf_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.IoUThreshold, "detector.iou_threshold"); err != nil {
		return err
	}
	if c.Detector.InputSize <= 0 {
		return fmt.Errorf("invalid detector input size: %d (must be positive)", c.Detector.InputSize)
	}
	if len(c.Detector.Classes) == 0 {
		return fmt.Errorf("detector.classes must name at least one class")
	}
	if _, err := frame.ParseChannelOrder(c.Detector.InputOrder); err != nil {
		return fmt.Errorf("invalid detector input order: %w", err)
	}

	validBackends := []string{pipeline.OCRBackendONNX, pipeline.OCRBackendTesseract, pipeline.OCRBackendCloudVision, pipeline.OCRBackendNone}
	if !slices.Contains(validBackends, c.OCR.Backend) {
		return fmt.Errorf("invalid ocr backend: %s (must be one of: %s)", c.OCR.Backend, strings.Join(validBackends, ", "))
	}
	if c.OCR.Margin < 0 {
		return fmt.Errorf("invalid ocr margin: %d (must not be negative)", c.OCR.Margin)
	}

	if c.Cycle.Timeout <= 0 {
		return fmt.Errorf("invalid cycle timeout: %s (must be positive)", c.Cycle.Timeout)
	}
	if c.Cycle.Interval < 0 {
		return fmt.Errorf("invalid cycle interval: %s", c.Cycle.Interval)
	}
	if c.Cycle.Codec != "" {
		if _, err := verify.CodecByName(c.Cycle.Codec); err != nil {
			return err
		}
	}
	validSources := []string{SourceSynthetic, SourceFile, SourceDir}
	if !slices.Contains(validSources, c.Cycle.Source.Type) {
		return fmt.Errorf("invalid frame source: %s (must be one of: %s)", c.Cycle.Source.Type, strings.Join(validSources, ", "))
	}
	if c.Cycle.Source.Type != SourceSynthetic && c.Cycle.Source.Path == "" {
		return fmt.Errorf("frame source %s requires cycle.source.path", c.Cycle.Source.Type)
	}

	r := c.Barcode.Region
	if r.W < 0 || r.H < 0 || r.X < 0 || r.Y < 0 {
		return fmt.Errorf("invalid barcode region %+v", r)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
		return fmt.Errorf("server rate limits must not be negative")
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.Upload.Redis.Enabled && c.Upload.Redis.Addr == "" {
		return fmt.Errorf("upload.redis.addr is required when redis upload is enabled")
	}

	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = models.GetModelsDir(c.ModelsDir)
	cfg.Detector = c.toDetectorConfig(cfg.ModelsDir)
	cfg.Recognizer = c.toRecognizerConfig(cfg.ModelsDir)
	cfg.OCR = pipeline.OCRConfig{
		Backend:         c.OCR.Backend,
		Language:        c.OCR.Language,
		CredentialsFile: c.OCR.CredentialsFile,
		Attempts:        c.OCR.Attempts,
		Margin:          c.OCR.Margin,
	}
	cfg.Barcode = pipeline.BarcodeConfig{
		Enabled:    c.Barcode.Enabled,
		Formats:    c.Barcode.Formats,
		Strategies: c.Barcode.Strategies,
		TryHarder:  c.Barcode.TryHarder,
		Multi:      c.Barcode.Multi,
	}
	cfg.Router = router.Config{
		LabelClass:   c.Router.LabelClass,
		FieldClass:   c.Router.FieldClass,
		BarcodeClass: c.Router.BarcodeClass,
	}
	return cfg
}

func (c *Config) toDetectorConfig(modelsDir string) detector.Config {
	cfg := detector.DefaultConfig()
	cfg.ModelPath = models.GetDetectorModelPath(modelsDir)
	if c.Detector.ModelPath != "" {
		cfg.ModelPath = c.Detector.ModelPath
	}
	cfg.LibraryPath = c.Detector.LibraryPath
	cfg.InputSize = c.Detector.InputSize
	cfg.ConfThreshold = c.Detector.ConfThreshold
	cfg.IoUThreshold = c.Detector.IoUThreshold
	if order, err := frame.ParseChannelOrder(c.Detector.InputOrder); err == nil {
		cfg.InputOrder = order
	}
	if len(c.Detector.Classes) > 0 {
		cfg.Labels = make(detector.Labels, len(c.Detector.Classes))
		for id, name := range c.Detector.Classes {
			cfg.Labels[id] = name
		}
	}
	cfg.NumThreads = c.Detector.NumThreads
	cfg.WarmupIterations = c.Detector.WarmupIterations
	cfg.AllowSimulation = c.Detector.AllowSimulation
	cfg.GPU = c.toGPUConfig()
	return cfg
}

func (c *Config) toRecognizerConfig(modelsDir string) recognizer.Config {
	cfg := recognizer.DefaultConfig()
	cfg.ModelPath = models.GetRecognitionModelPath(modelsDir)
	cfg.DictPath = models.GetDictionaryPath(modelsDir, models.Dictionary)
	if c.Recognizer.ModelPath != "" {
		cfg.ModelPath = c.Recognizer.ModelPath
	}
	if c.Recognizer.DictPath != "" {
		cfg.DictPath = c.Recognizer.DictPath
	}
	cfg.LibraryPath = c.Detector.LibraryPath
	if c.Recognizer.ImageHeight > 0 {
		cfg.ImageHeight = c.Recognizer.ImageHeight
	}
	cfg.MaxWidth = c.Recognizer.MaxWidth
	cfg.PadWidthMultiple = c.Recognizer.PadWidthMultiple
	cfg.NumThreads = c.Recognizer.NumThreads
	cfg.GPU = c.toGPUConfig()
	return cfg
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	limit, _ := parseMemoryLimit(c.GPU.MemoryLimit)
	return onnx.GPUConfig{UseGPU: c.GPU.Enabled, DeviceID: c.GPU.Device, GPUMemLimit: limit}
}

// ToCycleConfig converts the config to the orchestrator bounds.
func (c *Config) ToCycleConfig() cycle.Config {
	r := c.Barcode.Region
	return cycle.Config{
		Timeout:       c.Cycle.Timeout,
		EmitTimeout:   c.Cycle.EmitTimeout,
		BarcodeRegion: image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H),
	}
}

// ToServerConfig converts the config to status server settings.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:              c.Server.Host,
		Port:              c.Server.Port,
		CORSOrigin:        c.Server.CORSOrigin,
		MaxUploadMB:       int64(c.Server.MaxUploadMB),
		TimeoutSec:        c.Server.TimeoutSec,
		RequestsPerMinute: c.Server.RequestsPerMinute,
		MaxRequestsPerDay: c.Server.MaxRequestsPerDay,
		MaxDataPerDay:     c.Server.MaxDataPerDay,
	}
}

// Codec returns the serial codec, or nil when verification is disabled.
func (c *Config) Codec() (verify.Codec, error) {
	if c.Cycle.Codec == "" {
		return nil, nil //nolint:nilnil // nil codec disables verification
	}
	return verify.CodecByName(c.Cycle.Codec)
}

// UploadMeta returns the metadata stamped on uploaded records.
func (c *Config) UploadMeta() upload.Meta {
	return upload.Meta{
		LineID:     c.Upload.LineID,
		DeviceID:   c.Upload.DeviceID,
		OperatorID: c.Upload.OperatorID,
		SourceType: c.Upload.SourceType,
	}
}

// RedisConfig returns the Redis uploader settings.
func (c *Config) RedisConfig() upload.RedisConfig {
	r := c.Upload.Redis
	return upload.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Stream: r.Stream, MaxLen: r.MaxLen}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit converts a limit such as "1GB" or "512MB" to bytes.
// Empty and "auto" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		mult   float64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.mult), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
