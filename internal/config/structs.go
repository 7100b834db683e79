//nolint:lll
package config

import "time"

// Config represents the complete configuration of a linecheck node. It
// covers every command (run, cycle, serve) and is loaded from a
// configuration file, LINECHECK_ environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Barcode    BarcodeConfig    `mapstructure:"barcode" yaml:"barcode" json:"barcode"`
	Router     RouterConfig     `mapstructure:"router" yaml:"router" json:"router"`
	Cycle      CycleConfig      `mapstructure:"cycle" yaml:"cycle" json:"cycle"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Upload     UploadConfig     `mapstructure:"upload" yaml:"upload" json:"upload"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	GPU        GPUConfig        `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DetectorConfig contains object detection settings.
type DetectorConfig struct {
	ModelPath        string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LibraryPath      string   `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	InputSize        int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfThreshold    float64  `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	IoUThreshold     float64  `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	InputOrder       string   `mapstructure:"input_order" yaml:"input_order" json:"input_order"`
	Classes          []string `mapstructure:"classes" yaml:"classes" json:"classes"` // index is the class id
	NumThreads       int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	WarmupIterations int      `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
	AllowSimulation  bool     `mapstructure:"allow_simulation" yaml:"allow_simulation" json:"allow_simulation"`
}

// RecognizerConfig contains ONNX text recognition settings.
type RecognizerConfig struct {
	ModelPath        string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath         string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight      int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth         int    `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	PadWidthMultiple int    `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	NumThreads       int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// OCRConfig selects the field extraction engine.
type OCRConfig struct {
	Backend         string   `mapstructure:"backend" yaml:"backend" json:"backend"`
	Language        string   `mapstructure:"language" yaml:"language" json:"language"`
	CredentialsFile string   `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
	Attempts        []string `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	Margin          int      `mapstructure:"margin" yaml:"margin" json:"margin"`
}

// BarcodeConfig contains barcode recovery settings.
type BarcodeConfig struct {
	Enabled    bool         `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Formats    []string     `mapstructure:"formats" yaml:"formats" json:"formats"`
	Strategies []string     `mapstructure:"strategies" yaml:"strategies" json:"strategies"`
	TryHarder  bool         `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Multi      bool         `mapstructure:"multi" yaml:"multi" json:"multi"`
	Region     RegionConfig `mapstructure:"region" yaml:"region" json:"region"` // zero means the whole frame
}

// RegionConfig is a rectangle in frame pixels.
type RegionConfig struct {
	X int `mapstructure:"x" yaml:"x" json:"x"`
	Y int `mapstructure:"y" yaml:"y" json:"y"`
	W int `mapstructure:"w" yaml:"w" json:"w"`
	H int `mapstructure:"h" yaml:"h" json:"h"`
}

// RouterConfig maps class ids to result handlers.
type RouterConfig struct {
	LabelClass   int `mapstructure:"label_class" yaml:"label_class" json:"label_class"`
	FieldClass   int `mapstructure:"field_class" yaml:"field_class" json:"field_class"`
	BarcodeClass int `mapstructure:"barcode_class" yaml:"barcode_class" json:"barcode_class"` // -1 disables
}

// CycleConfig contains trigger and timing settings.
type CycleConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	EmitTimeout time.Duration `mapstructure:"emit_timeout" yaml:"emit_timeout" json:"emit_timeout"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	Codec       string        `mapstructure:"codec" yaml:"codec" json:"codec"` // "", plain, base64; empty disables verification
	Source      SourceConfig  `mapstructure:"source" yaml:"source" json:"source"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Type string `mapstructure:"type" yaml:"type" json:"type"` // synthetic, file or dir
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// OutputConfig contains result printing settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"` // json, yaml, csv or none
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// UploadConfig contains backend delivery settings.
type UploadConfig struct {
	LineID     string            `mapstructure:"line_id" yaml:"line_id" json:"line_id"`
	DeviceID   string            `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	OperatorID string            `mapstructure:"operator_id" yaml:"operator_id" json:"operator_id"`
	SourceType string            `mapstructure:"source_type" yaml:"source_type" json:"source_type"`
	HTTP       HTTPUploadConfig  `mapstructure:"http" yaml:"http" json:"http"`
	Redis      RedisUploadConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// HTTPUploadConfig configures the HTTP uploader.
type HTTPUploadConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// RedisUploadConfig configures the Redis stream uploader.
type RedisUploadConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
	Stream   string `mapstructure:"stream" yaml:"stream" json:"stream"`
	MaxLen   int64  `mapstructure:"max_len" yaml:"max_len" json:"max_len"`
}

// ServerConfig contains HTTP status server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Manual trigger limits per client; zero disables.
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
