package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "linecheck"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LINECHECK"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on an isolated viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load minus the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty
// path searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file in the search paths is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps keys like cycle.source.type to
// LINECHECK_CYCLE_SOURCE_TYPE.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that AutomaticEnv can resolve it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("detector.model_path", d.Detector.ModelPath)
	l.v.SetDefault("detector.library_path", d.Detector.LibraryPath)
	l.v.SetDefault("detector.input_size", d.Detector.InputSize)
	l.v.SetDefault("detector.conf_threshold", d.Detector.ConfThreshold)
	l.v.SetDefault("detector.iou_threshold", d.Detector.IoUThreshold)
	l.v.SetDefault("detector.input_order", d.Detector.InputOrder)
	l.v.SetDefault("detector.classes", d.Detector.Classes)
	l.v.SetDefault("detector.num_threads", d.Detector.NumThreads)
	l.v.SetDefault("detector.warmup_iterations", d.Detector.WarmupIterations)
	l.v.SetDefault("detector.allow_simulation", d.Detector.AllowSimulation)

	l.v.SetDefault("recognizer.model_path", d.Recognizer.ModelPath)
	l.v.SetDefault("recognizer.dict_path", d.Recognizer.DictPath)
	l.v.SetDefault("recognizer.image_height", d.Recognizer.ImageHeight)
	l.v.SetDefault("recognizer.max_width", d.Recognizer.MaxWidth)
	l.v.SetDefault("recognizer.pad_width_multiple", d.Recognizer.PadWidthMultiple)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)

	l.v.SetDefault("ocr.backend", d.OCR.Backend)
	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.credentials_file", d.OCR.CredentialsFile)
	l.v.SetDefault("ocr.attempts", d.OCR.Attempts)
	l.v.SetDefault("ocr.margin", d.OCR.Margin)

	l.v.SetDefault("barcode.enabled", d.Barcode.Enabled)
	l.v.SetDefault("barcode.formats", d.Barcode.Formats)
	l.v.SetDefault("barcode.strategies", d.Barcode.Strategies)
	l.v.SetDefault("barcode.try_harder", d.Barcode.TryHarder)
	l.v.SetDefault("barcode.multi", d.Barcode.Multi)
	l.v.SetDefault("barcode.region.x", d.Barcode.Region.X)
	l.v.SetDefault("barcode.region.y", d.Barcode.Region.Y)
	l.v.SetDefault("barcode.region.w", d.Barcode.Region.W)
	l.v.SetDefault("barcode.region.h", d.Barcode.Region.H)

	l.v.SetDefault("router.label_class", d.Router.LabelClass)
	l.v.SetDefault("router.field_class", d.Router.FieldClass)
	l.v.SetDefault("router.barcode_class", d.Router.BarcodeClass)

	l.v.SetDefault("cycle.timeout", d.Cycle.Timeout)
	l.v.SetDefault("cycle.emit_timeout", d.Cycle.EmitTimeout)
	l.v.SetDefault("cycle.interval", d.Cycle.Interval)
	l.v.SetDefault("cycle.codec", d.Cycle.Codec)
	l.v.SetDefault("cycle.source.type", d.Cycle.Source.Type)
	l.v.SetDefault("cycle.source.path", d.Cycle.Source.Path)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("upload.line_id", d.Upload.LineID)
	l.v.SetDefault("upload.device_id", d.Upload.DeviceID)
	l.v.SetDefault("upload.operator_id", d.Upload.OperatorID)
	l.v.SetDefault("upload.source_type", d.Upload.SourceType)
	l.v.SetDefault("upload.http.enabled", d.Upload.HTTP.Enabled)
	l.v.SetDefault("upload.http.endpoint", d.Upload.HTTP.Endpoint)
	l.v.SetDefault("upload.http.timeout", d.Upload.HTTP.Timeout)
	l.v.SetDefault("upload.redis.enabled", d.Upload.Redis.Enabled)
	l.v.SetDefault("upload.redis.addr", d.Upload.Redis.Addr)
	l.v.SetDefault("upload.redis.password", d.Upload.Redis.Password)
	l.v.SetDefault("upload.redis.db", d.Upload.Redis.DB)
	l.v.SetDefault("upload.redis.stream", d.Upload.Redis.Stream)
	l.v.SetDefault("upload.redis.max_len", d.Upload.Redis.MaxLen)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	l.v.SetDefault("server.max_requests_per_day", d.Server.MaxRequestsPerDay)
	l.v.SetDefault("server.max_data_per_day", d.Server.MaxDataPerDay)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// WriteDefaultConfig writes the default configuration as YAML.
func WriteDefaultConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	return enc.Close()
}

// GenerateDefaultConfigFile writes the default configuration to filename
// (linecheck.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	f, err := os.Create(filename) //nolint:gosec // operator-chosen path
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := WriteDefaultConfig(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "linecheck"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "linecheck"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	return append(paths, "/etc/linecheck")
}

// PrintConfigInfo writes information about configuration loading.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
