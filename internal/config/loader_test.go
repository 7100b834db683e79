package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	want := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, want.LogLevel, cfg.LogLevel)
	assert.Equal(t, want.Detector, cfg.Detector)
	assert.Equal(t, want.OCR, cfg.OCR)
	assert.Equal(t, want.Barcode.Strategies, cfg.Barcode.Strategies)
	assert.Empty(t, cfg.Barcode.Formats)
	assert.Equal(t, want.Router, cfg.Router)
	assert.Equal(t, want.Cycle, cfg.Cycle)
	assert.Equal(t, want.Upload, cfg.Upload)
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.GPU, cfg.GPU)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
detector:
  conf_threshold: 0.7
  classes: [flavor, date, code]
ocr:
  backend: none
barcode:
  formats: [qr]
  region: {x: 0, y: 300, w: 640, h: 180}
router:
  barcode_class: 2
cycle:
  timeout: 2s
  interval: 500ms
  source:
    type: dir
    path: /var/lib/linecheck/frames
upload:
  redis:
    enabled: true
    stream: line3:results
`)
	l := NewLoaderWith(viper.New())
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.GetConfigFileUsed())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.7, cfg.Detector.ConfThreshold, 1e-9)
	assert.Equal(t, []string{"flavor", "date", "code"}, cfg.Detector.Classes)
	assert.Equal(t, "none", cfg.OCR.Backend)
	assert.Equal(t, RegionConfig{X: 0, Y: 300, W: 640, H: 180}, cfg.Barcode.Region)
	assert.Equal(t, 2, cfg.Router.BarcodeClass)
	assert.Equal(t, 2*time.Second, cfg.Cycle.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Cycle.Interval)
	assert.Equal(t, SourceDir, cfg.Cycle.Source.Type)
	assert.Equal(t, "line3:results", cfg.Upload.Redis.Stream)
	assert.Equal(t, "localhost:6379", cfg.Upload.Redis.Addr, "unset keys keep defaults")
	assert.Equal(t, 640, cfg.Detector.InputSize)
}

func TestLoadWithFile_Errors(t *testing.T) {
	_, err := NewLoaderWith(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = NewLoaderWith(viper.New()).LoadWithFile(writeConfig(t, "log_level: [unclosed"))
	assert.ErrorContains(t, err, "error reading config file")

	_, err = NewLoaderWith(viper.New()).LoadWithFile(writeConfig(t, "log_level: chatty\n"))
	assert.ErrorContains(t, err, "validation failed")
}

func TestLoadWithoutValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("linecheck.yaml", []byte("server:\n  port: 0\n"), 0o600))

	cfg, err := NewLoaderWith(viper.New()).LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LINECHECK_LOG_LEVEL", "warn")
	t.Setenv("LINECHECK_CYCLE_TIMEOUT", "750ms")
	t.Setenv("LINECHECK_CYCLE_SOURCE_TYPE", "file")
	t.Setenv("LINECHECK_CYCLE_SOURCE_PATH", "/tmp/frame.png")
	t.Setenv("LINECHECK_BARCODE_FORMATS", "qr,code128")
	t.Setenv("LINECHECK_SERVER_PORT", "9090")

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 750*time.Millisecond, cfg.Cycle.Timeout)
	assert.Equal(t, SourceFile, cfg.Cycle.Source.Type)
	assert.Equal(t, "/tmp/frame.png", cfg.Cycle.Source.Path)
	assert.Equal(t, []string{"qr", "code128"}, cfg.Barcode.Formats)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefaultConfig(&buf))

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &raw))
	assert.Contains(t, raw, "cycle")
	assert.Contains(t, raw, "barcode")

	path := filepath.Join(t.TempDir(), "linecheck.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))
	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assertDefaults(t, cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "linecheck"))
	assert.Equal(t, "/etc/linecheck", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	NewLoaderWith(viper.New()).PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: LINECHECK")
}
