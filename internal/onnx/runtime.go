package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides every other library lookup when set.
const EnvLibraryPath = "LINECHECK_ONNXRUNTIME_LIB"

// ErrLibraryNotFound is returned when no ONNX Runtime shared library can be located.
var ErrLibraryNotFound = errors.New("onnxruntime library not found")

var initMu sync.Mutex

// GPUConfig holds configuration for CUDA acceleration.
type GPUConfig struct {
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID    int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	GPUMemLimit uint64 `mapstructure:"mem_limit" yaml:"mem_limit" json:"mem_limit"` // bytes, 0 = unlimited
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{}
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if config.UseGPU && config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}
	return nil
}

// SessionConfig collects the options shared by every session this module creates.
type SessionConfig struct {
	LibraryPath string
	NumThreads  int
	GPU         GPUConfig
}

// Initialize locates the shared library and brings up the runtime environment once.
func Initialize(libraryPath string, useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	path, err := ResolveLibraryPath(libraryPath, useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(path)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", path, "gpu", useGPU)
	return nil
}

// NewSessionOptions builds session options with threads and, if requested, CUDA.
// The caller owns the returned options and must Destroy them.
func NewSessionOptions(cfg SessionConfig) (*onnxruntime_go.SessionOptions, error) {
	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}
	if err := configureCUDA(opts, cfg.GPU); err != nil {
		slog.Warn("CUDA unavailable, using CPU", "error", err)
	}
	return opts, nil
}

func configureCUDA(opts *onnxruntime_go.SessionOptions, gpu GPUConfig) error {
	if !gpu.UseGPU {
		return nil
	}
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options: %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("Failed to destroy CUDA provider options", "error", err)
		}
	}()

	settings := map[string]string{"device_id": strconv.Itoa(gpu.DeviceID)}
	if gpu.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpu.GPUMemLimit, 10)
	}
	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// ResolveLibraryPath returns the first existing library among: the explicit
// path, $LINECHECK_ONNXRUNTIME_LIB, system locations, and <project>/onnxruntime/lib.
func ResolveLibraryPath(explicit string, useGPU bool) (string, error) {
	candidates := make([]string, 0, 8)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if env := os.Getenv(EnvLibraryPath); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, systemLibraryPaths(useGPU)...)

	if root, err := findProjectRoot(); err == nil {
		if name, err := libraryName(); err == nil {
			if useGPU {
				candidates = append(candidates, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
			}
			candidates = append(candidates, filepath.Join(root, "onnxruntime", "lib", name))
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %d locations)", ErrLibraryNotFound, len(candidates))
}

func systemLibraryPaths(useGPU bool) []string {
	if runtime.GOOS == "darwin" {
		return []string{"/opt/homebrew/lib/libonnxruntime.dylib", "/usr/local/lib/libonnxruntime.dylib"}
	}
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		paths = append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}
