package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
)

// Config holds configuration for the object detector.
type Config struct {
	ModelPath        string             // Path to ONNX detection model
	LibraryPath      string             // Optional ONNX Runtime shared library
	InputSize        int                // Square network input side (default: 640)
	ConfThreshold    float64            // Minimum class score kept (default: 0.5)
	IoUThreshold     float64            // Per-class NMS overlap limit (default: 0.5)
	InputOrder       frame.ChannelOrder // Channel order the network expects (default: RGB)
	Labels           Labels             // Class id to name table
	NumThreads       int                // Number of CPU threads (default: 0 for auto)
	WarmupIterations int                // Forward passes run at load time
	AllowSimulation  bool               // Fall back to placeholder detections when inference is unavailable
	GPU              onnx.GPUConfig     // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:       models.GetDetectorModelPath(""),
		InputSize:       640,
		ConfThreshold:   0.5,
		IoUThreshold:    0.5,
		InputOrder:      frame.OrderRGB,
		Labels:          DefaultLabels(),
		AllowSimulation: true,
		GPU:             onnx.DefaultGPUConfig(),
	}
}

// NumClasses is the number of class score columns the model emits.
func (c Config) NumClasses() int {
	n := 0
	for id := range c.Labels {
		n = max(n, id+1)
	}
	return n
}

// Validate checks thresholds and sizes.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", c.InputSize)
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %f", c.ConfThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be in [0,1], got %f", c.IoUThreshold)
	}
	if len(c.Labels) == 0 {
		return errors.New("at least one class label is required")
	}
	return onnx.ValidateGPUConfig(c.GPU)
}
