package detector

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Engine is the inference runtime boundary: a fixed-shape NCHW tensor in, a
// raw detection tensor out.
type Engine interface {
	Infer(input onnx.Tensor) (onnx.Tensor, error)
	InputSize() int
	Close() error
}

// onnxEngine runs a single-input single-output model through ONNX Runtime.
type onnxEngine struct {
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputInfo onnxruntime_go.InputOutputInfo
	inputSize  int
	mu         sync.RWMutex
}

func newONNXEngine(cfg Config) (*onnxEngine, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}
	if err := onnx.Initialize(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := validateModelInfo(cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	opts, err := onnx.NewSessionOptions(onnx.SessionConfig{NumThreads: cfg.NumThreads, GPU: cfg.GPU})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	size := cfg.InputSize
	if d := inputInfo.Dimensions; d[2] > 0 && d[2] == d[3] {
		size = int(d[2])
	}
	return &onnxEngine{session: session, inputInfo: inputInfo, outputInfo: outputInfo, inputSize: size}, nil
}

// validateModelInfo gets and validates model input/output information.
func validateModelInfo(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	var none onnxruntime_go.InputOutputInfo
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return none, none, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return none, none, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return none, none, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return none, none, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

func (e *onnxEngine) InputSize() int { return e.inputSize }

func (e *onnxEngine) Infer(input onnx.Tensor) (onnx.Tensor, error) {
	if err := onnx.VerifyImageTensor(input); err != nil {
		return onnx.Tensor{}, fmt.Errorf("invalid tensor: %w", err)
	}

	e.mu.RLock()
	session := e.session
	e.mu.RUnlock()
	if session == nil {
		return onnx.Tensor{}, errors.New("detector session is closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(input.Shape...), input.Data)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			slog.Warn("Error destroying input tensor", "error", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return onnx.Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Warn("Error destroying output tensor", "error", err)
		}
	}()

	floatTensor, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return onnx.Tensor{}, errors.New("output tensor is not float32")
	}
	data := floatTensor.GetData()
	out := onnx.Tensor{Data: make([]float32, len(data)), Shape: floatTensor.GetShape()}
	copy(out.Data, data)
	return out, nil
}

// Warmup runs forward passes on a blank canvas to reduce first-cycle latency.
func (e *onnxEngine) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	size := e.inputSize
	input, err := onnx.NewImageTensor(make([]float32, 3*size*size), 3, size, size)
	if err != nil {
		return err
	}
	for range iterations {
		if _, err := e.Infer(input); err != nil {
			return err
		}
	}
	return nil
}

func (e *onnxEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			slog.Warn("Failed to destroy detector session", "error", err)
		}
		e.session = nil
	}
	return nil
}
