package recognizer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Session runs the recognition network on a [1,3,H,W] tensor and returns
// the logits.
type Session interface {
	Run(input onnx.Tensor) (onnx.Tensor, error)
	Close() error
}

type onnxSession struct {
	session *onnxruntime_go.DynamicAdvancedSession
	height  int // model input height, 0 when dynamic
	mu      sync.RWMutex
}

func newONNXSession(cfg Config) (*onnxSession, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}
	if err := onnx.Initialize(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
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
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	height := 0
	if h := inputs[0].Dimensions[2]; h > 0 {
		height = int(h)
	}
	return &onnxSession{session: session, height: height}, nil
}

func (s *onnxSession) Run(input onnx.Tensor) (onnx.Tensor, error) {
	if err := onnx.VerifyImageTensor(input); err != nil {
		return onnx.Tensor{}, fmt.Errorf("invalid tensor: %w", err)
	}
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return onnx.Tensor{}, errors.New("recognizer session is closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(input.Shape...), input.Data)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return onnx.Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	floatTensor, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return onnx.Tensor{}, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	data := floatTensor.GetData()
	out := onnx.Tensor{Data: make([]float32, len(data)), Shape: floatTensor.GetShape()}
	copy(out.Data, data)
	return out, nil
}

func (s *onnxSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			slog.Warn("Error destroying recognizer session", "error", err)
		}
		s.session = nil
	}
	return nil
}
