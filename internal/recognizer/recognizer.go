// Package recognizer is a CTC text-line recogniser running on ONNX Runtime.
// It implements ocr.Engine and is recognition-only by construction: the
// whole input image is treated as a single text line.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/linecheck/internal/mempool"
	"github.com/MeKo-Tech/linecheck/internal/models"
	"github.com/MeKo-Tech/linecheck/internal/ocr"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath        string         // Path to ONNX recognition model
	DictPath         string         // Path to character dictionary
	LibraryPath      string         // Optional ONNX Runtime shared library
	ImageHeight      int            // Input height; replaced by the model's when fixed
	MaxWidth         int            // Width clamp after resize (0 = no clamp)
	PadWidthMultiple int            // If >0, right-pad width to this multiple
	NumThreads       int            // Number of CPU threads (0 for default)
	GPU              onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:        models.GetRecognitionModelPath(""),
		DictPath:         models.GetDictionaryPath("", models.Dictionary),
		ImageHeight:      48,
		MaxWidth:         960,
		PadWidthMultiple: 8,
		GPU:              onnx.DefaultGPUConfig(),
	}
}

// Recognizer decodes text lines. It is safe for concurrent use when the
// session is.
type Recognizer struct {
	config  Config
	session Session
	charset *Charset
}

var _ ocr.Engine = (*Recognizer)(nil)

// NewRecognizer loads the dictionary and the ONNX model.
func NewRecognizer(config Config) (*Recognizer, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	charset, err := LoadCharset(config.DictPath)
	if err != nil {
		return nil, err
	}
	session, err := newONNXSession(config)
	if err != nil {
		return nil, err
	}
	if session.height > 0 {
		config.ImageHeight = session.height
	}
	slog.Debug("Recognizer initialized",
		"model_path", config.ModelPath,
		"dict_size", charset.Size(),
		"image_height", config.ImageHeight)
	return &Recognizer{config: config, session: session, charset: charset}, nil
}

// NewWithSession wraps an existing session and charset.
func NewWithSession(config Config, session Session, charset *Charset) (*Recognizer, error) {
	if session == nil {
		return nil, errors.New("session cannot be nil")
	}
	if charset == nil {
		return nil, errors.New("charset cannot be nil")
	}
	if config.ImageHeight <= 0 {
		config.ImageHeight = 48
	}
	return &Recognizer{config: config, session: session, charset: charset}, nil
}

// Recognize implements ocr.Engine. It returns at most one fragment covering
// the whole image, or none when nothing was decoded.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, _ ocr.Options) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resized, err := ResizeForRecognition(img, r.config.ImageHeight, r.config.MaxWidth, r.config.PadWidthMultiple)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	input, err := NormalizeForRecognition(resized)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	out, err := r.session.Run(input)
	mempool.PutFloat32(input.Data)
	if err != nil {
		return nil, err
	}

	classes := r.charset.Classes()
	decoded := DecodeCTCGreedy(out.Data, out.Shape, Blank, ClassesFirst(out.Shape, classes))
	if len(decoded) == 0 {
		return nil, fmt.Errorf("unexpected output shape %v", out.Shape)
	}
	seq := decoded[0]
	text := ocr.Clean(r.charset.Decode(seq.Collapsed), ocr.DefaultCleanOptions())
	if text == "" {
		return nil, nil
	}
	return []ocr.Fragment{{
		Text:       text,
		Confidence: SequenceConfidence(seq.CollapsedProb),
		Box:        img.Bounds(),
	}}, nil
}

// Config returns a copy of the recognizer's configuration.
func (r *Recognizer) Config() Config { return r.config }

// Charset returns the loaded character set.
func (r *Recognizer) Charset() *Charset { return r.charset }

// Close releases the session.
func (r *Recognizer) Close() error { return r.session.Close() }
