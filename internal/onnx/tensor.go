package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a row-major float32 buffer with its shape. Image inputs use
// NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps a single CHW image as a [1, C, H, W] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("image tensor: nil data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("image tensor: %d values for %dx%dx%d", len(data), c, h, w)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW checks for a rank 4 shape with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("want NCHW, got rank %d", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("NCHW dimension %d is %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks that the data fills the NCHW shape exactly.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	if got, want := len(t.Data), t.Size(); got != want {
		return fmt.Errorf("tensor %v holds %d values, want %d", t.Shape, got, want)
	}
	return nil
}

// Size is the element count implied by the shape; 0 for an empty shape.
func (t Tensor) Size() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}
