package recognizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/linecheck/internal/mempool"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/disintegration/imaging"
)

// ResizeForRecognition scales an image to a fixed target height while preserving
// aspect ratio. If padToMultiple > 0, the width is padded with black pixels to the
// next multiple. If maxWidth > 0, the width is clamped to maxWidth.
func ResizeForRecognition(img image.Image, targetHeight, maxWidth, padToMultiple int) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if targetHeight <= 0 {
		return nil, fmt.Errorf("invalid targetHeight: %d", targetHeight)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("input image is empty")
	}

	newW := max(1, int(float64(w)*float64(targetHeight)/float64(h)))
	if maxWidth > 0 && newW > maxWidth {
		newW = maxWidth
	}
	resized := imaging.Resize(img, newW, targetHeight, imaging.Lanczos)

	outW := newW
	if padToMultiple > 0 {
		if rem := newW % padToMultiple; rem != 0 {
			outW = newW + (padToMultiple - rem)
		}
	}
	if outW == newW {
		return resized, nil
	}
	canvas := imaging.New(outW, targetHeight, color.Black)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), nil
}

// NormalizeForRecognition converts an image to a [1,3,H,W] tensor with values
// in [-1,1]. Gray input is replicated across the three channels. The tensor
// data comes from mempool; return it with mempool.PutFloat32.
func NormalizeForRecognition(img *image.NRGBA) (onnx.Tensor, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return onnx.Tensor{}, errors.New("input image is empty")
	}
	plane := w * h
	data := mempool.GetFloat32(3 * plane)
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := range w {
			i := y*w + x
			p := row[4*x : 4*x+3]
			data[i] = float32(p[0])/127.5 - 1
			data[plane+i] = float32(p[1])/127.5 - 1
			data[2*plane+i] = float32(p[2])/127.5 - 1
		}
	}
	t, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		mempool.PutFloat32(data)
		return onnx.Tensor{}, err
	}
	return t, nil
}
