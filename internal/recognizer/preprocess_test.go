package recognizer

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayLine(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestResizeForRecognition(t *testing.T) {
	tests := []struct {
		name          string
		w, h          int
		maxW, pad     int
		wantW         int
	}{
		{"keeps aspect", 100, 24, 0, 0, 200},
		{"pads to multiple", 50, 24, 0, 8, 104},
		{"clamps width", 400, 24, 320, 8, 320},
		{"tiny input", 1, 480, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ResizeForRecognition(grayLine(tt.w, tt.h, 200), 48, tt.maxW, tt.pad)
			require.NoError(t, err)
			assert.Equal(t, 48, out.Bounds().Dy())
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
		})
	}
}

func TestResizeForRecognition_Errors(t *testing.T) {
	_, err := ResizeForRecognition(nil, 48, 0, 0)
	require.Error(t, err)
	_, err = ResizeForRecognition(grayLine(10, 10, 0), 0, 0, 0)
	require.Error(t, err)
	_, err = ResizeForRecognition(image.NewGray(image.Rect(0, 0, 0, 5)), 48, 0, 0)
	require.Error(t, err)
}

func TestNormalizeForRecognition(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})

	ten, err := NormalizeForRecognition(img)
	require.NoError(t, err)
	defer mempool.PutFloat32(ten.Data)

	assert.Equal(t, []int64{1, 3, 1, 2}, ten.Shape)
	assert.InDeltaSlice(t, []float32{1, -1, -1, 1, 1, -1}, ten.Data, 1e-6)
}
