package detector

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/mempool"
	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLetterboxProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("geometry fits target for any aspect ratio", prop.ForAll(
		func(w, h, target int) bool {
			scale, nw, nh, left, top := geometry(w, h, target)
			if scale <= 0 || nw < 1 || nh < 1 {
				return false
			}
			if left < 0 || top < 0 || left+nw > target || top+nh > target {
				return false
			}
			// one side fills the target up to truncation
			return nw >= target-1 || nh >= target-1
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 5000),
		gen.IntRange(32, 1280),
	))

	properties.Property("full canvas restores to full frame", prop.ForAll(
		func(w, h, target int) bool {
			scale, _, _, left, top := geometry(w, h, target)
			tr := Transform{Scale: scale, PadX: float64(left), PadY: float64(top), SrcWidth: w, SrcHeight: h, Target: target}
			got := tr.Restore(utils.NewBox(0, 0, float64(target), float64(target)))
			return got.MinX == 0 && got.MinY == 0 &&
				math.Abs(got.MaxX-float64(w)) < 1e-6 && math.Abs(got.MaxY-float64(h)) < 1e-6
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 5000),
		gen.IntRange(32, 1280),
	))

	properties.Property("content box restores within one source pixel", prop.ForAll(
		func(w, h int) bool {
			scale, nw, nh, left, top := geometry(w, h, 640)
			tr := Transform{Scale: scale, PadX: float64(left), PadY: float64(top), SrcWidth: w, SrcHeight: h, Target: 640}
			got := tr.Restore(utils.NewBox(float64(left), float64(top), float64(left+nw), float64(top+nh)))
			tol := 1/scale + 1e-6
			return got.MinX == 0 && got.MinY == 0 &&
				float64(w)-got.MaxX <= tol && float64(h)-got.MaxY <= tol
		},
		gen.IntRange(1, 3000),
		gen.IntRange(1, 3000),
	))

	properties.Property("tensor is always target x target", prop.ForAll(
		func(w, h int) bool {
			f, err := frame.New(w, h, frame.OrderBGR, make([]byte, w*h*3))
			if err != nil {
				return false
			}
			tensor, _, err := Letterbox(f, 64, frame.OrderRGB)
			if err != nil {
				return false
			}
			defer mempool.PutFloat32(tensor.Data)
			return tensor.Shape[2] == 64 && tensor.Shape[3] == 64 && len(tensor.Data) == 3*64*64
		},
		gen.IntRange(1, 300),
		gen.IntRange(1, 300),
	))

	properties.TestingRun(t)
}
