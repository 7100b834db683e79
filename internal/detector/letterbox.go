package detector

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/mempool"
	"github.com/MeKo-Tech/linecheck/internal/onnx"
	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/disintegration/imaging"
)

// PadValue is the neutral gray used to fill the letterbox border.
const PadValue = 114

// Transform records how a frame was mapped into detector space. It is only
// valid for the frame it was produced from.
type Transform struct {
	Scale     float64
	PadX      float64
	PadY      float64
	SrcWidth  int
	SrcHeight int
	Target    int
}

// Restore maps a detector-space box back to frame space, clamped to the frame.
func (t Transform) Restore(b utils.Box) utils.Box {
	out := utils.NewBox(
		(b.MinX-t.PadX)/t.Scale,
		(b.MinY-t.PadY)/t.Scale,
		(b.MaxX-t.PadX)/t.Scale,
		(b.MaxY-t.PadY)/t.Scale,
	)
	return out.Clamp(float64(t.SrcWidth), float64(t.SrcHeight))
}

// Project maps a frame-space box into detector space.
func (t Transform) Project(b utils.Box) utils.Box {
	return utils.NewBox(
		b.MinX*t.Scale+t.PadX,
		b.MinY*t.Scale+t.PadY,
		b.MaxX*t.Scale+t.PadX,
		b.MaxY*t.Scale+t.PadY,
	)
}

// Content is the detector-space rectangle covered by resized frame pixels.
func (t Transform) Content() utils.Box {
	return t.Project(utils.NewBox(0, 0, float64(t.SrcWidth), float64(t.SrcHeight)))
}

// geometry computes scale, resized size and the top-left offset for a frame.
func geometry(w, h, target int) (float64, int, int, int, int) {
	scale := math.Min(float64(target)/float64(h), float64(target)/float64(w))
	nw := min(target, max(1, int(float64(w)*scale)))
	nh := min(target, max(1, int(float64(h)*scale)))
	dw := float64(target-nw) / 2
	dh := float64(target-nh) / 2
	left := int(math.Round(dw - 0.1))
	top := int(math.Round(dh - 0.1))
	return scale, nw, nh, left, top
}

// Letterbox resizes f into a target x target canvas preserving aspect ratio,
// pads with PadValue and returns a [1,3,target,target] tensor in [0,1] with
// channels in the requested order. The tensor data is drawn from mempool and
// may be returned with mempool.PutFloat32 once inference is done.
func Letterbox(f *frame.Frame, target int, order frame.ChannelOrder) (onnx.Tensor, Transform, error) {
	if err := f.Validate(); err != nil {
		return onnx.Tensor{}, Transform{}, err
	}
	if target <= 0 {
		return onnx.Tensor{}, Transform{}, fmt.Errorf("target size must be positive, got %d", target)
	}

	w, h := f.Width(), f.Height()
	scale, nw, nh, left, top := geometry(w, h, target)

	var resized image.Image = f.ToNRGBA()
	if nw != w || nh != h {
		resized = imaging.Resize(resized, nw, nh, imaging.Linear)
	}
	canvas := imaging.New(target, target, color.NRGBA{R: PadValue, G: PadValue, B: PadValue, A: 0xff})
	canvas = imaging.Paste(canvas, resized, image.Pt(left, top))

	plane := target * target
	data := mempool.GetFloat32(3 * plane)
	const inv255 = float32(1.0 / 255.0)
	for y := range target {
		row := canvas.Pix[y*canvas.Stride:]
		for x := range target {
			r := float32(row[x*4]) * inv255
			g := float32(row[x*4+1]) * inv255
			b := float32(row[x*4+2]) * inv255
			if order == frame.OrderBGR {
				r, b = b, r
			}
			i := y*target + x
			data[i] = r
			data[plane+i] = g
			data[2*plane+i] = b
		}
	}

	tensor, err := onnx.NewImageTensor(data, 3, target, target)
	if err != nil {
		mempool.PutFloat32(data)
		return onnx.Tensor{}, Transform{}, err
	}
	return tensor, Transform{
		Scale:     scale,
		PadX:      float64(left),
		PadY:      float64(top),
		SrcWidth:  w,
		SrcHeight: h,
		Target:    target,
	}, nil
}

func (t Transform) frameBounds() image.Rectangle {
	return image.Rect(0, 0, t.SrcWidth, t.SrcHeight)
}
