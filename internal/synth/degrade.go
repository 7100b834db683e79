package synth

import (
	"image"

	"github.com/MeKo-Tech/linecheck/internal/imgproc"
	"github.com/disintegration/imaging"
)

// Degradation describes how to damage a rendered frame.
type Degradation struct {
	InkBleed int     `json:"ink_bleed,omitempty"` // dark-region growth in pixels
	Blur     float64 `json:"blur,omitempty"`      // gaussian sigma
	Contrast float64 `json:"contrast,omitempty"`  // percentage passed to imaging.AdjustContrast, negative fades
}

// Degrade applies d to img and returns a new image.
func Degrade(img image.Image, d Degradation) *image.NRGBA {
	out := imaging.Clone(img)
	if d.InkBleed > 0 {
		g := imgproc.ThickenDark(imgproc.ToGray(out), 2*d.InkBleed+1, 1)
		out = imaging.Clone(g)
	}
	if d.Blur > 0 {
		out = imaging.Blur(out, d.Blur)
	}
	if d.Contrast != 0 {
		out = imaging.AdjustContrast(out, d.Contrast)
	}
	return out
}
