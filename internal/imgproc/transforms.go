package imgproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// Upscale resizes g by factor using Catmull-Rom interpolation.
func Upscale(g *image.Gray, factor float64) *image.Gray {
	b := g.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	return fromNRGBA(imaging.Resize(g, w, h, imaging.CatmullRom))
}

// Sharpen applies an unsharp mask with the given sigma.
func Sharpen(g *image.Gray, sigma float64) *image.Gray {
	return fromNRGBA(imaging.Sharpen(g, sigma))
}

// Gamma applies gamma correction. Values above 1 brighten, below 1 darken.
func Gamma(g *image.Gray, gamma float64) *image.Gray {
	return fromNRGBA(imaging.AdjustGamma(g, gamma))
}

// Threshold maps pixels >= cut to white and the rest to black.
func Threshold(g *image.Gray, cut uint8) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		if v >= cut {
			out.Pix[i] = 0xff
		}
	}
	return out
}
