// Package imgproc provides the deterministic grayscale transforms shared by
// barcode recovery and text extraction.
package imgproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// ToGray converts any image to a zero-origin *image.Gray.
func ToGray(img image.Image) *image.Gray {
	if img == nil {
		return nil
	}
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	return fromNRGBA(imaging.Grayscale(img))
}

// fromNRGBA keeps the red channel of an NRGBA image already known to be gray.
func fromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		srow := src.Pix[y*src.Stride:]
		drow := out.Pix[y*out.Stride:]
		for x := range b.Dx() {
			drow[x] = srow[x*4]
		}
	}
	return out
}

// Clone returns a deep copy of g.
func Clone(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	w := g.Rect.Dx()
	for y := range g.Rect.Dy() {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}
