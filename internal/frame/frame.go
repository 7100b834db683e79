// Package frame holds the immutable pixel buffer that flows through one
// inspection cycle.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrInvalidFrame is returned for empty, malformed or inconsistent pixel input.
var ErrInvalidFrame = errors.New("invalid frame")

// Channels is the fixed channel count of every Frame.
const Channels = 3

// ChannelOrder records how the three interleaved channels are laid out.
type ChannelOrder int

const (
	OrderBGR ChannelOrder = iota
	OrderRGB
)

func (o ChannelOrder) String() string {
	switch o {
	case OrderBGR:
		return "bgr"
	case OrderRGB:
		return "rgb"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseChannelOrder maps "bgr"/"rgb" to a ChannelOrder.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "bgr", "BGR":
		return OrderBGR, nil
	case "rgb", "RGB", "":
		return OrderRGB, nil
	default:
		return OrderRGB, fmt.Errorf("unknown channel order %q", s)
	}
}

// Frame is an H x W x 3 uint8 raster. The pixel slice is never modified after
// construction; callers must not write to the slice returned by Pix.
type Frame struct {
	width  int
	height int
	order  ChannelOrder
	pix    []byte
}

// New wraps an interleaved pixel buffer. The buffer is copied.
func New(width, height int, order ChannelOrder, pix []byte) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, width, height)
	}
	if order != OrderBGR && order != OrderRGB {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrame, order)
	}
	want := width * height * Channels
	if len(pix) != want {
		return nil, fmt.Errorf("%w: pixel buffer has %d bytes, want %d", ErrInvalidFrame, len(pix), want)
	}
	buf := make([]byte, want)
	copy(buf, pix)
	return &Frame{width: width, height: height, order: order, pix: buf}, nil
}

// FromImage converts any decoded image into a Frame with the requested order.
func FromImage(img image.Image, order ChannelOrder) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, w, h)
	}
	if order != OrderBGR && order != OrderRGB {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrame, order)
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	pix := make([]byte, w*h*Channels)
	for y := range h {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		dst := pix[y*w*Channels : (y+1)*w*Channels]
		for x := range w {
			r, g, bl := src[x*4], src[x*4+1], src[x*4+2]
			if order == OrderBGR {
				r, bl = bl, r
			}
			dst[x*3], dst[x*3+1], dst[x*3+2] = r, g, bl
		}
	}
	return &Frame{width: w, height: h, order: order, pix: pix}, nil
}

func (f *Frame) Width() int { return f.width }
func (f *Frame) Height() int { return f.height }
func (f *Frame) Order() ChannelOrder { return f.order }
func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.width, f.height) }

// Pix exposes the interleaved buffer in the frame's channel order.
func (f *Frame) Pix() []byte { return f.pix }

// Validate reports ErrInvalidFrame for a nil or zero-sized frame.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.width <= 0 || f.height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.width, f.height)
	}
	if len(f.pix) != f.width*f.height*Channels {
		return fmt.Errorf("%w: pixel buffer length %d", ErrInvalidFrame, len(f.pix))
	}
	return nil
}

// RGBAt returns the pixel at (x, y) as red, green, blue regardless of order.
func (f *Frame) RGBAt(x, y int) (uint8, uint8, uint8) {
	i := (y*f.width + x) * Channels
	a, b, c := f.pix[i], f.pix[i+1], f.pix[i+2]
	if f.order == OrderBGR {
		return c, b, a
	}
	return a, b, c
}

// ToNRGBA renders the whole frame as a true-RGB image.
func (f *Frame) ToNRGBA() *image.NRGBA {
	return f.cropNRGBA(f.Bounds())
}

// Crop returns the intersection of r with the frame as a new true-RGB image.
// An empty intersection yields nil.
func (f *Frame) Crop(r image.Rectangle) *image.NRGBA {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return nil
	}
	return f.cropNRGBA(r)
}

// Gray returns the luminance of the region r (clamped), or nil when empty.
func (f *Frame) Gray(r image.Rectangle) *image.Gray {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return nil
	}
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := out.Pix[(y-r.Min.Y)*out.Stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			red, g, b := f.RGBAt(x, y)
			row[x-r.Min.X] = color.GrayModel.Convert(color.RGBA{R: red, G: g, B: b, A: 0xff}).(color.Gray).Y
		}
	}
	return out
}

func (f *Frame) cropNRGBA(r image.Rectangle) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := out.Pix[(y-r.Min.Y)*out.Stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			red, g, b := f.RGBAt(x, y)
			o := (x - r.Min.X) * 4
			row[o], row[o+1], row[o+2], row[o+3] = red, g, b, 0xff
		}
	}
	return out
}
