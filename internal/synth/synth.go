// Package synth renders artificial production frames: a label with printed
// text regions and a QR or Code128 symbol, optionally degraded the way worn
// print heads degrade real labels.
package synth

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Symbology selects the barcode type drawn into a scene.
type Symbology string

const (
	SymbologyQR      Symbology = "qr"
	SymbologyCode128 Symbology = "code128"
)

// DefaultBarcodeContent is the reference Code128 payload used on test labels.
const DefaultBarcodeContent = "6401010137"

// Text is a line of text drawn with its top-left corner at At.
type Text struct {
	Content string
	At      image.Point
	Scale   int // integer magnification of the 7x13 bitmap font
}

// Code is a barcode placed with its top-left corner at At.
type Code struct {
	Content   string
	Symbology Symbology
	At        image.Point
	Width     int
	Height    int // ignored for QR, which is square
}

// Scene describes one synthetic frame.
type Scene struct {
	Width      int
	Height     int
	Background color.Color
	Texts      []Text
	Codes      []Code
}

// DefaultScene lays text where the placeholder detector reports flavor and
// date and puts a QR code carrying content in the top-right corner.
func DefaultScene(content string) Scene {
	return Scene{
		Width:      640,
		Height:     480,
		Background: color.Gray{Y: 235},
		Texts: []Text{
			{Content: "MANGO", At: image.Pt(120, 130), Scale: 3},
			{Content: "2026-10-17", At: image.Pt(305, 405), Scale: 2},
		},
		Codes: []Code{
			{Content: content, Symbology: SymbologyQR, At: image.Pt(450, 30), Width: 160},
		},
	}
}

// Render draws the scene.
func Render(s Scene) (*image.NRGBA, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid scene size %dx%d", s.Width, s.Height)
	}
	bg := s.Background
	if bg == nil {
		bg = color.White
	}
	canvas := imaging.New(s.Width, s.Height, bg)

	for _, t := range s.Texts {
		canvas = imaging.Overlay(canvas, TextImage(t.Content, max(1, t.Scale)), t.At, 1.0)
	}
	for _, c := range s.Codes {
		img, err := Barcode(c)
		if err != nil {
			return nil, err
		}
		canvas = imaging.Paste(canvas, img, c.At)
	}
	return canvas, nil
}

// Barcode renders a single symbol.
func Barcode(c Code) (image.Image, error) {
	if c.Content == "" {
		return nil, errors.New("barcode content cannot be empty")
	}
	switch c.Symbology {
	case SymbologyQR, "":
		return QR(c.Content, max(c.Width, 64))
	case SymbologyCode128:
		return Code128(c.Content, max(c.Width, 120), max(c.Height, 40))
	default:
		return nil, fmt.Errorf("unsupported symbology %q", c.Symbology)
	}
}

// QR renders a QR code of side size pixels including the quiet zone.
func QR(content string, size int) (image.Image, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return q.Image(size), nil
}

// Code128 renders a Code128 symbol with a white quiet zone.
func Code128(content string, width, height int) (image.Image, error) {
	hints := map[gozxing.EncodeHintType]interface{}{gozxing.EncodeHintType_MARGIN: 10}
	m, err := oned.NewCode128Writer().Encode(content, gozxing.BarcodeFormat_CODE_128, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("code128 encode: %w", err)
	}
	out := image.NewGray(m.Bounds())
	draw.Draw(out, out.Bounds(), m, m.Bounds().Min, draw.Src)
	return out, nil
}

// TextImage renders black text on a transparent background, magnified by scale.
func TextImage(s string, scale int) *image.NRGBA {
	face := basicfont.Face7x13
	w := max(1, font.MeasureString(face, s).Ceil())
	h := face.Metrics().Height.Ceil()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
	if scale <= 1 {
		return img
	}
	return imaging.Resize(img, w*scale, h*scale, imaging.NearestNeighbor)
}
