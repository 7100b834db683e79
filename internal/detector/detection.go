package detector

import (
	"image"
)

// Well-known class ids.
const (
	ClassFlavor = 0
	ClassDate   = 1
)

// UnknownClass is the name given to ids missing from the label table.
const UnknownClass = "unknown"

// Labels maps class ids to names.
type Labels map[int]string

// DefaultLabels returns the production label table.
func DefaultLabels() Labels {
	return Labels{ClassFlavor: "flavor", ClassDate: "date"}
}

// Name returns the label for id, or UnknownClass.
func (l Labels) Name(id int) string {
	if n, ok := l[id]; ok {
		return n
	}
	return UnknownClass
}

// Rect is an integer box in frame coordinates.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// RectFrom converts an image.Rectangle.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rectangle converts back to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Detection is one labelled box. It is never mutated after creation.
type Detection struct {
	ClassID    int     `json:"class_id" yaml:"class_id"`
	ClassName  string  `json:"class_name" yaml:"class_name"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Box        Rect    `json:"box" yaml:"box"`
}
