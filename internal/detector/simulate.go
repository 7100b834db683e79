package detector

import (
	"image"
)

// placeholder detections emitted when no inference runtime is available.
var simulatedDetections = []Detection{
	{ClassID: ClassFlavor, Confidence: 0.99, Box: Rect{X: 100, Y: 100, W: 200, H: 100}},
	{ClassID: ClassDate, Confidence: 0.95, Box: Rect{X: 300, Y: 400, W: 150, H: 40}},
}

// simulate returns the fixed placeholders clipped to the frame. Placeholders
// entirely outside the frame are omitted.
func simulate(labels Labels, bounds image.Rectangle) []Detection {
	out := make([]Detection, 0, len(simulatedDetections))
	for _, d := range simulatedDetections {
		r := d.Box.Rectangle().Intersect(bounds)
		if r.Empty() {
			continue
		}
		d.Box = RectFrom(r)
		d.ClassName = labels.Name(d.ClassID)
		out = append(out, d)
	}
	return out
}
