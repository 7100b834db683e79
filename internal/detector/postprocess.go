package detector

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/linecheck/internal/utils"
)

// RawOutput is a detector output of N candidate rows with 4+C attributes
// each. ChannelMajor is set for the [1, 4+C, N] layout.
type RawOutput struct {
	Data         []float32
	Candidates   int
	Attributes   int
	ChannelMajor bool
}

// NewRawOutput interprets data with the given shape. Accepted shapes are
// [N,4+C], [1,N,4+C] and [1,4+C,N]. numClasses disambiguates the layout; when
// it is zero the larger of the two trailing dimensions is taken as N.
func NewRawOutput(data []float32, shape []int64, numClasses int) (RawOutput, error) {
	var a, b int
	switch len(shape) {
	case 2:
		a, b = int(shape[0]), int(shape[1])
	case 3:
		if shape[0] != 1 {
			return RawOutput{}, fmt.Errorf("batch dimension must be 1, got %d", shape[0])
		}
		a, b = int(shape[1]), int(shape[2])
	default:
		return RawOutput{}, fmt.Errorf("unsupported output rank %d", len(shape))
	}
	if a < 0 || b < 0 {
		return RawOutput{}, fmt.Errorf("negative output dimension in %v", shape)
	}
	if len(data) != a*b {
		return RawOutput{}, fmt.Errorf("output length %d does not match shape %v", len(data), shape)
	}

	out := RawOutput{Data: data}
	attrs := 4 + numClasses
	switch {
	case len(shape) == 2:
		out.Candidates, out.Attributes = a, b
	case numClasses > 0 && b == attrs:
		out.Candidates, out.Attributes = a, b
	case numClasses > 0 && a == attrs:
		out.Candidates, out.Attributes, out.ChannelMajor = b, a, true
	case numClasses > 0:
		return RawOutput{}, fmt.Errorf("shape %v has no dimension of %d attributes", shape, attrs)
	case a < b:
		out.Candidates, out.Attributes, out.ChannelMajor = b, a, true
	default:
		out.Candidates, out.Attributes = a, b
	}
	if out.Candidates > 0 && out.Attributes < 5 {
		return RawOutput{}, fmt.Errorf("need at least 5 attributes per row, got %d", out.Attributes)
	}
	return out, nil
}

// At returns attribute j of candidate row i.
func (r RawOutput) At(i, j int) float32 {
	if r.ChannelMajor {
		return r.Data[j*r.Candidates+i]
	}
	return r.Data[i*r.Attributes+j]
}

// Classes returns the number of class score columns.
func (r RawOutput) Classes() int { return max(0, r.Attributes-4) }

// Postprocess decodes raw rows into frame-space detections: class argmax,
// confidence filter, letterbox inversion, per-class NMS. Boxes are snapped
// to the integer frame rectangles they are emitted as before suppression,
// so the IoU bound holds for the emitted boxes. Rows whose box collapses to
// zero area after clamping are dropped.
func Postprocess(raw RawOutput, tr Transform, labels Labels, confThreshold, iouThreshold float64) []Detection {
	classes := raw.Classes()
	if raw.Candidates == 0 || classes == 0 {
		return []Detection{}
	}

	bounds := tr.frameBounds()
	cands := make([]Candidate, 0, 16)
	for i := range raw.Candidates {
		best, cls := float32(math.Inf(-1)), -1
		for c := range classes {
			if s := raw.At(i, 4+c); s > best {
				best, cls = s, c
			}
		}
		score := float64(best)
		if cls < 0 || !(score >= confThreshold) {
			continue
		}
		box := tr.Restore(utils.BoxFromCenter(
			float64(raw.At(i, 0)), float64(raw.At(i, 1)),
			float64(raw.At(i, 2)), float64(raw.At(i, 3)),
		))
		rect := box.ToRect(bounds)
		if !(box.Area() > 0) || rect.Empty() {
			slog.Debug("Dropping degenerate box", "row", i, "class_id", cls)
			continue
		}
		cands = append(cands, Candidate{Index: i, ClassID: cls, Score: score, Box: utils.BoxFromRect(rect)})
	}

	kept := NonMaxSuppression(cands, iouThreshold)
	out := make([]Detection, 0, len(kept))
	for _, k := range kept {
		out = append(out, Detection{
			ClassID:    k.ClassID,
			ClassName:  labels.Name(k.ClassID),
			Confidence: k.Score,
			Box:        RectFrom(k.Box.ToRect(bounds)),
		})
	}
	return out
}
