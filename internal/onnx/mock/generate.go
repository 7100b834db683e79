// Package mock builds synthetic network outputs for tests that must not
// depend on a real model.
package mock

// Candidate is one detector row expressed in detector-space centre form.
type Candidate struct {
	CX, CY, W, H float32
	ClassID      int
	Score        float32
}

// Output is a raw detector output with its shape.
type Output struct {
	Data  []float32
	Shape []int64
}

// NewDetectorOutput lays candidates out as [1, N, 4+C], or as the
// channel-major [1, 4+C, N] when channelMajor is set. Scores for classes other
// than ClassID are filled with low.
func NewDetectorOutput(cands []Candidate, classes int, channelMajor bool, low float32) Output {
	attrs := 4 + classes
	n := len(cands)
	data := make([]float32, n*attrs)
	set := func(row, col int, v float32) {
		if channelMajor {
			data[col*n+row] = v
		} else {
			data[row*attrs+col] = v
		}
	}
	for i, c := range cands {
		set(i, 0, c.CX)
		set(i, 1, c.CY)
		set(i, 2, c.W)
		set(i, 3, c.H)
		for cls := range classes {
			v := low
			if cls == c.ClassID {
				v = c.Score
			}
			set(i, 4+cls, v)
		}
	}
	if channelMajor {
		return Output{Data: data, Shape: []int64{1, int64(attrs), int64(n)}}
	}
	return Output{Data: data, Shape: []int64{1, int64(n), int64(attrs)}}
}

// Logits represents synthetic recognition network output as a flat array with shape.
type Logits struct {
	Data  []float32
	Shape []int64
}

// NewGreedyPathLogits constructs [1, T, C] logits such that greedy argmax
// yields the given indices. Use 0 for the CTC blank.
func NewGreedyPathLogits(indices []int, classes int, high, low float32) Logits {
	if classes <= 0 || len(indices) == 0 {
		return Logits{Data: nil, Shape: []int64{}}
	}
	t := len(indices)
	data := make([]float32, t*classes)
	for ti, c := range indices {
		for cls := range classes {
			v := low
			if cls == c {
				v = high
			}
			data[ti*classes+cls] = v
		}
	}
	return Logits{Data: data, Shape: []int64{1, int64(t), int64(classes)}}
}
