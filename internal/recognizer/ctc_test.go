package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTCCollapse(t *testing.T) {
	tests := []struct {
		name      string
		indices   []int
		probs     []float64
		wantIdx   []int
		wantProbs []float64
	}{
		{
			name:      "repeats merge, blank separates",
			indices:   []int{4, 4, 0, 4, 7, 7},
			probs:     []float64{.6, .9, .2, .8, .5, .7},
			wantIdx:   []int{4, 4, 7},
			wantProbs: []float64{.6, .8, .5},
		},
		{
			name:      "only blanks",
			indices:   []int{0, 0, 0},
			probs:     []float64{.9, .9, .9},
			wantIdx:   []int{},
			wantProbs: []float64{},
		},
		{
			name:      "leading and trailing blanks",
			indices:   []int{0, 2, 3, 0},
			probs:     []float64{.1, .4, .3, .1},
			wantIdx:   []int{2, 3},
			wantProbs: []float64{.4, .3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, probs := CTCCollapse(tt.indices, tt.probs, 0)
			assert.ElementsMatch(t, tt.wantIdx, idx)
			assert.Equal(t, len(tt.wantIdx), len(probs))
			for i := range tt.wantProbs {
				assert.InDelta(t, tt.wantProbs[i], probs[i], 1e-9)
			}
		})
	}
}

// lotLogits encodes "1 1 _ 3" over four steps and five classes.
var lotLogits = [][]float32{
	{0.0, 5.0, 0.0, 0.0, 0.0},
	{0.0, 4.0, 0.0, 0.0, 0.0},
	{6.0, 0.0, 0.0, 0.0, 0.0},
	{0.0, 0.0, 0.0, 3.0, 0.0},
}

func flattenTC(rows [][]float32) []float32 {
	var out []float32
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func flattenCT(rows [][]float32) []float32 {
	var out []float32
	for c := range rows[0] {
		for t := range rows {
			out = append(out, rows[t][c])
		}
	}
	return out
}

func TestDecodeCTCGreedyLayouts(t *testing.T) {
	shape := []int64{1, 4, 5}
	for name, tc := range map[string]struct {
		logits       []float32
		shape        []int64
		classesFirst bool
	}{
		"time major":    {flattenTC(lotLogits), shape, false},
		"classes first": {flattenCT(lotLogits), []int64{1, 5, 4}, true},
		"trailing unit": {flattenTC(lotLogits), []int64{1, 4, 5, 1}, false},
	} {
		t.Run(name, func(t *testing.T) {
			dec := DecodeCTCGreedy(tc.logits, tc.shape, 0, tc.classesFirst)
			require.Len(t, dec, 1)
			assert.Equal(t, []int{1, 1, 0, 3}, dec[0].Indices)
			assert.Equal(t, []int{1, 3}, dec[0].Collapsed)
			require.Len(t, dec[0].CollapsedProb, 2)
			for _, p := range dec[0].CollapsedProb {
				assert.Greater(t, p, 0.5)
				assert.LessOrEqual(t, p, 1.0)
			}
		})
	}
}

func TestDecodeCTCGreedyBatch(t *testing.T) {
	second := [][]float32{
		{0.0, 0.0, 7.0, 0.0, 0.0},
		{7.0, 0.0, 0.0, 0.0, 0.0},
		{0.0, 0.0, 7.0, 0.0, 0.0},
		{0.0, 0.0, 0.0, 0.0, 7.0},
	}
	logits := append(flattenTC(lotLogits), flattenTC(second)...)
	dec := DecodeCTCGreedy(logits, []int64{2, 4, 5}, 0, false)
	require.Len(t, dec, 2)
	assert.Equal(t, []int{1, 3}, dec[0].Collapsed)
	assert.Equal(t, []int{2, 2, 4}, dec[1].Collapsed)
}

func TestDecodeCTCGreedyRejectsMalformed(t *testing.T) {
	assert.Nil(t, DecodeCTCGreedy([]float32{1, 2}, []int64{1, 2}, 0, false))
	assert.Nil(t, DecodeCTCGreedy(make([]float32, 10), []int64{1, 4, 5}, 0, false))
	assert.Nil(t, DecodeCTCGreedy(nil, []int64{0, 4, 5}, 0, false))
}

func TestClassesFirst(t *testing.T) {
	const classes = 37
	assert.False(t, ClassesFirst([]int64{1, 80, classes}, classes))
	assert.True(t, ClassesFirst([]int64{1, classes, 80}, classes))
	assert.True(t, ClassesFirst([]int64{1, classes, 80, 1}, classes))
	assert.False(t, ClassesFirst([]int64{classes, 80}, classes))
}

func TestSequenceConfidence(t *testing.T) {
	assert.Zero(t, SequenceConfidence(nil))
	assert.InDelta(t, 0.75, SequenceConfidence([]float64{0.5, 1.0}), 1e-9)
}
