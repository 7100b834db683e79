package detector

import (
	"sort"

	"github.com/MeKo-Tech/linecheck/internal/utils"
)

// Candidate is a thresholded detector row awaiting suppression. Index is the
// original row index and breaks score ties.
type Candidate struct {
	Index   int
	ClassID int
	Score   float64
	Box     utils.Box
}

// NonMaxSuppression performs greedy per-class suppression. Boxes of different
// classes never suppress each other. The result is ordered by ascending class
// id, then descending score, then ascending index.
func NonMaxSuppression(cands []Candidate, iouThreshold float64) []Candidate {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})

	keep := make([]Candidate, 0, len(sorted))
	classStart := 0
	for _, c := range sorted {
		if len(keep) > 0 && keep[len(keep)-1].ClassID != c.ClassID {
			classStart = len(keep)
		}
		suppressed := false
		for _, k := range keep[classStart:] {
			if utils.IoU(k.Box, c.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			keep = append(keep, c)
		}
	}
	return keep
}
