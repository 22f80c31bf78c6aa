package tracking

import "github.com/andresmejia3/facetrail/internal/types"

const (
	// NewTrack marks a detection that continues no existing track.
	NewTrack = -1
	// Rejected marks a detection with a degenerate box; it is neither associated nor scored.
	Rejected = -2
)

// Associate classifies each detection box as the continuation of a track (its
// index in tracks), NewTrack or Rejected.
//
// Detections are visited in order and each one takes the first track, in pool
// order, that passes types.Overlap and has not been claimed earlier in the same
// call. There is no global optimal assignment.
func Associate(detections, tracks []types.Rect) []int {
	out := make([]int, len(detections))
	claimed := make([]bool, len(tracks))

	for i, det := range detections {
		if det.Degenerate() {
			out[i] = Rejected
			continue
		}
		out[i] = NewTrack
		for j, tr := range tracks {
			if claimed[j] {
				continue
			}
			if types.Overlap(det, tr) {
				claimed[j] = true
				out[i] = j
				break
			}
		}
	}
	return out
}
