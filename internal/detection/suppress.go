package detection

import "github.com/ironsheep/feature-bench/internal/features"

// DefaultMaxOverlap treats any overlap at all between two keypoints as a
// collision.
const DefaultMaxOverlap = 0.0

// Suppressor reduces a dense response map to a sparse keypoint set in which
// overlapping detections have been merged in favor of the strongest.
//
// # Algorithm
//
//  1. Scan the map row-major (ascending row, then column).
//  2. Every cell whose score exceeds Threshold becomes a candidate keypoint
//     at that cell, with Size = Aperture and Response = score.
//  3. The candidate is compared against every keypoint already in the
//     result. Each result keypoint whose overlap with the candidate exceeds
//     MaxOverlap is a collision; colliding keypoints with a strictly lower
//     response are overwritten in place by the candidate.
//  4. A candidate that collided with anything is never appended, even if it
//     replaced nothing. Otherwise it is appended.
//
// The result is the set of local maxima after greedy raster-order
// resolution, not a globally optimal suppression. The scan order and the
// in-place overwrite are part of the contract: a later, stronger neighbor
// replaces an earlier, weaker one at the earlier one's slot, and if it
// collides with several weaker keypoints it overwrites all of them.
//
// The worst case is O(W·H·|result|); no spatial index is used.
type Suppressor struct {
	Threshold  float64
	Aperture   float64
	MaxOverlap float64
}

// Suppress runs the suppression over m. A map with no cell above Threshold
// yields an empty, non-nil result. MaxOverlap >= 1 disables suppression,
// since no two keypoints can overlap by more than 100%.
func (s Suppressor) Suppress(m *features.ResponseMap) []features.Keypoint {
	result := make([]features.Keypoint, 0)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			score := m.At(x, y)
			if !(score > s.Threshold) {
				continue
			}

			candidate := features.Keypoint{
				X:        float64(x),
				Y:        float64(y),
				Size:     s.Aperture,
				Angle:    -1,
				Response: score,
				ClassID:  0,
			}

			collided := false
			for i := range result {
				if features.Overlap(candidate, result[i]) > s.MaxOverlap {
					collided = true
					if candidate.Response > result[i].Response {
						result[i] = candidate
					}
				}
			}
			if !collided {
				result = append(result, candidate)
			}
		}
	}
	return result
}
