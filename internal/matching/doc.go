// Package matching finds correspondences between the descriptor sets of two
// frames and filters ambiguous ones.
//
// # Matchers
//
// Matchers are selected by kind and distance mode through New:
//
//   - MAT_BF: exhaustive search. DES_BINARY compares packed bit strings by
//     Hamming distance, DES_HOG compares vectors by Euclidean distance
//     (binary descriptors are then treated as byte vectors).
//   - MAT_FLANN: nearest-neighbor search over a k-d tree built on the
//     reference set, always Euclidean. Binary descriptors are converted
//     to one float per byte before indexing.
//
// Every matcher searches from the source (query) set into the reference
// (train) set: Match returns at most one Match per source descriptor and
// KnnMatch one candidate list per source descriptor, nearest first.
//
// # Ratio Test
//
// RatioFilter implements the nearest-neighbor distance-ratio test over k=2
// candidate lists:
//
//	knn, err := m.KnnMatch(prev, curr, 2)
//	if err != nil {
//	    return err
//	}
//	res := matching.RatioFilter{Threshold: matching.DefaultRatio}.Filter(knn)
//	log.Printf("kept %d of %d", res.After, res.Before)
//
// A candidate is kept only when its best distance is strictly less than
// Threshold times its second-best distance. Lists with fewer than two
// entries cannot be tested and are dropped.
package matching
