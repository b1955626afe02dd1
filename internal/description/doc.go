// Package description computes local appearance descriptors for keypoints.
//
// Descriptors are index-aligned with the keypoints they were computed for:
// Describe never drops, adds or reorders keypoints, and an empty keypoint
// set yields an empty descriptor set rather than an error. Keypoints close
// to the border are described with clamped (replicated) edge pixels.
//
// # Extractors
//
//   - BRIEF: 256-bit binary intensity-comparison descriptor, compared by
//     Hamming distance
//   - HOG: 128-value gradient orientation histogram, compared by Euclidean
//     distance
//
// Both Gaussian-smooth the image before sampling it.
package description
