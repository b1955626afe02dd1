// Package features defines the data model shared by every stage of the
// benchmark: keypoints, descriptors, matches, dense response maps and the
// per-image Frame record that ties them together.
//
// # Coordinate System
//
// Keypoint locations are subpixel and use the standard image convention:
//   - Origin (0, 0) at the top-left pixel
//   - X increases rightward, Y increases downward
//   - A keypoint at integer (x, y) sits on the pixel at column x, row y
//
// # Index Alignment
//
// Descriptors are index-aligned with the keypoints of the same frame:
// Descriptors row i describes Keypoints[i]. A Match refers to keypoints by
// index, QueryIdx into the source (older) frame and TrainIdx into the
// reference (newer) frame.
//
// # Immutability
//
// Keypoints are plain values. Stages that narrow or reorder a keypoint set
// build a new slice rather than editing the detector's output in place;
// the one exception is the response-map suppressor, which overwrites
// entries of its own accumulating result.
package features
