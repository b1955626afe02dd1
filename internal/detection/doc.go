// Package detection provides keypoint detectors and the response-map
// suppressor used to turn dense corner scores into discrete keypoints.
//
// # Backends
//
// Detectors are selected by name through a registry populated at init time:
//
//   - HARRIS: Harris corner response map (a ResponseMapper)
//   - SHITOMASI: minimum-eigenvalue "good features to track" (a Detector
//     that leaves Response unset)
//   - FAST: FAST-9/16 segment test with non-maximum suppression
//
// Building with -tags gocv adds OpenCV-backed FAST_CV, BRISK, ORB, AKAZE
// and SIFT detectors.
//
// # Two Kinds of Detector
//
// A Detector returns keypoints directly. A ResponseMapper returns a dense
// per-pixel score map; callers reduce it with a Suppressor configured from
// the mapper's Threshold and Aperture:
//
//	mapper := backend.(detection.ResponseMapper)
//	m, err := mapper.Respond(gray)
//	if err != nil {
//	    return err
//	}
//	kps := detection.Suppressor{
//	    Threshold:  mapper.Threshold(),
//	    Aperture:   mapper.Aperture(),
//	    MaxOverlap: detection.DefaultMaxOverlap,
//	}.Suppress(m)
//
// # Determinism
//
// Every backend is deterministic for a fixed image and configuration.
// Output order is part of that contract: the suppressor and FAST emit in
// raster order, Shi-Tomasi in descending quality order.
//
// # Coordinate System
//
// Keypoint coordinates are pixel centers with (0, 0) at the top-left:
//   - X increases rightward
//   - Y increases downward
package detection
