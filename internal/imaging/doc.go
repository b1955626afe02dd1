// Package imaging loads frame images and prepares them for feature work.
//
// This package provides the image side of the benchmark: decoding frames
// from disk, reducing them to 8-bit grayscale, Gaussian smoothing, and the
// float Plane type with Sobel derivatives that the detectors and descriptors
// are built on. All operations use a coordinate system where (0,0) is the
// top-left pixel, X increases rightward, and Y increases downward.
//
// # Grayscale Conversion
//
// Two reductions are available:
//   - GrayLuma: ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B)
//   - GrayLightness: perceptual CIE L* scaled to 0-255
//
// Images that are already grayscale pass through unchanged.
//
// # Error Handling
//
// Load failures (missing file, unsupported or corrupt data) are returned
// wrapping ErrUnreadable so the pipeline can report them as resource errors
// rather than backend failures.
//
// # Border Handling
//
// Plane.At clamps out-of-range coordinates to the nearest edge sample, so
// convolution near the border replicates edge values.
package imaging
