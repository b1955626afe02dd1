// Package pipeline carries camera frames one at a time through detection,
// description and frame-to-frame matching, recording timing and counts for
// every frame.
//
// # Stages
//
// Each image passes through the following stages, strictly in order:
//
//  1. Ingest: load, convert to grayscale, push onto the frame buffer
//  2. Detect: run the detector; dense response maps go through a
//     detection.Suppressor
//  3. Region: keep keypoints inside the configured rectangle, if any
//  4. Cap: keep at most MaxKeypoints keypoints, if enabled
//  5. Describe: compute one descriptor per surviving keypoint
//  6. Match: match the previous frame's descriptors against the current
//     frame's, once a previous frame exists
//  7. Record: append a metrics.Record
//
// The first frame has nothing to match against; its record carries a
// match count of zero.
//
// # Errors
//
// Any stage failure is fatal for the run. It is reported as a *StageError
// naming the frame and stage, whose Kind is ErrResource (the image could not
// be loaded or converted) or ErrBackendInvocation (a detector, extractor or
// matcher failed or returned malformed output). Records of frames completed
// before the failure stay valid and are returned by Run and Records.
//
// # Usage
//
//	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	records, err := p.Run(paths)
//	if err != nil {
//	    // records holds every frame completed before the failure
//	}
//
// A Pipeline is not safe for concurrent use.
package pipeline
