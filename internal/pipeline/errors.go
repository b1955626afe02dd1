package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendInvocation marks a detector, extractor or matcher that
	// failed or returned output of the wrong shape.
	ErrBackendInvocation = errors.New("backend invocation failed")

	// ErrResource marks an image that could not be loaded or converted.
	ErrResource = errors.New("resource unavailable")
)

// Stage names a step of frame processing.
type Stage string

const (
	StageIngest   Stage = "ingest"
	StageDetect   Stage = "detect"
	StageDescribe Stage = "describe"
	StageMatch    Stage = "match"
)

// StageError is a fatal failure while processing one frame.
//
// errors.Is matches both the Kind sentinel and anything in the Err chain:
//
//	var se *pipeline.StageError
//	if errors.As(err, &se) && errors.Is(err, pipeline.ErrResource) {
//	    log.Printf("frame %d could not be loaded", se.Frame)
//	}
type StageError struct {
	Frame int
	Stage Stage

	// Kind is ErrBackendInvocation or ErrResource.
	Kind error
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %d: %s stage: %v: %v", e.Frame, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func backendError(frame int, stage Stage, err error) error {
	return &StageError{Frame: frame, Stage: stage, Kind: ErrBackendInvocation, Err: err}
}

func resourceError(frame int, err error) error {
	return &StageError{Frame: frame, Stage: StageIngest, Kind: ErrResource, Err: err}
}
