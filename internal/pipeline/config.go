package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/matching"
)

// ErrInvalidConfig is returned by Config.Validate and New for an unusable
// configuration.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Selector chooses how match candidates are reduced to matches.
type Selector string

const (
	// SelectNN keeps the single nearest candidate per source descriptor.
	SelectNN Selector = "SEL_NN"

	// SelectKNN requests two candidates per source descriptor and applies
	// the distance-ratio test.
	SelectKNN Selector = "SEL_KNN"
)

// Config selects the backends and tunes the stages of a Pipeline.
type Config struct {
	Detector   string
	Descriptor string
	Matcher    matching.Kind
	Distance   matching.DistanceMode
	Selector   Selector

	// RegionOfInterest, when set, restricts keypoints to the rectangle.
	RegionOfInterest *features.Rect

	// MaxKeypoints caps the keypoints kept per frame; 0 disables the cap.
	MaxKeypoints int

	// RatioThreshold is the distance-ratio threshold for SelectKNN.
	RatioThreshold float64

	// MaxOverlap is the overlap tolerated between suppressed keypoints.
	MaxOverlap float64

	// BufferCapacity is the number of frames kept in the sliding window.
	BufferCapacity int
}

// DefaultConfig returns a configuration running FAST keypoints with BRIEF
// descriptors, brute-force Hamming matching and the ratio test.
func DefaultConfig() Config {
	return Config{
		Detector:       "FAST",
		Descriptor:     "BRIEF",
		Matcher:        matching.BruteForce,
		Distance:       matching.DistanceBinary,
		Selector:       SelectKNN,
		RatioThreshold: matching.DefaultRatio,
		MaxOverlap:     0,
		BufferCapacity: 2,
	}
}

// Validate checks the configuration for values no stage can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Detector == "" {
		errs = append(errs, errors.New("detector kind is required"))
	}
	if c.Descriptor == "" {
		errs = append(errs, errors.New("descriptor kind is required"))
	}
	switch c.Selector {
	case SelectNN:
	case SelectKNN:
		if c.RatioThreshold <= 0 {
			errs = append(errs, fmt.Errorf("ratio threshold %v must be positive", c.RatioThreshold))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown selector %q", c.Selector))
	}
	if c.BufferCapacity < 1 {
		errs = append(errs, fmt.Errorf("buffer capacity %d must be at least 1", c.BufferCapacity))
	}
	if c.MaxKeypoints < 0 {
		errs = append(errs, fmt.Errorf("max keypoints %d must not be negative", c.MaxKeypoints))
	}
	if c.MaxOverlap < 0 {
		errs = append(errs, fmt.Errorf("max overlap %v must not be negative", c.MaxOverlap))
	}
	if c.RegionOfInterest != nil && c.RegionOfInterest.Empty() {
		errs = append(errs, fmt.Errorf("region of interest %+v is empty", *c.RegionOfInterest))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
