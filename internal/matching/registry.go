package matching

import (
	"errors"
	"fmt"

	"github.com/ironsheep/feature-bench/internal/features"
)

var (
	// ErrUnknownKind is returned by New for an unsupported matcher kind or
	// distance mode.
	ErrUnknownKind = errors.New("unknown matcher kind")

	// ErrDescriptorMismatch is returned when two descriptor sets cannot be
	// compared: different types, different lengths, or a type the
	// distance mode does not support.
	ErrDescriptorMismatch = errors.New("descriptor mismatch")
)

// Kind selects the search strategy.
type Kind string

const (
	BruteForce Kind = "MAT_BF"
	FLANN      Kind = "MAT_FLANN"
)

// DistanceMode selects the descriptor distance for brute-force matching.
type DistanceMode string

const (
	// DistanceBinary is Hamming distance over packed bit strings.
	DistanceBinary DistanceMode = "DES_BINARY"
	// DistanceHOG is Euclidean distance over descriptor vectors.
	DistanceHOG DistanceMode = "DES_HOG"
)

// Matcher searches a reference descriptor set for the neighbors of each
// source descriptor.
type Matcher interface {
	Name() string

	// Match returns the single nearest reference descriptor for each
	// source descriptor. The result is empty when either set is empty.
	Match(src, ref features.Descriptors) ([]features.Match, error)

	// KnnMatch returns, for each source descriptor in order, up to k
	// reference candidates sorted nearest first. Lists are shorter than
	// k when the reference set holds fewer than k descriptors.
	KnnMatch(src, ref features.Descriptors, k int) ([][]features.Match, error)
}

// New builds a matcher of the given kind.
func New(kind Kind, distance DistanceMode) (Matcher, error) {
	switch distance {
	case DistanceBinary, DistanceHOG:
	default:
		return nil, fmt.Errorf("%w: distance %q", ErrUnknownKind, distance)
	}

	switch kind {
	case BruteForce:
		return &BFMatcher{Distance: distance}, nil
	case FLANN:
		return &KDTreeMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
