package matching

import (
	"fmt"
	"math/bits"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/feature-bench/internal/features"
)

// BFMatcher compares every source descriptor with every reference
// descriptor. Ties are broken by the lower reference index.
type BFMatcher struct {
	Distance DistanceMode
}

func (m *BFMatcher) Name() string { return string(BruteForce) }

// Match returns the nearest reference descriptor for each source
// descriptor.
func (m *BFMatcher) Match(src, ref features.Descriptors) ([]features.Match, error) {
	knn, err := m.KnnMatch(src, ref, 1)
	if err != nil {
		return nil, err
	}
	return BestOnly(knn), nil
}

// KnnMatch returns up to k candidates per source descriptor, nearest first.
func (m *BFMatcher) KnnMatch(src, ref features.Descriptors, k int) ([][]features.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("invalid k %d", k)
	}
	dist, err := m.distanceFunc(src, ref)
	if err != nil {
		return nil, err
	}

	out := make([][]features.Match, src.Len())
	candidates := make([]features.Match, ref.Len())
	for q := range out {
		for t := range candidates {
			candidates[t] = features.Match{QueryIdx: q, TrainIdx: t, Distance: dist(q, t)}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Distance < candidates[j].Distance
		})
		n := min(k, len(candidates))
		out[q] = append([]features.Match(nil), candidates[:n]...)
	}
	return out, nil
}

// distanceFunc validates the pair of sets and returns the distance
// between source q and reference t.
func (m *BFMatcher) distanceFunc(src, ref features.Descriptors) (func(q, t int) float64, error) {
	if src.Type != ref.Type {
		return nil, fmt.Errorf("%w: %v source against %v reference", ErrDescriptorMismatch, src.Type, ref.Type)
	}

	switch m.Distance {
	case DistanceBinary:
		if src.Type != features.Binary {
			return nil, fmt.Errorf("%w: Hamming distance needs binary descriptors, got %v", ErrDescriptorMismatch, src.Type)
		}
		if err := sameWidth(src, ref); err != nil {
			return nil, err
		}
		return func(q, t int) float64 {
			return float64(hamming(src.Binary[q], ref.Binary[t]))
		}, nil

	case DistanceHOG:
		if err := sameWidth(src, ref); err != nil {
			return nil, err
		}
		a, b := asFloat(src), asFloat(ref)
		return func(q, t int) float64 {
			return floats.Distance(a[q], b[t], 2)
		}, nil

	default:
		return nil, fmt.Errorf("%w: distance %q", ErrUnknownKind, m.Distance)
	}
}

// hamming counts the differing bits of two equal-length bit strings.
func hamming(a, b []byte) int {
	n := 0
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return n
}

// sameWidth checks that every descriptor in both sets has the same length.
func sameWidth(sets ...features.Descriptors) error {
	width := -1
	for _, d := range sets {
		for i := 0; i < d.Len(); i++ {
			var n int
			if d.Type == features.Binary {
				n = len(d.Binary[i])
			} else {
				n = len(d.Float[i])
			}
			if width < 0 {
				width = n
			} else if n != width {
				return fmt.Errorf("%w: descriptor lengths %d and %d", ErrDescriptorMismatch, width, n)
			}
		}
	}
	return nil
}

// asFloat returns d as float vectors, widening binary descriptors to one
// value per byte.
func asFloat(d features.Descriptors) [][]float64 {
	if d.Type == features.Float {
		return d.Float
	}
	out := make([][]float64, len(d.Binary))
	for i, desc := range d.Binary {
		v := make([]float64, len(desc))
		for j, b := range desc {
			v[j] = float64(b)
		}
		out[i] = v
	}
	return out
}
