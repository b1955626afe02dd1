package matching

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ironsheep/feature-bench/internal/features"
)

// KDTreeMatcher indexes the reference set in a k-d tree and answers
// nearest-neighbor queries against it with Euclidean distance.
type KDTreeMatcher struct{}

func (m *KDTreeMatcher) Name() string { return string(FLANN) }

// Match returns the nearest reference descriptor for each source
// descriptor.
func (m *KDTreeMatcher) Match(src, ref features.Descriptors) ([]features.Match, error) {
	knn, err := m.KnnMatch(src, ref, 1)
	if err != nil {
		return nil, err
	}
	return BestOnly(knn), nil
}

// KnnMatch returns up to k candidates per source descriptor, nearest first.
func (m *KDTreeMatcher) KnnMatch(src, ref features.Descriptors, k int) ([][]features.Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("invalid k %d", k)
	}
	if src.Type != ref.Type {
		return nil, fmt.Errorf("%w: %v source against %v reference", ErrDescriptorMismatch, src.Type, ref.Type)
	}
	if err := sameWidth(src, ref); err != nil {
		return nil, err
	}

	out := make([][]features.Match, src.Len())
	if ref.Len() == 0 {
		for q := range out {
			out[q] = []features.Match{}
		}
		return out, nil
	}

	train := asFloat(ref)
	if len(train[0]) == 0 {
		return nil, fmt.Errorf("%w: zero-length descriptors cannot be indexed", ErrDescriptorMismatch)
	}
	points := make(indexedPoints, len(train))
	for i, v := range train {
		points[i] = indexedPoint{vec: v, idx: i}
	}
	tree := kdtree.New(points, false)

	for q, v := range asFloat(src) {
		keep := kdtree.NewNKeeper(k)
		tree.NearestSet(keep, indexedPoint{vec: v, idx: -1})

		candidates := make([]features.Match, 0, k)
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue
			}
			candidates = append(candidates, features.Match{
				QueryIdx: q,
				TrainIdx: c.Comparable.(indexedPoint).idx,
				Distance: math.Sqrt(c.Dist),
			})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Distance != candidates[j].Distance {
				return candidates[i].Distance < candidates[j].Distance
			}
			return candidates[i].TrainIdx < candidates[j].TrainIdx
		})
		out[q] = candidates
	}
	return out, nil
}

// indexedPoint is a descriptor vector that remembers its position in the
// reference set after the tree reorders it.
type indexedPoint struct {
	vec kdtree.Point
	idx int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.vec[d] - c.(indexedPoint).vec[d]
}

func (p indexedPoint) Dims() int { return len(p.vec) }

// Distance returns the squared Euclidean distance.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.vec.Distance(c.(indexedPoint).vec)
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return indexedPlane{points: p, dim: d}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// indexedPlane sorts points along one dimension for median selection.
type indexedPlane struct {
	points indexedPoints
	dim    kdtree.Dim
}

func (p indexedPlane) Len() int { return len(p.points) }
func (p indexedPlane) Less(i, j int) bool {
	return p.points[i].vec[p.dim] < p.points[j].vec[p.dim]
}
func (p indexedPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p indexedPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p indexedPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
