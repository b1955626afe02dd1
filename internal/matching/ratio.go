package matching

import "github.com/ironsheep/feature-bench/internal/features"

// DefaultRatio is the distance-ratio threshold used when none is
// configured.
const DefaultRatio = 0.8

// RatioFilter keeps a nearest-neighbor candidate only when it is clearly
// better than the runner-up.
type RatioFilter struct {
	// Threshold is the maximum best/second-best distance ratio, exclusive.
	// Values in (0, 1] are meaningful; lower is stricter.
	Threshold float64
}

// FilterResult is the outcome of a ratio test.
type FilterResult struct {
	// Matches are the kept best candidates in input order.
	Matches []features.Match

	// Before is the number of candidate lists examined.
	Before int

	// After is len(Matches).
	After int

	// Short counts candidate lists with fewer than two entries.
	Short int
}

// Removed returns how many candidates the filter rejected.
func (r FilterResult) Removed() int {
	return r.Before - r.After
}

// Filter applies the ratio test to each k-nearest-neighbor list. List i
// contributes knn[i][0] iff it has at least two entries and
// knn[i][0].Distance < Threshold*knn[i][1].Distance.
//
// Filter never reorders, rewrites or invents matches.
func (f RatioFilter) Filter(knn [][]features.Match) FilterResult {
	res := FilterResult{
		Matches: make([]features.Match, 0, len(knn)),
		Before:  len(knn),
	}
	for _, candidates := range knn {
		if len(candidates) < 2 {
			res.Short++
			continue
		}
		if candidates[0].Distance < f.Threshold*candidates[1].Distance {
			res.Matches = append(res.Matches, candidates[0])
		}
	}
	res.After = len(res.Matches)
	return res
}

// BestOnly keeps the best candidate of every non-empty list, in input
// order.
func BestOnly(knn [][]features.Match) []features.Match {
	out := make([]features.Match, 0, len(knn))
	for _, candidates := range knn {
		if len(candidates) > 0 {
			out = append(out, candidates[0])
		}
	}
	return out
}
