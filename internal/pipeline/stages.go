package pipeline

import (
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/feature-bench/internal/detection"
	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/matching"
)

// Cap modes reported in metrics.Record.CapMode.
const (
	CapByResponse = "response"
	CapByOrder    = "order"
)

// detect runs the configured detector. Response maps are reduced with a
// Suppressor configured from the mapper.
func (p *Pipeline) detect(img *image.Gray) ([]features.Keypoint, error) {
	switch d := p.detector.(type) {
	case detection.ResponseMapper:
		m, err := d.Respond(img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name(), err)
		}
		b := img.Bounds()
		if m == nil || m.Width != b.Dx() || m.Height != b.Dy() || len(m.Values) != m.Width*m.Height {
			return nil, fmt.Errorf("%s returned a response map that does not cover the %dx%d image", d.Name(), b.Dx(), b.Dy())
		}
		s := detection.Suppressor{
			Threshold:  d.Threshold(),
			Aperture:   d.Aperture(),
			MaxOverlap: p.cfg.MaxOverlap,
		}
		return s.Suppress(m), nil

	case detection.Detector:
		kps, err := d.Detect(img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name(), err)
		}
		return kps, nil

	default:
		return nil, fmt.Errorf("detector %s has no detection method", p.detector.Name())
	}
}

func (p *Pipeline) populatesResponse() bool {
	if d, ok := p.detector.(detection.Detector); ok {
		if _, mapper := p.detector.(detection.ResponseMapper); !mapper {
			return d.PopulatesResponse()
		}
	}
	return true
}

// filterRegion returns the keypoints inside roi, in their original order.
func filterRegion(kps []features.Keypoint, roi features.Rect) []features.Keypoint {
	out := make([]features.Keypoint, 0, len(kps))
	for _, kp := range kps {
		if roi.Contains(kp) {
			out = append(out, kp)
		}
	}
	return out
}

// capKeypoints keeps the first limit keypoints, ranked by descending
// response (ties in original order) when byResponse is set, in original
// order otherwise.
func capKeypoints(kps []features.Keypoint, limit int, byResponse bool) []features.Keypoint {
	if len(kps) <= limit {
		return kps
	}
	out := make([]features.Keypoint, len(kps))
	copy(out, kps)
	if byResponse {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Response > out[j].Response
		})
	}
	return out[:limit]
}

type matchResult struct {
	matches []features.Match
	before  int
}

// match matches prev's descriptors (source) against curr's (reference).
func (p *Pipeline) match(prev, curr *features.Frame) (matchResult, error) {
	src, ref := prev.Descriptors, curr.Descriptors

	var res matchResult
	switch p.cfg.Selector {
	case SelectNN:
		ms, err := p.matcher.Match(src, ref)
		if err != nil {
			return res, fmt.Errorf("%s: %w", p.matcher.Name(), err)
		}
		if err := checkMatches(ms, src.Len(), ref.Len()); err != nil {
			return res, fmt.Errorf("%s: %w", p.matcher.Name(), err)
		}
		res.before = len(ms)
		res.matches = ms

	case SelectKNN:
		knn, err := p.matcher.KnnMatch(src, ref, 2)
		if err != nil {
			return res, fmt.Errorf("%s: %w", p.matcher.Name(), err)
		}
		if len(knn) != src.Len() {
			return res, fmt.Errorf("%s returned %d candidate lists for %d descriptors", p.matcher.Name(), len(knn), src.Len())
		}
		want := min(2, ref.Len())
		for i, candidates := range knn {
			if len(candidates) < want {
				return res, fmt.Errorf("%s returned %d candidates for descriptor %d, want %d", p.matcher.Name(), len(candidates), i, want)
			}
			if err := checkMatches(candidates, src.Len(), ref.Len()); err != nil {
				return res, fmt.Errorf("%s: %w", p.matcher.Name(), err)
			}
		}
		filtered := matching.RatioFilter{Threshold: p.cfg.RatioThreshold}.Filter(knn)
		res.before = filtered.Before
		res.matches = filtered.Matches
	}

	res.matches = oneToOne(res.matches)
	return res, nil
}

// checkMatches verifies that every match indexes into both descriptor sets.
func checkMatches(ms []features.Match, nSrc, nRef int) error {
	for _, m := range ms {
		if m.QueryIdx < 0 || m.QueryIdx >= nSrc || m.TrainIdx < 0 || m.TrainIdx >= nRef {
			return fmt.Errorf("match %d->%d out of range for %d source and %d reference descriptors",
				m.QueryIdx, m.TrainIdx, nSrc, nRef)
		}
	}
	return nil
}

// oneToOne keeps at most one match per source and per reference keypoint.
// A source keypoint keeps its first match. When several sources claim the
// same reference keypoint the smallest distance wins, the earliest source
// on ties. Surviving matches stay in input order.
func oneToOne(ms []features.Match) []features.Match {
	seenQuery := make(map[int]bool, len(ms))
	winner := make(map[int]int, len(ms)) // TrainIdx -> position in ms
	keep := make([]bool, len(ms))
	for i, m := range ms {
		if seenQuery[m.QueryIdx] {
			continue
		}
		seenQuery[m.QueryIdx] = true
		if w, ok := winner[m.TrainIdx]; ok {
			if m.Distance >= ms[w].Distance {
				continue
			}
			keep[w] = false
		}
		winner[m.TrainIdx] = i
		keep[i] = true
	}

	out := make([]features.Match, 0, len(winner))
	for i, m := range ms {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}
