package metrics

import (
	"time"

	"github.com/google/uuid"
)

// Record is the measurement of one processed frame.
type Record struct {
	// Frame is the zero-based position of the frame in the run.
	Frame int    `json:"frame"`
	Name  string `json:"name"`

	DetectionTime   time.Duration `json:"detection_ns"`
	DescriptionTime time.Duration `json:"description_ns"`
	MatchTime       time.Duration `json:"match_ns"`

	// Detected is the number of keypoints the detector returned before
	// region filtering and capping.
	Detected int `json:"detected"`

	// Keypoints is the number of keypoints kept and described.
	Keypoints int `json:"keypoints"`

	// MatchesBeforeFilter is the number of candidate correspondences
	// before any ratio test; zero for the first frame.
	MatchesBeforeFilter int `json:"matches_before_filter"`

	// MatchCount is the number of accepted matches against the previous
	// frame; zero for the first frame.
	MatchCount int `json:"match_count"`

	// CapMode is "response" or "order" when the keypoint cap was applied,
	// empty otherwise.
	CapMode string `json:"cap_mode,omitempty"`
}

// Run identifies one benchmark run and the backends it used.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Detector   string    `json:"detector"`
	Descriptor string    `json:"descriptor"`
	Matcher    string    `json:"matcher"`
	Selector   string    `json:"selector"`
	Started    time.Time `json:"started"`
}

// NewRun returns a Run with a fresh random ID.
func NewRun(detector, descriptor, matcher, selector string, started time.Time) Run {
	return Run{
		ID:         uuid.New(),
		Detector:   detector,
		Descriptor: descriptor,
		Matcher:    matcher,
		Selector:   selector,
		Started:    started,
	}
}

// Stem returns the base name used for files exported for this run,
// "<detector>_<descriptor>".
func (r Run) Stem() string {
	return r.Detector + "_" + r.Descriptor
}

// Summary aggregates the records of a run.
type Summary struct {
	Frames         int           `json:"frames"`
	TotalKeypoints int           `json:"total_keypoints"`
	TotalMatches   int           `json:"total_matches"`
	MeanDetection  time.Duration `json:"mean_detection_ns"`
	MeanDescribe   time.Duration `json:"mean_description_ns"`

	// MeanMatch averages over frames that had a previous frame to match
	// against.
	MeanMatch time.Duration `json:"mean_match_ns"`
}

// Summarize computes totals and per-frame means over records.
func Summarize(records []Record) Summary {
	s := Summary{Frames: len(records)}
	if len(records) == 0 {
		return s
	}

	var detect, describe, match time.Duration
	matched := 0
	for _, r := range records {
		s.TotalKeypoints += r.Keypoints
		s.TotalMatches += r.MatchCount
		detect += r.DetectionTime
		describe += r.DescriptionTime
		if r.Frame > 0 {
			match += r.MatchTime
			matched++
		}
	}
	n := time.Duration(len(records))
	s.MeanDetection = detect / n
	s.MeanDescribe = describe / n
	if matched > 0 {
		s.MeanMatch = match / time.Duration(matched)
	}
	return s
}
