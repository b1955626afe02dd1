package features

import (
	"fmt"
	"image"
)

// DescriptorType distinguishes bit-string descriptors from real-valued ones.
type DescriptorType int

const (
	// Binary descriptors are packed bit strings compared by Hamming distance.
	Binary DescriptorType = iota
	// Float descriptors are real vectors compared by Euclidean distance.
	Float
)

func (t DescriptorType) String() string {
	switch t {
	case Binary:
		return "binary"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("DescriptorType(%d)", int(t))
	}
}

// Descriptors holds one descriptor per keypoint of a frame. Only the slice
// matching Type is populated.
type Descriptors struct {
	Type   DescriptorType
	Binary [][]byte
	Float  [][]float64
}

// Len returns the number of descriptors in the set.
func (d Descriptors) Len() int {
	if d.Type == Float {
		return len(d.Float)
	}
	return len(d.Binary)
}

// Match is a claimed correspondence between keypoint QueryIdx of the source
// frame and keypoint TrainIdx of the reference frame.
type Match struct {
	QueryIdx int     `json:"query_idx"`
	TrainIdx int     `json:"train_idx"`
	Distance float64 `json:"distance"`
}

// Frame is one ingested image together with everything computed for it.
type Frame struct {
	// Index is the position of the frame in the processed sequence.
	Index int

	// Name identifies the source of the image, usually its file path.
	Name string

	// Image is the grayscale image the features were computed on.
	Image *image.Gray

	Keypoints   []Keypoint
	Descriptors Descriptors

	// Matches are computed against the frame ingested immediately before
	// this one; nil for the first frame.
	Matches []Match
}

// ResponseMap is a dense row-major grid of per-pixel response scores.
type ResponseMap struct {
	Width  int
	Height int
	Values []float64
}

// NewResponseMap allocates a zeroed width×height response map.
func NewResponseMap(width, height int) *ResponseMap {
	return &ResponseMap{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

// At returns the score at column x, row y.
func (m *ResponseMap) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Set stores the score at column x, row y.
func (m *ResponseMap) Set(x, y int, v float64) {
	m.Values[y*m.Width+x] = v
}
