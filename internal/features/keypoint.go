package features

import "math"

// NoClass marks a keypoint that carries no class or group tag.
const NoClass = -1

// Keypoint is a located, scored point of interest in an image.
type Keypoint struct {
	// X and Y are the subpixel location of the keypoint center.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Size is the diameter of the keypoint's support region in pixels.
	Size float64 `json:"size"`

	// Angle is the dominant orientation in degrees, or -1 when the detector
	// does not compute one.
	Angle float64 `json:"angle"`

	// Response is the detector's strength score. Detectors that do not
	// score their output leave it at zero.
	Response float64 `json:"response"`

	// Octave is the pyramid layer the keypoint was found on.
	Octave int `json:"octave"`

	// ClassID is an optional group tag; NoClass when unused.
	ClassID int `json:"class_id"`
}

// NewKeypoint returns a keypoint at (x, y) with the given support diameter,
// no orientation and no class tag.
func NewKeypoint(x, y, size float64) Keypoint {
	return Keypoint{X: x, Y: y, Size: size, Angle: -1, ClassID: NoClass}
}

// Overlap returns the intersection-over-union of the circular support
// regions of two keypoints, each a circle of diameter Size centered on the
// keypoint location.
//
// The result is 0 for disjoint circles and 1 for identical circles. When one
// circle lies entirely inside the other the ratio of their areas is
// returned.
func Overlap(a, b Keypoint) float64 {
	ra := a.Size * 0.5
	rb := b.Size * 0.5
	ra2 := ra * ra
	rb2 := rb * rb

	c := math.Hypot(a.X-b.X, a.Y-b.Y)
	if c >= ra+rb {
		return 0
	}

	if c <= math.Abs(ra-rb) {
		return math.Min(ra2, rb2) / math.Max(ra2, rb2)
	}

	c2 := c * c
	cosAlpha := (rb2 + c2 - ra2) / (b.Size * c)
	cosBeta := (ra2 + c2 - rb2) / (a.Size * c)
	alpha := math.Acos(cosAlpha)
	beta := math.Acos(cosBeta)
	sinAlpha := math.Sin(alpha)
	sinBeta := math.Sin(beta)

	segmentA := ra2 * beta
	segmentB := rb2 * alpha
	triangleA := ra2 * sinBeta * cosBeta
	triangleB := rb2 * sinAlpha * cosAlpha

	intersection := segmentA + segmentB - triangleA - triangleB
	union := (ra2+rb2)*math.Pi - intersection
	return intersection / union
}

// Rect is an axis-aligned region of interest in pixel coordinates.
//
// The region is half-open: a point (x, y) is inside when
// X <= x < X+Width and Y <= y < Y+Height.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Contains reports whether the keypoint's location lies inside the region.
func (r Rect) Contains(kp Keypoint) bool {
	return kp.X >= r.X && kp.X < r.X+r.Width &&
		kp.Y >= r.Y && kp.Y < r.Y+r.Height
}

// Empty reports whether the region has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
