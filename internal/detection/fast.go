package detection

import (
	"fmt"
	"image"

	"github.com/ironsheep/feature-bench/internal/features"
)

// fastCircle is the 16-pixel Bresenham circle of radius 3, clockwise from
// the top.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// FAST is the FAST-9/16 segment-test corner detector.
//
// A pixel p is a corner when at least ArcLength contiguous pixels of the
// surrounding 16-pixel circle are all brighter than p+Threshold or all
// darker than p-Threshold. The corner score is the sum of absolute
// differences, minus Threshold, over the circle pixels of the winning
// class. With NonmaxSuppression a corner survives only if its score is
// strictly greater than every other corner score in its 3×3 neighborhood.
//
// Keypoints are emitted in raster order with Size 7 and Response = score.
type FAST struct {
	Threshold         int
	ArcLength         int
	NonmaxSuppression bool
}

// NewFAST returns a FAST-9/16 detector with threshold 30 and non-maximum
// suppression enabled.
func NewFAST() *FAST {
	return &FAST{Threshold: 30, ArcLength: 9, NonmaxSuppression: true}
}

func init() {
	Register("FAST", func(Params) (Backend, error) { return NewFAST(), nil })
}

func (d *FAST) Name() string { return "FAST" }

func (d *FAST) PopulatesResponse() bool { return true }

// Detect runs the segment test over every pixel at least 3 pixels from the
// border.
func (d *FAST) Detect(img *image.Gray) ([]features.Keypoint, error) {
	if d.ArcLength < 1 || d.ArcLength > 16 {
		return nil, fmt.Errorf("invalid FAST arc length %d", d.ArcLength)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pix := func(x, y int) int {
		return int(img.Pix[img.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)])
	}

	scores := make([]float64, width*height)
	for y := 3; y < height-3; y++ {
		for x := 3; x < width-3; x++ {
			scores[y*width+x] = d.score(pix, x, y)
		}
	}

	keypoints := make([]features.Keypoint, 0)
	for y := 3; y < height-3; y++ {
		for x := 3; x < width-3; x++ {
			s := scores[y*width+x]
			if s <= 0 {
				continue
			}
			if d.NonmaxSuppression && !strictMax(scores, width, x, y) {
				continue
			}
			kp := features.NewKeypoint(float64(x), float64(y), 7)
			kp.Response = s
			keypoints = append(keypoints, kp)
		}
	}
	return keypoints, nil
}

// score returns the corner score of (x, y), or 0 when it is not a corner.
func (d *FAST) score(pix func(x, y int) int, x, y int) float64 {
	center := pix(x, y)
	var ring [16]int
	for i, off := range fastCircle {
		ring[i] = pix(x+off[0], y+off[1]) - center
	}

	best := 0
	for _, sign := range []int{1, -1} {
		if !d.hasArc(ring, sign) {
			continue
		}
		sum := 0
		for _, diff := range ring {
			if v := sign*diff - d.Threshold; v > 0 {
				sum += v
			}
		}
		if sum > best {
			best = sum
		}
	}
	return float64(best)
}

// hasArc reports whether ring holds ArcLength contiguous entries, wrapping
// around, whose signed difference exceeds Threshold.
func (d *FAST) hasArc(ring [16]int, sign int) bool {
	run := 0
	for i := 0; i < 16+d.ArcLength-1; i++ {
		if sign*ring[i%16] > d.Threshold {
			run++
			if run >= d.ArcLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// strictMax reports whether the score at (x, y) is greater than all eight
// neighbors.
func strictMax(scores []float64, width, x, y int) bool {
	s := scores[y*width+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if scores[(y+dy)*width+(x+dx)] >= s {
				return false
			}
		}
	}
	return true
}
