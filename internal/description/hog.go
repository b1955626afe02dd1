package description

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
)

// HOG is a SIFT-style histogram of oriented gradients.
//
// A (Cells·CellSize)² window centered on the keypoint is split into
// Cells×Cells cells; each cell accumulates a Bins-bin histogram of gradient
// orientations weighted by gradient magnitude and a Gaussian centered on
// the keypoint. When the keypoint carries an orientation (Angle >= 0)
// gradient angles are measured relative to it.
//
// The concatenated histogram is L2-normalized, each entry is clipped to
// Clip, and the vector is normalized again.
type HOG struct {
	Cells        int
	CellSize     int
	Bins         int
	Clip         float64
	SmoothRadius float64
}

// NewHOG returns a 4×4 cell, 8-bin extractor (128 values) over a 16-pixel
// window.
func NewHOG() *HOG {
	return &HOG{Cells: 4, CellSize: 4, Bins: 8, Clip: 0.2, SmoothRadius: 1}
}

func init() {
	Register("HOG", func() Extractor { return NewHOG() })
}

func (h *HOG) Name() string { return "HOG" }

func (h *HOG) Type() features.DescriptorType { return features.Float }

// Describe computes a Cells·Cells·Bins vector for every keypoint.
func (h *HOG) Describe(img *image.Gray, kps []features.Keypoint) (features.Descriptors, error) {
	out := features.Descriptors{Type: features.Float, Float: make([][]float64, len(kps))}
	if len(kps) == 0 {
		return out, nil
	}

	gx, gy := imaging.PlaneFromGray(imaging.Smooth(img, h.SmoothRadius)).Sobel()
	window := h.Cells * h.CellSize
	half := window / 2
	sigma := float64(half)
	binWidth := 2 * math.Pi / float64(h.Bins)

	for i, kp := range kps {
		cx, cy := int(math.Round(kp.X)), int(math.Round(kp.Y))
		ref := 0.0
		if kp.Angle >= 0 {
			ref = kp.Angle * math.Pi / 180
		}

		desc := make([]float64, h.Cells*h.Cells*h.Bins)
		for dy := -half; dy < half; dy++ {
			for dx := -half; dx < half; dx++ {
				ix, iy := gx.At(cx+dx, cy+dy), gy.At(cx+dx, cy+dy)
				mag := math.Hypot(ix, iy)
				if mag == 0 {
					continue
				}
				angle := math.Mod(math.Atan2(iy, ix)-ref+4*math.Pi, 2*math.Pi)
				bin := int(angle/binWidth) % h.Bins
				weight := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma))

				cell := ((dy+half)/h.CellSize)*h.Cells + (dx+half)/h.CellSize
				desc[cell*h.Bins+bin] += mag * weight
			}
		}
		normalizeClipped(desc, h.Clip)
		out.Float[i] = desc
	}
	return out, nil
}

// normalizeClipped L2-normalizes v, clips entries at clip and normalizes
// again. An all-zero vector is left unchanged.
func normalizeClipped(v []float64, clip float64) {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, v)
	for i := range v {
		v[i] = math.Min(v[i], clip)
	}
	if norm = floats.Norm(v, 2); norm > 0 {
		floats.Scale(1/norm, v)
	}
}
