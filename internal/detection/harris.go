package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
)

// Harris computes the Harris corner response of an image.
//
// # Algorithm
//
//  1. Gradients: 3×3 Sobel derivatives Ix, Iy
//  2. Structure tensor: sums of Ix², Iy² and Ix·Iy over a BlockSize×BlockSize
//     window anchored like OpenCV's box filter (the window covers
//     x-BlockSize/2 .. x-BlockSize/2+BlockSize-1)
//  3. Response: R = det(M) - K·trace(M)²
//  4. Normalization: min-max scaled to [0, 255] and truncated to an integer,
//     so the threshold compares whole response levels
//
// Harris is a ResponseMapper; its map is turned into keypoints by a
// Suppressor using Threshold and Aperture.
type Harris struct {
	BlockSize   int
	K           float64
	MinResponse float64
	// ApertureSize is the Sobel aperture; keypoints get a support diameter
	// of twice this value.
	ApertureSize int
}

// NewHarris returns a Harris detector with block 2, Sobel aperture 3,
// k = 0.04 and a minimum normalized response of 100.
func NewHarris() *Harris {
	return &Harris{BlockSize: 2, K: 0.04, MinResponse: 100, ApertureSize: 3}
}

func init() {
	Register("HARRIS", func(Params) (Backend, error) { return NewHarris(), nil })
}

func (h *Harris) Name() string { return "HARRIS" }

func (h *Harris) Threshold() float64 { return h.MinResponse }

func (h *Harris) Aperture() float64 { return float64(h.ApertureSize * 2) }

// Respond returns the normalized Harris response of img.
func (h *Harris) Respond(img *image.Gray) (*features.ResponseMap, error) {
	if h.BlockSize < 1 {
		return nil, fmt.Errorf("invalid harris block size %d", h.BlockSize)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("cannot compute harris response of empty image")
	}

	xx, yy, xy := structureTensor(imaging.PlaneFromGray(img), h.BlockSize)

	m := features.NewResponseMap(xx.Width, xx.Height)
	for i := range m.Values {
		a, b, c := xx.Pix[i], xy.Pix[i], yy.Pix[i]
		trace := a + c
		m.Values[i] = a*c - b*b - h.K*trace*trace
	}
	normalizeResponse(m)
	for i, v := range m.Values {
		m.Values[i] = math.Trunc(v)
	}
	return m, nil
}

// structureTensor returns the window sums of Ix², Iy² and Ix·Iy.
func structureTensor(p *imaging.Plane, block int) (xx, yy, xy *imaging.Plane) {
	gx, gy := p.Sobel()

	dxx := imaging.NewPlane(p.Width, p.Height)
	dyy := imaging.NewPlane(p.Width, p.Height)
	dxy := imaging.NewPlane(p.Width, p.Height)
	for i := range gx.Pix {
		dxx.Pix[i] = gx.Pix[i] * gx.Pix[i]
		dyy.Pix[i] = gy.Pix[i] * gy.Pix[i]
		dxy.Pix[i] = gx.Pix[i] * gy.Pix[i]
	}
	return boxSum(dxx, block), boxSum(dyy, block), boxSum(dxy, block)
}

// boxSum sums p over a block×block window at every sample. Samples outside
// the plane are clamped to the border.
func boxSum(p *imaging.Plane, block int) *imaging.Plane {
	start := -(block / 2)
	out := imaging.NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sum float64
			for dy := start; dy < start+block; dy++ {
				for dx := start; dx < start+block; dx++ {
					sum += p.At(x+dx, y+dy)
				}
			}
			out.Set(x, y, sum)
		}
	}
	return out
}

// normalizeResponse rescales m in place so its minimum maps to 0 and its
// maximum to 255. A constant map becomes all zeros.
func normalizeResponse(m *features.ResponseMap) {
	if len(m.Values) == 0 {
		return
	}
	lo, hi := m.Values[0], m.Values[0]
	for _, v := range m.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		for i := range m.Values {
			m.Values[i] = 0
		}
		return
	}
	scale := 255 / (hi - lo)
	for i, v := range m.Values {
		m.Values[i] = (v - lo) * scale
	}
}
