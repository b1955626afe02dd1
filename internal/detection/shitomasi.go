package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
)

// ShiTomasi finds "good features to track": local maxima of the smaller
// eigenvalue of the structure tensor.
//
// # Algorithm
//
//  1. Minimum eigenvalue of the BlockSize×BlockSize structure tensor at
//     every pixel
//  2. Discard pixels below QualityLevel × the strongest eigenvalue, and
//     pixels that are not the maximum of their 3×3 neighborhood
//  3. Sort the survivors by eigenvalue, strongest first
//  4. Greedily accept corners, rejecting any closer than MinDistance to an
//     already accepted one, until MaxCorners are accepted
//
// The output is ordered by quality but Keypoint.Response is left unset,
// so PopulatesResponse reports false.
type ShiTomasi struct {
	BlockSize    int
	QualityLevel float64
	MinDistance  float64
	// MaxCorners limits the output; zero means no limit.
	MaxCorners int
}

// NewShiTomasi returns a detector with block 4 and quality 0.01. The
// minimum corner distance is (1 - maxOverlap) × block.
func NewShiTomasi(maxOverlap float64) *ShiTomasi {
	const block = 4
	return &ShiTomasi{
		BlockSize:    block,
		QualityLevel: 0.01,
		MinDistance:  (1 - maxOverlap) * block,
	}
}

func init() {
	Register("SHITOMASI", func(p Params) (Backend, error) { return NewShiTomasi(p.MaxOverlap), nil })
}

func (d *ShiTomasi) Name() string { return "SHITOMASI" }

func (d *ShiTomasi) PopulatesResponse() bool { return false }

type corner struct {
	x, y int
	eig  float64
}

// Detect returns the accepted corners in descending quality order.
func (d *ShiTomasi) Detect(img *image.Gray) ([]features.Keypoint, error) {
	if d.BlockSize < 1 {
		return nil, fmt.Errorf("invalid shi-tomasi block size %d", d.BlockSize)
	}
	p := imaging.PlaneFromGray(img)
	xx, yy, xy := structureTensor(p, d.BlockSize)

	eig := imaging.NewPlane(p.Width, p.Height)
	maxEig := 0.0
	for i := range eig.Pix {
		a, b, c := xx.Pix[i], xy.Pix[i], yy.Pix[i]
		v := ((a + c) - math.Sqrt((a-c)*(a-c)+4*b*b)) / 2
		eig.Pix[i] = v
		maxEig = math.Max(maxEig, v)
	}
	if maxEig <= 0 {
		return []features.Keypoint{}, nil
	}
	threshold := d.QualityLevel * maxEig

	var candidates []corner
	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < p.Width-1; x++ {
			v := eig.At(x, y)
			if v <= threshold || !isLocalMax(eig, x, y) {
				continue
			}
			candidates = append(candidates, corner{x: x, y: y, eig: v})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].eig > candidates[j].eig
	})

	minDist2 := d.MinDistance * d.MinDistance
	accepted := make([]corner, 0, len(candidates))
	for _, c := range candidates {
		if d.MaxCorners > 0 && len(accepted) >= d.MaxCorners {
			break
		}
		tooClose := false
		for _, a := range accepted {
			dx, dy := float64(c.x-a.x), float64(c.y-a.y)
			if dx*dx+dy*dy < minDist2 {
				tooClose = true
				break
			}
		}
		if !tooClose {
			accepted = append(accepted, c)
		}
	}

	keypoints := make([]features.Keypoint, len(accepted))
	for i, c := range accepted {
		keypoints[i] = features.NewKeypoint(float64(c.x), float64(c.y), float64(d.BlockSize))
	}
	return keypoints, nil
}

// isLocalMax reports whether (x, y) is not exceeded anywhere in its 3×3
// neighborhood.
func isLocalMax(p *imaging.Plane, x, y int) bool {
	v := p.At(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if p.At(x+dx, y+dy) > v {
				return false
			}
		}
	}
	return true
}
