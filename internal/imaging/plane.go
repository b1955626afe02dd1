package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
)

// Plane is a single-channel image with float64 samples stored row-major.
//
// Detectors and descriptors work on planes so that derivatives keep their
// sign and full precision instead of being clamped to 8 bits.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed width×height plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// PlaneFromGray copies the samples of g (0-255) into a new plane.
func PlaneFromGray(g *image.Gray) *Plane {
	bounds := g.Bounds()
	p := NewPlane(bounds.Dx(), bounds.Dy())
	for y := 0; y < p.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+p.Width]
		for x, v := range row {
			p.Pix[y*p.Width+x] = float64(v)
		}
	}
	return p
}

// At returns the sample at (x, y). Coordinates outside the plane are
// clamped to the nearest edge sample.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[clamp(y, 0, p.Height-1)*p.Width+clamp(x, 0, p.Width-1)]
}

// Set stores v at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.Width+x] = v
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Sobel returns the horizontal and vertical 3×3 Sobel derivatives of p.
// Border samples use clamped (replicated) edge values.
func (p *Plane) Sobel() (gx, gy *Plane) {
	gx = NewPlane(p.Width, p.Height)
	gy = NewPlane(p.Width, p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var sx, sy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := p.At(x+kx, y+ky)
					sx += v * sobelX[ky+1][kx+1]
					sy += v * sobelY[ky+1][kx+1]
				}
			}
			gx.Pix[y*p.Width+x] = sx
			gy.Pix[y*p.Width+x] = sy
		}
	}
	return gx, gy
}

// Smooth applies a Gaussian blur of the given radius to g and returns the
// result as a new grayscale image. A non-positive radius returns g as is.
func Smooth(g *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		return g
	}
	blurred := blur.Gaussian(g, radius)
	bounds := blurred.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := blurred.Pix[y*blurred.Stride : y*blurred.Stride+bounds.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+bounds.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
