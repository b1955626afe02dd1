package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrUnreadable marks a file that could not be opened or decoded as an image.
var ErrUnreadable = errors.New("image unreadable")

// GrayMode selects how color images are reduced to a single channel.
type GrayMode string

const (
	// GrayLuma uses ITU-R BT.601 luma weights (0.299R + 0.587G + 0.114B).
	GrayLuma GrayMode = "luma"

	// GrayLightness uses perceptual CIE L* lightness.
	GrayLightness GrayMode = "lightness"
)

// Source loads frame images and reduces them to grayscale.
//
// Implementations must return an error wrapping ErrUnreadable when an image
// cannot be loaded, so callers can tell resource failures apart from
// failures of the feature backends.
type Source interface {
	Load(path string) (image.Image, error)
	Gray(img image.Image) *image.Gray
}

// FileSource reads images from disk.
//
// JPEG files are rotated according to their EXIF orientation tag. Supported
// formats are PNG, JPEG, GIF, BMP, TIFF and WebP.
type FileSource struct {
	Mode GrayMode
}

// NewFileSource returns a FileSource using the given grayscale mode. An
// empty mode selects GrayLuma.
func NewFileSource(mode GrayMode) *FileSource {
	if mode == "" {
		mode = GrayLuma
	}
	return &FileSource{Mode: mode}
}

// Load decodes the image at path.
//
// # Errors
//
//   - Returns an error wrapping ErrUnreadable if the file does not exist,
//     cannot be read, or is not in a supported format
func (s *FileSource) Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrUnreadable, path, err)
	}
	return img, nil
}

// Gray converts img to an 8-bit grayscale image with origin (0, 0).
//
// Images that are already *image.Gray with a zero origin are returned
// unchanged.
func (s *FileSource) Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	if s.Mode == GrayLightness {
		return lightness(img)
	}
	return luma(img)
}

// luma reduces img with the BT.601 weights applied by imaging.Grayscale.
func luma(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+bounds.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+bounds.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// lightness reduces img to CIE L* scaled to 0-255. Fully transparent pixels
// become black.
func lightness(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c, ok := colorful.MakeColor(img.At(x+bounds.Min.X, y+bounds.Min.Y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			out.SetGray(x, y, color.Gray{Y: uint8(clampFloat(l*255+0.5, 0, 255))})
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
