//go:build gocv

// OpenCV-backed detectors, available when built with -tags gocv and an
// OpenCV 4 installation visible to cgo.

package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ironsheep/feature-bench/internal/features"
)

// cvFeatureDetector is the method set shared by the gocv detector types.
type cvFeatureDetector interface {
	Detect(src gocv.Mat) []gocv.KeyPoint
	Close() error
}

// CVDetector wraps an OpenCV feature detector. A new OpenCV object is
// created for every call so no native state outlives Detect.
type CVDetector struct {
	name   string
	create func() cvFeatureDetector
}

func init() {
	register := func(kind string, create func() cvFeatureDetector) {
		Register(kind, func(Params) (Backend, error) {
			return &CVDetector{name: kind, create: create}, nil
		})
	}

	register("FAST_CV", func() cvFeatureDetector {
		d := gocv.NewFastFeatureDetectorWithParams(30, true, gocv.FastFeatureDetectorType9To16)
		return &d
	})
	register("BRISK", func() cvFeatureDetector {
		d := gocv.NewBRISK()
		return &d
	})
	register("ORB", func() cvFeatureDetector {
		d := gocv.NewORB()
		return &d
	})
	register("AKAZE", func() cvFeatureDetector {
		d := gocv.NewAKAZE()
		return &d
	})
	register("SIFT", func() cvFeatureDetector {
		d := gocv.NewSIFT()
		return &d
	})
}

func (d *CVDetector) Name() string { return d.name }

func (d *CVDetector) PopulatesResponse() bool { return true }

// Detect converts img to an OpenCV matrix and runs the wrapped detector.
func (d *CVDetector) Detect(img *image.Gray) ([]features.Keypoint, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image for %s: %w", d.name, err)
	}
	defer mat.Close()

	det := d.create()
	defer det.Close()

	found := det.Detect(mat)
	keypoints := make([]features.Keypoint, len(found))
	for i, kp := range found {
		keypoints[i] = features.Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
			ClassID:  kp.ClassID,
		}
	}
	return keypoints, nil
}
