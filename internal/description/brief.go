package description

import (
	"image"
	"math"
	"math/rand"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
)

// briefSeed fixes the sampling pattern so descriptors are comparable across
// runs and processes.
const briefSeed = 0x5eed_b41e

// BRIEF is the binary robust independent elementary features descriptor.
//
// The image is Gaussian-smoothed, then for each keypoint Bytes×8 pixel pairs
// are sampled from a PatchSize×PatchSize window around it; bit i is set when
// the first pixel of pair i is darker than the second. Pair offsets are
// drawn once from an isotropic Gaussian (sigma = PatchSize/5) and clipped to
// the patch.
type BRIEF struct {
	PatchSize    int
	Bytes        int
	SmoothRadius float64

	pairs [][4]int // x1, y1, x2, y2 relative to the keypoint
}

// NewBRIEF returns a 32-byte BRIEF extractor over a 48-pixel patch.
func NewBRIEF() *BRIEF {
	b := &BRIEF{PatchSize: 48, Bytes: 32, SmoothRadius: 2}
	b.pairs = samplingPattern(b.Bytes*8, b.PatchSize, briefSeed)
	return b
}

func init() {
	Register("BRIEF", func() Extractor { return NewBRIEF() })
}

func (b *BRIEF) Name() string { return "BRIEF" }

func (b *BRIEF) Type() features.DescriptorType { return features.Binary }

// Describe computes a Bytes-long bit string for every keypoint.
func (b *BRIEF) Describe(img *image.Gray, kps []features.Keypoint) (features.Descriptors, error) {
	out := features.Descriptors{Type: features.Binary, Binary: make([][]byte, len(kps))}
	if len(kps) == 0 {
		return out, nil
	}

	p := imaging.PlaneFromGray(imaging.Smooth(img, b.SmoothRadius))
	for i, kp := range kps {
		cx, cy := int(math.Round(kp.X)), int(math.Round(kp.Y))
		desc := make([]byte, b.Bytes)
		for bit, pr := range b.pairs {
			if p.At(cx+pr[0], cy+pr[1]) < p.At(cx+pr[2], cy+pr[3]) {
				desc[bit/8] |= 1 << (7 - uint(bit%8))
			}
		}
		out.Binary[i] = desc
	}
	return out, nil
}

// samplingPattern draws n point pairs from an isotropic Gaussian clipped to
// a patch of the given size.
func samplingPattern(n, patch int, seed int64) [][4]int {
	rng := rand.New(rand.NewSource(seed))
	half := patch / 2
	sigma := float64(patch) / 5
	draw := func() int {
		v := int(math.Round(rng.NormFloat64() * sigma))
		if v < -half+1 {
			return -half + 1
		}
		if v > half-1 {
			return half - 1
		}
		return v
	}

	pairs := make([][4]int, n)
	for i := range pairs {
		pairs[i] = [4]int{draw(), draw(), draw(), draw()}
	}
	return pairs
}
