package detection

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/feature-bench/internal/features"
)

// createSquareImage returns a black image with a white square covering
// [lo, hi] in both axes (inclusive).
func createSquareImage(size, lo, hi int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := lo; y <= hi; y++ {
		for x := lo; x <= hi; x++ {
			img.SetGray(x, y, color.Gray{255})
		}
	}
	return img
}

func createUniformImage(size int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func squareCorners(lo, hi int) [][2]float64 {
	l, h := float64(lo), float64(hi)
	return [][2]float64{{l, l}, {h, l}, {l, h}, {h, h}}
}

func nearestCornerDistance(kp features.Keypoint, corners [][2]float64) float64 {
	best := math.Inf(1)
	for _, c := range corners {
		best = math.Min(best, math.Hypot(kp.X-c[0], kp.Y-c[1]))
	}
	return best
}

func TestFAST_SquareCorners(t *testing.T) {
	img := createSquareImage(40, 10, 29)

	kps, err := NewFAST().Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(kps) != 4 {
		t.Fatalf("got %d keypoints, want 4 square corners: %+v", len(kps), kps)
	}

	corners := squareCorners(10, 29)
	for _, kp := range kps {
		if d := nearestCornerDistance(kp, corners); d > 1 {
			t.Errorf("keypoint (%v,%v) is %.1f px from the nearest corner", kp.X, kp.Y, d)
		}
		if kp.Response <= 0 {
			t.Errorf("keypoint (%v,%v) has no response", kp.X, kp.Y)
		}
		if kp.Size != 7 {
			t.Errorf("Size: got %v, want 7", kp.Size)
		}
	}
}

func TestFAST_UniformImage(t *testing.T) {
	kps, err := NewFAST().Detect(createUniformImage(32, 128))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(kps) != 0 {
		t.Errorf("uniform image produced %d keypoints", len(kps))
	}
}

func TestFAST_TinyImage(t *testing.T) {
	kps, err := NewFAST().Detect(createUniformImage(5, 0))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(kps) != 0 {
		t.Errorf("image smaller than the circle produced %d keypoints", len(kps))
	}
}

func TestHarris_UniformImage(t *testing.T) {
	h := NewHarris()
	m, err := h.Respond(createUniformImage(20, 90))
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	for i, v := range m.Values {
		if v != 0 {
			t.Fatalf("cell %d: got %v, want 0 for a constant response", i, v)
		}
	}

	kps := Suppressor{Threshold: h.Threshold(), Aperture: h.Aperture()}.Suppress(m)
	if len(kps) != 0 {
		t.Errorf("uniform image produced %d keypoints", len(kps))
	}
}

func TestHarris_ResponseMap(t *testing.T) {
	img := createSquareImage(40, 10, 29)

	m, err := NewHarris().Respond(img)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if m.Width != 40 || m.Height != 40 {
		t.Fatalf("map size: got %dx%d, want 40x40", m.Width, m.Height)
	}

	maxV, maxI := -1.0, -1
	for i, v := range m.Values {
		if v < 0 || v > 255 {
			t.Fatalf("cell %d: %v outside [0,255]", i, v)
		}
		if v != math.Trunc(v) {
			t.Fatalf("cell %d: %v is not a whole response level", i, v)
		}
		if v > maxV {
			maxV, maxI = v, i
		}
	}
	if maxV < 254 {
		t.Errorf("strongest response %v, want normalized to ~255", maxV)
	}

	peak := features.NewKeypoint(float64(maxI%m.Width), float64(maxI/m.Width), 1)
	if d := nearestCornerDistance(peak, squareCorners(10, 29)); d > 2 {
		t.Errorf("strongest response at (%v,%v), %.1f px from any corner", peak.X, peak.Y, d)
	}
}

func TestHarris_Parameters(t *testing.T) {
	h := NewHarris()
	if h.Threshold() != 100 {
		t.Errorf("Threshold: got %v, want 100", h.Threshold())
	}
	if h.Aperture() != 6 {
		t.Errorf("Aperture: got %v, want 6", h.Aperture())
	}
}

func TestShiTomasi_SquareCorners(t *testing.T) {
	img := createSquareImage(40, 10, 29)
	d := NewShiTomasi(0)

	kps, err := d.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(kps) < 4 {
		t.Fatalf("got %d keypoints, want at least the 4 corners", len(kps))
	}

	corners := squareCorners(10, 29)
	found := make([]bool, len(corners))
	for _, kp := range kps {
		dist := nearestCornerDistance(kp, corners)
		if dist > 5 {
			t.Errorf("keypoint (%v,%v) is %.1f px from any corner", kp.X, kp.Y, dist)
		}
		for i, c := range corners {
			if math.Hypot(kp.X-c[0], kp.Y-c[1]) <= 5 {
				found[i] = true
			}
		}
		if kp.Response != 0 {
			t.Errorf("Shi-Tomasi should not populate response, got %v", kp.Response)
		}
		if kp.Size != 4 {
			t.Errorf("Size: got %v, want block size 4", kp.Size)
		}
	}
	for i, ok := range found {
		if !ok {
			t.Errorf("no keypoint near corner %v", corners[i])
		}
	}
	if d.PopulatesResponse() {
		t.Error("PopulatesResponse should be false")
	}
}

func TestShiTomasi_MinDistance(t *testing.T) {
	kps, err := NewShiTomasi(0).Detect(createSquareImage(40, 10, 29))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for i := range kps {
		for j := i + 1; j < len(kps); j++ {
			if d := math.Hypot(kps[i].X-kps[j].X, kps[i].Y-kps[j].Y); d < 4 {
				t.Errorf("keypoints %d and %d only %.2f px apart", i, j, d)
			}
		}
	}
}

func TestRegistry(t *testing.T) {
	tests := []struct {
		kind   string
		mapper bool
	}{
		{"HARRIS", true},
		{"SHITOMASI", false},
		{"FAST", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := New(tt.kind, Params{})
			if err != nil {
				t.Fatalf("New(%s) failed: %v", tt.kind, err)
			}
			if b.Name() != tt.kind {
				t.Errorf("Name: got %s, want %s", b.Name(), tt.kind)
			}
			_, isMapper := b.(ResponseMapper)
			if isMapper != tt.mapper {
				t.Errorf("ResponseMapper: got %v, want %v", isMapper, tt.mapper)
			}
		})
	}
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := New("NOPE", Params{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering HARRIS twice should panic")
		}
	}()
	Register("HARRIS", func(Params) (Backend, error) { return NewHarris(), nil })
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	want := map[string]bool{"FAST": false, "HARRIS": false, "SHITOMASI": false}
	for _, k := range kinds {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, ok := range want {
		if !ok {
			t.Errorf("Kinds() missing %s", k)
		}
	}
}
