package pipeline

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
	"github.com/ironsheep/feature-bench/internal/matching"
)

// fakeDetector returns the same keypoints for every frame.
type fakeDetector struct {
	kps       []features.Keypoint
	populates bool
	err       error
}

func (d *fakeDetector) Name() string            { return "FAKE" }
func (d *fakeDetector) PopulatesResponse() bool { return d.populates }
func (d *fakeDetector) Detect(*image.Gray) ([]features.Keypoint, error) {
	out := make([]features.Keypoint, len(d.kps))
	copy(out, d.kps)
	return out, d.err
}

// fakeMapper returns a fixed response map sized to the image.
type fakeMapper struct {
	rows [][]float64
}

func (m *fakeMapper) Name() string       { return "FAKE_MAP" }
func (m *fakeMapper) Threshold() float64 { return 100 }
func (m *fakeMapper) Aperture() float64  { return 6 }
func (m *fakeMapper) Respond(img *image.Gray) (*features.ResponseMap, error) {
	b := img.Bounds()
	rm := features.NewResponseMap(b.Dx(), b.Dy())
	for y, row := range m.rows {
		for x, v := range row {
			rm.Set(x, y, v)
		}
	}
	return rm, nil
}

// fakeExtractor describes a keypoint by its rounded coordinates.
type fakeExtractor struct {
	extra int
	calls int
}

func (e *fakeExtractor) Name() string                  { return "FAKE_DESC" }
func (e *fakeExtractor) Type() features.DescriptorType { return features.Binary }
func (e *fakeExtractor) Describe(_ *image.Gray, kps []features.Keypoint) (features.Descriptors, error) {
	e.calls++
	d := features.Descriptors{Type: features.Binary, Binary: make([][]byte, 0, len(kps)+e.extra)}
	for _, kp := range kps {
		d.Binary = append(d.Binary, []byte{byte(kp.X), byte(kp.Y)})
	}
	for i := 0; i < e.extra; i++ {
		d.Binary = append(d.Binary, []byte{0, 0})
	}
	return d, nil
}

// fakeMatcher delegates to the configured functions.
type fakeMatcher struct {
	match func(src, ref features.Descriptors) ([]features.Match, error)
	knn   func(src, ref features.Descriptors, k int) ([][]features.Match, error)
	calls int
}

func (m *fakeMatcher) Name() string { return "FAKE_MATCH" }
func (m *fakeMatcher) Match(src, ref features.Descriptors) ([]features.Match, error) {
	m.calls++
	return m.match(src, ref)
}
func (m *fakeMatcher) KnnMatch(src, ref features.Descriptors, k int) ([][]features.Match, error) {
	m.calls++
	return m.knn(src, ref, k)
}

func steppingClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func blankImage(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// createSquareImage draws a white 20×20 square with its top-left corner at
// (x0, y0) on a black 120×80 image.
func createSquareImage(x0, y0 int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 120, 80))
	for y := y0; y < y0+20; y++ {
		for x := x0; x < x0+20; x++ {
			img.SetGray(x, y, color.Gray{255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func keypointsAt(coords ...[3]float64) []features.Keypoint {
	kps := make([]features.Keypoint, len(coords))
	for i, c := range coords {
		kps[i] = features.NewKeypoint(c[0], c[1], 7)
		kps[i].Response = c[2]
	}
	return kps
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Selector = SelectNN
	return cfg
}

func newTestPipeline(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, x := range []int{40, 43, 46} {
		paths = append(paths, writePNG(t, dir, []string{"0000.png", "0001.png", "0002.png"}[i], createSquareImage(x, 30)))
	}

	cfg := DefaultConfig()
	p := newTestPipeline(t, cfg)
	records, err := p.Run(paths)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	if records[0].MatchCount != 0 || records[0].MatchesBeforeFilter != 0 {
		t.Errorf("first frame: got %+v, want no matches", records[0])
	}
	for i, r := range records {
		if r.Frame != i || r.Name != paths[i] {
			t.Errorf("record %d identity: got frame %d name %s", i, r.Frame, r.Name)
		}
		if r.Keypoints == 0 {
			t.Errorf("frame %d: no keypoints on a square", i)
		}
		if i == 0 {
			continue
		}
		bound := min(records[i-1].Keypoints, r.Keypoints)
		if r.MatchCount == 0 || r.MatchCount > bound {
			t.Errorf("frame %d: match count %d, want 1..%d", i, r.MatchCount, bound)
		}
	}

	frames := p.Frames()
	if len(frames) != 2 || frames[0].Index != 1 || frames[1].Index != 2 {
		t.Errorf("buffer should hold frames 1 and 2")
	}
	if len(frames[1].Matches) != records[2].MatchCount {
		t.Errorf("frame matches %d disagree with record %d", len(frames[1].Matches), records[2].MatchCount)
	}
}

func TestRun_HaltsOnUnreadableImage(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "0000.png", createSquareImage(40, 30))
	bad := filepath.Join(dir, "missing.png")
	never := writePNG(t, dir, "0002.png", createSquareImage(40, 30))

	matcher := &fakeMatcher{match: func(src, ref features.Descriptors) ([]features.Match, error) {
		return nil, nil
	}}
	p := newTestPipeline(t, testConfig(), WithMatcher(matcher))

	records, err := p.Run([]string{good, bad, never})
	if len(records) != 1 || records[0].Name != good {
		t.Errorf("got %d records, want only the first frame", len(records))
	}
	if !errors.Is(err, ErrResource) {
		t.Fatalf("got %v, want ErrResource", err)
	}
	if !errors.Is(err, imaging.ErrUnreadable) {
		t.Errorf("cause lost: %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("got %T, want *StageError", err)
	}
	if se.Frame != 1 || se.Stage != StageIngest {
		t.Errorf("got frame %d stage %s, want frame 1 ingest", se.Frame, se.Stage)
	}
	if !strings.Contains(err.Error(), "frame 1") {
		t.Errorf("message lacks frame index: %v", err)
	}
	if len(p.Records()) != 1 {
		t.Errorf("Records: got %d, want 1", len(p.Records()))
	}
}

func TestProcessImage_FirstFrameSkipsMatch(t *testing.T) {
	matcher := &fakeMatcher{
		match: func(src, ref features.Descriptors) ([]features.Match, error) {
			return []features.Match{{QueryIdx: 0, TrainIdx: 0}}, nil
		},
	}
	p := newTestPipeline(t, testConfig(),
		WithDetector(&fakeDetector{kps: keypointsAt([3]float64{5, 5, 1})}),
		WithExtractor(&fakeExtractor{}),
		WithMatcher(matcher))

	rec, err := p.ProcessImage("a", blankImage(20, 20))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if rec.MatchCount != 0 || matcher.calls != 0 {
		t.Errorf("first frame matched: count %d, matcher calls %d", rec.MatchCount, matcher.calls)
	}

	rec, err = p.ProcessImage("b", blankImage(20, 20))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if rec.MatchCount != 1 || matcher.calls != 1 {
		t.Errorf("second frame: count %d, matcher calls %d", rec.MatchCount, matcher.calls)
	}
}

func TestProcessImage_MatchCountBounded(t *testing.T) {
	// Every source claims reference 0; only the closest one may keep it.
	matcher := &fakeMatcher{
		match: func(src, ref features.Descriptors) ([]features.Match, error) {
			return []features.Match{
				{QueryIdx: 0, TrainIdx: 0, Distance: 9},
				{QueryIdx: 1, TrainIdx: 0, Distance: 3},
				{QueryIdx: 2, TrainIdx: 0, Distance: 3},
			}, nil
		},
	}
	det := &fakeDetector{kps: keypointsAt([3]float64{1, 1, 0}, [3]float64{5, 5, 0}, [3]float64{9, 9, 0})}
	p := newTestPipeline(t, testConfig(), WithDetector(det), WithExtractor(&fakeExtractor{}), WithMatcher(matcher))

	if _, err := p.ProcessImage("a", blankImage(20, 20)); err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	det.kps = det.kps[:1]
	rec, err := p.ProcessImage("b", blankImage(20, 20))
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if rec.MatchesBeforeFilter != 3 {
		t.Errorf("MatchesBeforeFilter: got %d, want 3", rec.MatchesBeforeFilter)
	}
	if rec.MatchCount != 1 {
		t.Fatalf("MatchCount: got %d, want 1 (min of 3 and 1)", rec.MatchCount)
	}
	if got := p.Frames()[1].Matches[0]; got.QueryIdx != 1 {
		t.Errorf("winner: got query %d, want 1 (smallest distance, earliest on ties)", got.QueryIdx)
	}
}

func TestProcessImage_RatioTest(t *testing.T) {
	matcher := &fakeMatcher{
		knn: func(src, ref features.Descriptors, k int) ([][]features.Match, error) {
			if k != 2 {
				t.Errorf("k: got %d, want 2", k)
			}
			return [][]features.Match{
				{{QueryIdx: 0, TrainIdx: 0, Distance: 10}, {QueryIdx: 0, TrainIdx: 1, Distance: 15}},
				{{QueryIdx: 1, TrainIdx: 1, Distance: 12}, {QueryIdx: 1, TrainIdx: 2, Distance: 13}},
				{{QueryIdx: 2, TrainIdx: 2, Distance: 5}, {QueryIdx: 2, TrainIdx: 0, Distance: 9}},
			}, nil
		},
	}
	det := &fakeDetector{kps: keypointsAt([3]float64{1, 1, 0}, [3]float64{5, 5, 0}, [3]float64{9, 9, 0})}
	cfg := testConfig()
	cfg.Selector = SelectKNN
	p := newTestPipeline(t, cfg, WithDetector(det), WithExtractor(&fakeExtractor{}), WithMatcher(matcher))

	if _, err := p.ProcessImage("a", blankImage(20, 20)); err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	rec, err := p.ProcessImage("b", blankImage(20, 20))
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if rec.MatchesBeforeFilter != 3 || rec.MatchCount != 2 {
		t.Errorf("got before %d after %d, want 3 and 2", rec.MatchesBeforeFilter, rec.MatchCount)
	}
}

func TestProcessImage_ShortCandidateListIsBackendError(t *testing.T) {
	matcher := &fakeMatcher{
		knn: func(src, ref features.Descriptors, k int) ([][]features.Match, error) {
			out := make([][]features.Match, src.Len())
			for i := range out {
				out[i] = []features.Match{{QueryIdx: i, TrainIdx: 0}}
			}
			return out, nil
		},
	}
	det := &fakeDetector{kps: keypointsAt([3]float64{1, 1, 0}, [3]float64{5, 5, 0})}
	cfg := testConfig()
	cfg.Selector = SelectKNN
	p := newTestPipeline(t, cfg, WithDetector(det), WithExtractor(&fakeExtractor{}), WithMatcher(matcher))

	if _, err := p.ProcessImage("a", blankImage(20, 20)); err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	_, err := p.ProcessImage("b", blankImage(20, 20))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageMatch || !errors.Is(err, ErrBackendInvocation) {
		t.Fatalf("got %v, want a match-stage backend error", err)
	}
	if len(p.Records()) != 1 {
		t.Errorf("Records: got %d, want the first frame only", len(p.Records()))
	}
}

func TestProcessImage_DescriptorCountMismatch(t *testing.T) {
	p := newTestPipeline(t, testConfig(),
		WithDetector(&fakeDetector{kps: keypointsAt([3]float64{1, 1, 0})}),
		WithExtractor(&fakeExtractor{extra: 1}))

	_, err := p.ProcessImage("a", blankImage(20, 20))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageDescribe || !errors.Is(err, ErrBackendInvocation) {
		t.Fatalf("got %v, want a describe-stage backend error", err)
	}
}

func TestProcessImage_DetectorError(t *testing.T) {
	boom := errors.New("boom")
	p := newTestPipeline(t, testConfig(), WithDetector(&fakeDetector{err: boom}))

	_, err := p.ProcessImage("a", blankImage(20, 20))
	if !errors.Is(err, boom) || !errors.Is(err, ErrBackendInvocation) {
		t.Errorf("got %v, want detector error wrapped as backend invocation", err)
	}
}

func TestProcessImage_ZeroKeypoints(t *testing.T) {
	ext := &fakeExtractor{}
	p := newTestPipeline(t, testConfig(), WithDetector(&fakeDetector{}), WithExtractor(ext))

	for i := 0; i < 2; i++ {
		rec, err := p.ProcessImage("empty", blankImage(20, 20))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if rec.Keypoints != 0 || rec.MatchCount != 0 {
			t.Errorf("frame %d: got %+v", i, rec)
		}
	}
	if ext.calls != 2 {
		t.Errorf("extractor called %d times, want once per frame", ext.calls)
	}
}

func TestProcessImage_RegionFilter(t *testing.T) {
	cfg := testConfig()
	cfg.RegionOfInterest = &features.Rect{X: 10, Y: 10, Width: 10, Height: 10}
	det := &fakeDetector{kps: keypointsAt(
		[3]float64{5, 5, 0},
		[3]float64{10, 10, 0},
		[3]float64{19.5, 15, 0},
		[3]float64{20, 15, 0},
	)}
	p := newTestPipeline(t, cfg, WithDetector(det), WithExtractor(&fakeExtractor{}))

	rec, err := p.ProcessImage("a", blankImage(30, 30))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if rec.Detected != 4 || rec.Keypoints != 2 {
		t.Errorf("got detected %d kept %d, want 4 and 2", rec.Detected, rec.Keypoints)
	}
}

func TestProcessImage_Cap(t *testing.T) {
	kps := keypointsAt(
		[3]float64{1, 1, 10},
		[3]float64{2, 2, 50},
		[3]float64{3, 3, 30},
		[3]float64{4, 4, 50},
	)
	tests := []struct {
		name      string
		populates bool
		wantMode  string
		wantX     []float64
	}{
		{"by response", true, CapByResponse, []float64{2, 4}},
		{"by order", false, CapByOrder, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxKeypoints = 2
			p := newTestPipeline(t, cfg,
				WithDetector(&fakeDetector{kps: kps, populates: tt.populates}),
				WithExtractor(&fakeExtractor{}))

			rec, err := p.ProcessImage("a", blankImage(10, 10))
			if err != nil {
				t.Fatalf("ProcessImage failed: %v", err)
			}
			if rec.CapMode != tt.wantMode || rec.Keypoints != 2 {
				t.Errorf("got mode %q keypoints %d, want %q and 2", rec.CapMode, rec.Keypoints, tt.wantMode)
			}
			kept := p.Frames()[0].Keypoints
			for i, x := range tt.wantX {
				if kept[i].X != x {
					t.Errorf("keypoint %d: got x=%v, want %v", i, kept[i].X, x)
				}
			}
		})
	}
}

func TestProcessImage_CapNotNeeded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxKeypoints = 5
	p := newTestPipeline(t, cfg,
		WithDetector(&fakeDetector{kps: keypointsAt([3]float64{1, 1, 0})}),
		WithExtractor(&fakeExtractor{}))

	rec, err := p.ProcessImage("a", blankImage(10, 10))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if rec.CapMode != "" {
		t.Errorf("CapMode: got %q, want empty when under the cap", rec.CapMode)
	}
}

func TestProcessImage_ResponseMapSuppressed(t *testing.T) {
	mapper := &fakeMapper{rows: [][]float64{{0, 150, 200, 0}}}
	p := newTestPipeline(t, testConfig(), WithDetector(mapper), WithExtractor(&fakeExtractor{}))

	rec, err := p.ProcessImage("a", blankImage(4, 1))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if rec.Keypoints != 1 {
		t.Fatalf("got %d keypoints, want 1", rec.Keypoints)
	}
	if kp := p.Frames()[0].Keypoints[0]; kp.X != 2 || kp.Response != 200 {
		t.Errorf("got %+v, want the 200 cell", kp)
	}
}

func TestProcessImage_Timing(t *testing.T) {
	matcher := &fakeMatcher{match: func(src, ref features.Descriptors) ([]features.Match, error) { return nil, nil }}
	p := newTestPipeline(t, testConfig(),
		WithDetector(&fakeDetector{}),
		WithExtractor(&fakeExtractor{}),
		WithMatcher(matcher),
		WithClock(steppingClock(time.Millisecond)))

	for i := 0; i < 2; i++ {
		rec, err := p.ProcessImage("a", blankImage(4, 4))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if rec.DetectionTime != time.Millisecond || rec.DescriptionTime != time.Millisecond {
			t.Errorf("frame %d: got %v / %v, want 1ms each", i, rec.DetectionTime, rec.DescriptionTime)
		}
		wantMatch := time.Duration(i) * time.Millisecond
		if rec.MatchTime != wantMatch {
			t.Errorf("frame %d: match time %v, want %v", i, rec.MatchTime, wantMatch)
		}
	}
}

func TestProcessImage_EmptyImage(t *testing.T) {
	p := newTestPipeline(t, testConfig(), WithDetector(&fakeDetector{}), WithExtractor(&fakeExtractor{}))
	_, err := p.ProcessImage("empty", blankImage(0, 0))
	if !errors.Is(err, ErrResource) {
		t.Errorf("got %v, want ErrResource", err)
	}
}

func TestRecords_ReturnsCopy(t *testing.T) {
	p := newTestPipeline(t, testConfig(), WithDetector(&fakeDetector{}), WithExtractor(&fakeExtractor{}))
	if _, err := p.ProcessImage("a", blankImage(4, 4)); err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	recs := p.Records()
	recs[0].Name = "changed"
	if p.Records()[0].Name != "a" {
		t.Error("Records exposes internal state")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown detector", func(c *Config) { c.Detector = "SURF" }},
		{"unknown descriptor", func(c *Config) { c.Descriptor = "FREAK" }},
		{"unknown matcher", func(c *Config) { c.Matcher = "MAT_LSH" }},
		{"hamming on HOG", func(c *Config) { c.Descriptor = "HOG"; c.Distance = matching.DistanceBinary }},
		{"zero capacity", func(c *Config) { c.BufferCapacity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Detector, cfg.Descriptor, cfg.Distance, cfg.Matcher = "HARRIS", "HOG", matching.DistanceHOG, matching.FLANN
	if _, err := New(cfg); err != nil {
		t.Errorf("HARRIS/HOG/FLANN: %v", err)
	}
}

func TestOneToOne(t *testing.T) {
	in := []features.Match{
		{QueryIdx: 0, TrainIdx: 4, Distance: 5},
		{QueryIdx: 1, TrainIdx: 4, Distance: 2},
		{QueryIdx: 2, TrainIdx: 7, Distance: 1},
		{QueryIdx: 2, TrainIdx: 8, Distance: 0},
		{QueryIdx: 3, TrainIdx: 4, Distance: 2},
	}
	got := oneToOne(in)
	want := []features.Match{in[1], in[2]}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("decoder exploded")
	err := error(&StageError{Frame: 7, Stage: StageDescribe, Kind: ErrBackendInvocation, Err: cause})

	if !errors.Is(err, ErrBackendInvocation) || !errors.Is(err, cause) {
		t.Error("errors.Is should match both kind and cause")
	}
	if errors.Is(err, ErrResource) {
		t.Error("errors.Is matched the wrong kind")
	}
	msg := err.Error()
	for _, want := range []string{"frame 7", "describe", "decoder exploded"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q lacks %q", msg, want)
		}
	}
}
