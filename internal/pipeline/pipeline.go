package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/ironsheep/feature-bench/internal/description"
	"github.com/ironsheep/feature-bench/internal/detection"
	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/framebuf"
	"github.com/ironsheep/feature-bench/internal/imaging"
	"github.com/ironsheep/feature-bench/internal/matching"
	"github.com/ironsheep/feature-bench/internal/metrics"
)

// Pipeline processes a sequence of frames and accumulates their metrics.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	source    imaging.Source
	detector  detection.Backend
	extractor description.Extractor
	matcher   matching.Matcher

	buffer  *framebuf.Buffer
	records []metrics.Record
	next    int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for per-stage trace output. The default
// discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithImageSource replaces the default luma FileSource.
func WithImageSource(src imaging.Source) Option {
	return func(p *Pipeline) { p.source = src }
}

// WithDetector uses d instead of the detector named in the configuration.
// d must implement detection.Detector or detection.ResponseMapper.
func WithDetector(d detection.Backend) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithExtractor uses e instead of the descriptor named in the configuration.
func WithExtractor(e description.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithMatcher uses m instead of the matcher named in the configuration.
func WithMatcher(m matching.Matcher) Option {
	return func(p *Pipeline) { p.matcher = m }
}

// WithClock sets the time source used for stage timing.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and resolves any backend not supplied by an option from
// the detection, description and matching registries.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.source == nil {
		p.source = imaging.NewFileSource(imaging.GrayLuma)
	}

	var err error
	if p.detector == nil {
		p.detector, err = detection.New(cfg.Detector, detection.Params{MaxOverlap: cfg.MaxOverlap})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	switch p.detector.(type) {
	case detection.Detector, detection.ResponseMapper:
	default:
		return nil, fmt.Errorf("%w: detector %s implements neither Detector nor ResponseMapper", ErrInvalidConfig, p.detector.Name())
	}
	if p.extractor == nil {
		p.extractor, err = description.New(cfg.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if p.matcher == nil {
		if cfg.Distance == matching.DistanceBinary && p.extractor.Type() != features.Binary {
			return nil, fmt.Errorf("%w: %s distance needs binary descriptors, %s produces %v",
				ErrInvalidConfig, cfg.Distance, p.extractor.Name(), p.extractor.Type())
		}
		p.matcher, err = matching.New(cfg.Matcher, cfg.Distance)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	p.buffer, err = framebuf.New(cfg.BufferCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process loads the image at path and carries it through every stage.
func (p *Pipeline) Process(path string) (metrics.Record, error) {
	img, err := p.source.Load(path)
	if err != nil {
		idx := p.next
		p.next++
		return metrics.Record{}, resourceError(idx, err)
	}
	return p.ProcessImage(path, img)
}

// ProcessImage carries an already decoded image through every stage. name
// identifies the frame in records and logs.
func (p *Pipeline) ProcessImage(name string, img image.Image) (metrics.Record, error) {
	idx := p.next
	p.next++
	log := p.logger.With("frame", idx)

	gray := p.source.Gray(img)
	if gray == nil || gray.Bounds().Empty() {
		return metrics.Record{}, resourceError(idx, fmt.Errorf("%s has no pixels", name))
	}

	frame := &features.Frame{Index: idx, Name: name, Image: gray}
	if evicted := p.buffer.Push(frame); evicted != nil {
		log.Debug("frame evicted", "evicted", evicted.Index)
	}
	log.Debug("frame ingested", "name", name, "buffered", p.buffer.Len())

	rec := metrics.Record{Frame: idx, Name: name}

	start := p.now()
	kps, err := p.detect(gray)
	rec.DetectionTime = p.now().Sub(start)
	if err != nil {
		return metrics.Record{}, backendError(idx, StageDetect, err)
	}
	rec.Detected = len(kps)
	log.Debug("keypoints detected", "detector", p.detector.Name(), "count", len(kps), "elapsed", rec.DetectionTime)

	if roi := p.cfg.RegionOfInterest; roi != nil {
		kps = filterRegion(kps, *roi)
		log.Debug("keypoints in region", "count", len(kps))
	}

	if p.cfg.MaxKeypoints > 0 && len(kps) > p.cfg.MaxKeypoints {
		byResponse := p.populatesResponse()
		kps = capKeypoints(kps, p.cfg.MaxKeypoints, byResponse)
		rec.CapMode = CapByResponse
		if !byResponse {
			rec.CapMode = CapByOrder
			log.Warn("detector does not score keypoints, capping by detection order",
				"detector", p.detector.Name(), "max", p.cfg.MaxKeypoints)
		}
	}
	frame.Keypoints = kps
	rec.Keypoints = len(kps)

	start = p.now()
	desc, err := p.extractor.Describe(gray, kps)
	rec.DescriptionTime = p.now().Sub(start)
	if err != nil {
		return metrics.Record{}, backendError(idx, StageDescribe, err)
	}
	if desc.Len() != len(kps) {
		return metrics.Record{}, backendError(idx, StageDescribe,
			fmt.Errorf("%s returned %d descriptors for %d keypoints", p.extractor.Name(), desc.Len(), len(kps)))
	}
	frame.Descriptors = desc
	log.Debug("descriptors extracted", "descriptor", p.extractor.Name(), "count", desc.Len(), "elapsed", rec.DescriptionTime)

	prev, err := p.buffer.Previous()
	switch {
	case errors.Is(err, framebuf.ErrInsufficientHistory):
		log.Debug("no previous frame, skipping match")
	case err != nil:
		return metrics.Record{}, backendError(idx, StageMatch, err)
	default:
		start = p.now()
		res, err := p.match(prev, frame)
		rec.MatchTime = p.now().Sub(start)
		if err != nil {
			return metrics.Record{}, backendError(idx, StageMatch, err)
		}
		frame.Matches = res.matches
		rec.MatchesBeforeFilter = res.before
		rec.MatchCount = len(res.matches)
		log.Debug("descriptors matched",
			"matcher", p.matcher.Name(),
			"selector", p.cfg.Selector,
			"candidates", res.before,
			"removed", res.before-len(res.matches),
			"elapsed", rec.MatchTime)
	}

	p.records = append(p.records, rec)
	return rec, nil
}

// Run processes paths in order and stops at the first error. The records
// returned cover every frame completed before that error.
func (p *Pipeline) Run(paths []string) ([]metrics.Record, error) {
	for _, path := range paths {
		rec, err := p.Process(path)
		if err != nil {
			p.logger.Error("frame failed, halting run", "error", err)
			return p.Records(), err
		}
		p.logger.Info("frame processed",
			"frame", rec.Frame,
			"name", rec.Name,
			"keypoints", rec.Keypoints,
			"matches", rec.MatchCount)
	}
	return p.Records(), nil
}

// Records returns a copy of the metrics recorded so far.
func (p *Pipeline) Records() []metrics.Record {
	out := make([]metrics.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Frames returns the frames currently held in the sliding window, oldest
// first.
func (p *Pipeline) Frames() []*features.Frame {
	return p.buffer.Frames()
}
