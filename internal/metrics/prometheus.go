package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink records a run into Prometheus collectors registered on a
// caller-owned registry. Collectors accumulate across runs; the detector
// and descriptor labels tell runs apart.
type PrometheusSink struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	keypoints     *prometheus.HistogramVec
	matches       *prometheus.CounterVec
	frames        *prometheus.CounterVec
	lastMatches   *prometheus.GaugeVec
}

// NewPrometheusSink creates the benchmark collectors and registers them on
// reg.
func NewPrometheusSink(reg *prometheus.Registry) (*PrometheusSink, error) {
	runLabels := []string{"detector", "descriptor"}
	s := &PrometheusSink{
		registry: reg,
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feature_bench_stage_duration_seconds",
				Help:    "Per-frame latency of each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			append([]string{"stage"}, runLabels...),
		),
		keypoints: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feature_bench_keypoints",
				Help:    "Keypoints kept per frame",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			runLabels,
		),
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feature_bench_matches_total",
				Help: "Descriptor matches between consecutive frames",
			},
			append([]string{"phase"}, runLabels...),
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feature_bench_frames_total",
				Help: "Frames processed",
			},
			runLabels,
		),
		lastMatches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feature_bench_last_match_count",
				Help: "Matches accepted for the most recent frame",
			},
			runLabels,
		),
	}

	for _, c := range []prometheus.Collector{s.stageDuration, s.keypoints, s.matches, s.frames, s.lastMatches} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return s, nil
}

func (s *PrometheusSink) Export(ctx context.Context, run Run, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	labels := prometheus.Labels{"detector": run.Detector, "descriptor": run.Descriptor}
	stage := func(name string) prometheus.Observer {
		return s.stageDuration.With(prometheus.Labels{"stage": name, "detector": run.Detector, "descriptor": run.Descriptor})
	}
	phase := func(name string) prometheus.Counter {
		return s.matches.With(prometheus.Labels{"phase": name, "detector": run.Detector, "descriptor": run.Descriptor})
	}

	for _, r := range records {
		stage("detect").Observe(r.DetectionTime.Seconds())
		stage("describe").Observe(r.DescriptionTime.Seconds())
		if r.Frame > 0 {
			stage("match").Observe(r.MatchTime.Seconds())
		}
		s.keypoints.With(labels).Observe(float64(r.Keypoints))
		phase("candidate").Add(float64(r.MatchesBeforeFilter))
		phase("accepted").Add(float64(r.MatchCount))
		s.frames.With(labels).Inc()
	}
	if len(records) > 0 {
		s.lastMatches.With(labels).Set(float64(records[len(records)-1].MatchCount))
	}
	return nil
}

// WriteTextfile writes everything on the sink's registry to path in the
// Prometheus text exposition format.
func (s *PrometheusSink) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
