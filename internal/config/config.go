package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/feature-bench/internal/features"
	"github.com/ironsheep/feature-bench/internal/imaging"
	"github.com/ironsheep/feature-bench/internal/matching"
	"github.com/ironsheep/feature-bench/internal/pipeline"
)

// File is the on-disk run configuration.
type File struct {
	Detector   string                `yaml:"detector"`
	Descriptor string                `yaml:"descriptor"`
	Matcher    matching.Kind         `yaml:"matcher"`
	Distance   matching.DistanceMode `yaml:"distance"`
	Selector   pipeline.Selector     `yaml:"selector"`

	// RegionOfInterest restricts keypoints to a rectangle; set
	// focus_on_region to false to keep the whole image.
	RegionOfInterest features.Rect `yaml:"region_of_interest"`
	FocusOnRegion    bool          `yaml:"focus_on_region"`

	MaxKeypoints   int     `yaml:"max_keypoints"`
	RatioThreshold float64 `yaml:"ratio_threshold"`
	MaxOverlap     float64 `yaml:"max_overlap"`
	BufferCapacity int     `yaml:"buffer_capacity"`

	GrayMode imaging.GrayMode `yaml:"gray_mode"`
	LogLevel string           `yaml:"log_level"`

	Images ImageSequence `yaml:"images"`
	Output Output        `yaml:"output"`
}

// ImageSequence names frames base_dir + prefix + zero-padded index +
// extension for every index from StartIndex to EndIndex inclusive.
type ImageSequence struct {
	BaseDir    string `yaml:"base_dir"`
	Prefix     string `yaml:"prefix"`
	Extension  string `yaml:"extension"`
	StartIndex int    `yaml:"start_index"`
	EndIndex   int    `yaml:"end_index"`
	FillWidth  int    `yaml:"fill_width"`
}

// Output lists the metric sinks of a run. Empty values disable a sink.
type Output struct {
	Dir                string `yaml:"dir"`
	JSON               bool   `yaml:"json"`
	PrometheusTextfile string `yaml:"prometheus_textfile"`
	PostgresURL        string `yaml:"postgres_url"`
}

// Default returns the built-in configuration.
func Default() *File {
	defaults := pipeline.DefaultConfig()
	return &File{
		Detector:         defaults.Detector,
		Descriptor:       defaults.Descriptor,
		Matcher:          defaults.Matcher,
		Distance:         defaults.Distance,
		Selector:         defaults.Selector,
		RegionOfInterest: features.Rect{X: 535, Y: 180, Width: 180, Height: 150},
		FocusOnRegion:    true,
		RatioThreshold:   defaults.RatioThreshold,
		MaxOverlap:       defaults.MaxOverlap,
		BufferCapacity:   defaults.BufferCapacity,
		GrayMode:         imaging.GrayLuma,
		LogLevel:         "info",
		Images: ImageSequence{
			BaseDir:    "../images/",
			Prefix:     "KITTI/2011_09_26/image_00/data/000000",
			Extension:  ".png",
			StartIndex: 0,
			EndIndex:   9,
			FillWidth:  4,
		},
		Output: Output{Dir: "results", JSON: true},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. Relative image and output directories are resolved against the
// directory holding the file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	f.Images.BaseDir = resolve(dir, f.Images.BaseDir)
	f.Output.Dir = resolve(dir, f.Output.Dir)
	if f.Output.PrometheusTextfile != "" {
		f.Output.PrometheusTextfile = resolve(dir, f.Output.PrometheusTextfile)
	}

	f.ApplyEnv()

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return f, nil
}

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "FEATURE_BENCH_LOG_LEVEL"

// ApplyEnv applies environment overrides to f.
func (f *File) ApplyEnv() {
	if level := os.Getenv(LogLevelEnv); level != "" {
		f.LogLevel = level
	}
}

// resolve joins a relative path onto dir, keeping a trailing separator.
func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	joined := filepath.Join(dir, p)
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		joined += string(filepath.Separator)
	}
	return joined
}

// Validate checks the file-level settings and the derived pipeline
// configuration.
func (f *File) Validate() error {
	var errs []error
	if err := f.Pipeline().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch f.GrayMode {
	case imaging.GrayLuma, imaging.GrayLightness:
	default:
		errs = append(errs, fmt.Errorf("unknown gray mode %q", f.GrayMode))
	}
	if f.Images.EndIndex < f.Images.StartIndex {
		errs = append(errs, fmt.Errorf("image end index %d is before start index %d", f.Images.EndIndex, f.Images.StartIndex))
	}
	if f.Images.StartIndex < 0 {
		errs = append(errs, fmt.Errorf("image start index %d must not be negative", f.Images.StartIndex))
	}
	if _, err := ParseLogLevel(f.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f.Images.FillWidth < 0 {
		errs = append(errs, fmt.Errorf("fill width %d must not be negative", f.Images.FillWidth))
	}
	return errors.Join(errs...)
}

// Pipeline returns the pipeline configuration described by the file.
func (f *File) Pipeline() pipeline.Config {
	cfg := pipeline.Config{
		Detector:       f.Detector,
		Descriptor:     f.Descriptor,
		Matcher:        f.Matcher,
		Distance:       f.Distance,
		Selector:       f.Selector,
		MaxKeypoints:   f.MaxKeypoints,
		RatioThreshold: f.RatioThreshold,
		MaxOverlap:     f.MaxOverlap,
		BufferCapacity: f.BufferCapacity,
	}
	if f.FocusOnRegion {
		roi := f.RegionOfInterest
		cfg.RegionOfInterest = &roi
	}
	return cfg
}

// ImagePaths lists the frame files of the sequence in processing order.
func (f *File) ImagePaths() []string {
	seq := f.Images
	if seq.EndIndex < seq.StartIndex {
		return nil
	}
	paths := make([]string, 0, seq.EndIndex-seq.StartIndex+1)
	for i := seq.StartIndex; i <= seq.EndIndex; i++ {
		paths = append(paths, fmt.Sprintf("%s%s%0*d%s", seq.BaseDir, seq.Prefix, seq.FillWidth, i, seq.Extension))
	}
	return paths
}

// ParseLogLevel maps debug, info, warn and error (any case) to slog levels.
// An empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
