package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ironsheep/feature-bench/internal/config"
	"github.com/ironsheep/feature-bench/internal/imaging"
	"github.com/ironsheep/feature-bench/internal/metrics"
	"github.com/ironsheep/feature-bench/internal/pipeline"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// options holds the command line settings.
type options struct {
	configPath string
	detector   string
	descriptor string
	logLevel   string
}

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("feature-bench %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "feature-bench: %v\n\n", err)
		printUsage()
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func printUsage() {
	fmt.Println("feature-bench - keypoint detection, description and matching benchmark")
	fmt.Println()
	fmt.Println("Usage: feature-bench [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <file>        YAML run configuration (defaults to the KITTI setup)")
	fmt.Println("  --detector <kind>      Override the detector (SHITOMASI, HARRIS, FAST, ...)")
	fmt.Println("  --descriptor <kind>    Override the descriptor (BRIEF, HOG, ...)")
	fmt.Println("  --log-level <level>    debug, info, warn or error")
	fmt.Println("  --version, -v          Print version information")
	fmt.Println("  --help, -h             Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug    Enable per-stage trace logging\n", config.LogLevelEnv)
}

func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		var target *string
		switch args[i] {
		case "--config", "-c":
			target = &opts.configPath
		case "--detector":
			target = &opts.detector
		case "--descriptor":
			target = &opts.descriptor
		case "--log-level":
			target = &opts.logLevel
		default:
			return opts, fmt.Errorf("unknown argument %q", args[i])
		}
		if i+1 >= len(args) {
			return opts, fmt.Errorf("%s needs a value", args[i])
		}
		i++
		*target = args[i]
	}
	return opts, nil
}

func loadConfig(opts options) (*config.File, error) {
	var f *config.File
	if opts.configPath != "" {
		var err error
		if f, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	} else {
		f = config.Default()
		f.ApplyEnv()
	}

	if opts.detector != "" {
		f.Detector = opts.detector
	}
	if opts.descriptor != "" {
		f.Descriptor = opts.descriptor
	}
	if opts.logLevel != "" {
		f.LogLevel = opts.logLevel
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func run(opts options) int {
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feature-bench: %v\n", err)
		return 2
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
	logger.Debug("feature-bench starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pcfg := cfg.Pipeline()
	p, err := pipeline.New(pcfg,
		pipeline.WithLogger(logger),
		pipeline.WithImageSource(imaging.NewFileSource(cfg.GrayMode)),
	)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 2
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg.Output)
	if err != nil {
		logger.Error("failed to open metric outputs", "error", err)
		return 1
	}
	defer closeSinks()

	paths := cfg.ImagePaths()
	logger.Info("starting run",
		"detector", pcfg.Detector,
		"descriptor", pcfg.Descriptor,
		"matcher", pcfg.Matcher,
		"selector", pcfg.Selector,
		"frames", len(paths))

	started := time.Now()
	records, runErr := p.Run(paths)
	benchRun := metrics.NewRun(pcfg.Detector, pcfg.Descriptor, string(pcfg.Matcher), string(pcfg.Selector), started)

	// Partial results are still exported after a failed frame.
	exportErr := sinks.export(ctx, benchRun, records)

	summary := metrics.Summarize(records)
	logger.Info("run finished",
		"run", benchRun.ID,
		"frames", summary.Frames,
		"keypoints", summary.TotalKeypoints,
		"matches", summary.TotalMatches,
		"mean_detection", summary.MeanDetection,
		"mean_description", summary.MeanDescribe,
		"mean_match", summary.MeanMatch)

	if exportErr != nil {
		logger.Error("failed to export metrics", "error", exportErr)
	}
	if runErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			logger.Error("run halted", "frame", stageErr.Frame, "stage", stageErr.Stage, "error", stageErr.Err)
		}
		return 1
	}
	if exportErr != nil {
		return 1
	}
	return 0
}

// sinkSet fans records out to the configured outputs.
type sinkSet struct {
	multi      metrics.MultiSink
	prometheus *metrics.PrometheusSink
	textfile   string
}

func (s sinkSet) export(ctx context.Context, run metrics.Run, records []metrics.Record) error {
	err := s.multi.Export(ctx, run, records)
	if s.prometheus != nil && s.textfile != "" {
		if werr := s.prometheus.WriteTextfile(s.textfile); werr != nil {
			err = errors.Join(err, werr)
		}
	}
	return err
}

func buildSinks(ctx context.Context, out config.Output) (sinkSet, func(), error) {
	var set sinkSet
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if out.JSON {
		set.multi = append(set.multi, metrics.JSONSink{Dir: out.Dir})
	}
	if out.PrometheusTextfile != "" {
		prom, err := metrics.NewPrometheusSink(prometheus.NewRegistry())
		if err != nil {
			return set, closeAll, err
		}
		set.multi = append(set.multi, prom)
		set.prometheus = prom
		set.textfile = out.PrometheusTextfile
	}
	if out.PostgresURL != "" {
		pg, err := metrics.NewPostgresSink(ctx, out.PostgresURL)
		if err != nil {
			return set, closeAll, err
		}
		closers = append(closers, pg.Close)
		set.multi = append(set.multi, pg)
	}
	return set, closeAll, nil
}
