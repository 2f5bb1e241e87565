// Command lanetrack tracks lane boundaries through a video and writes the
// annotated result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lanetrack/internal/camera"
	"lanetrack/internal/config"
	"lanetrack/internal/perspective"
	"lanetrack/internal/pipeline"
	"lanetrack/internal/telemetry"
	"lanetrack/internal/version"
	"lanetrack/internal/video"
	applog "lanetrack/pkg/log"

	"github.com/sirupsen/logrus"
)

type flags struct {
	config      string
	envFile     string
	input       string
	output      string
	calibFile   string
	calibDir    string
	noUndistort bool
	detections  string
	db          string
	searchOut   string
	logLevel    string
	status      bool
	showVersion bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to JSON config")
	flag.StringVar(&f.envFile, "env", ".env", "Optional .env file with LANETRACK_* overrides")
	flag.StringVar(&f.input, "i", "", "Input video file or camera device id")
	flag.StringVar(&f.output, "o", "", "Output video file")
	flag.StringVar(&f.calibFile, "calibration", "", "Saved calibration JSON (from cmd/calibrate)")
	flag.StringVar(&f.calibDir, "calib-dir", "", "Directory of checkerboard images to calibrate from")
	flag.BoolVar(&f.noUndistort, "no-undistort", false, "Process frames without calibration (distortion-free camera)")
	flag.StringVar(&f.detections, "detections", "", "JSON-lines file of per-frame detections")
	flag.StringVar(&f.db, "db", "", "SQLite database for per-frame metrics")
	flag.StringVar(&f.searchOut, "search-out", "", "Write search-window images, e.g. out/search_%05d.png")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&f.status, "status", false, "Draw the tracking mode on each frame")
	flag.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if f.showVersion {
		fmt.Println(version.String("lanetrack"))
		return
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if cfg.Video.Input == "" {
		fmt.Println("Usage: lanetrack -i <video> [-o <output>] [-calibration <file> | -calib-dir <dir> | -no-undistort] [-config <file>]")
		os.Exit(2)
	}

	logger, err := applog.New(cfg.LogOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("lanetrack failed")
		stop()
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.Load(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(f.envFile); err != nil {
		return nil, err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Video.Input, f.input)
	set(&cfg.Video.Output, f.output)
	set(&cfg.Video.SearchOutput, f.searchOut)
	set(&cfg.Calibration.File, f.calibFile)
	set(&cfg.Calibration.Dir, f.calibDir)
	set(&cfg.Detector.File, f.detections)
	set(&cfg.Telemetry.DB, f.db)
	set(&cfg.Log.Level, f.logLevel)
	if f.status {
		cfg.Render.ShowStatus = true
	}
	if f.noUndistort {
		cfg.Calibration.Uncalibrated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.CalibrationSource(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	entry := applog.Component(logger, "lanetrack")
	size := cfg.FrameSize()

	params, err := loadCalibration(cfg, applog.Component(logger, "camera"))
	if err != nil {
		return err
	}
	model, err := camera.NewModel(params)
	if err != nil {
		return err
	}
	defer model.Close()

	mapping, err := perspective.DefaultMapping(size.X, size.Y, cfg.Perspective.InsetRatio)
	if err != nil {
		return err
	}

	src, err := video.OpenSource(cfg.Video.Input)
	if err != nil {
		return err
	}
	defer src.Close()

	fps := cfg.Video.FPS
	if fps <= 0 {
		fps = src.FPS()
	}
	if fps <= 0 {
		fps = 30
	}

	sink, err := video.CreateSink(cfg.Video.Output, cfg.Video.Codec, fps, size)
	if err != nil {
		return err
	}
	defer sink.Close()

	opts := pipeline.Options{
		FrameSize:     size,
		Camera:        model,
		Mapping:       mapping,
		Thresholds:    cfg.Thresholds(),
		Tuning:        cfg.Tuning(),
		Projector:     cfg.Projector(),
		MinConfidence: cfg.Detector.MinConfidence,
		Labels:        cfg.Detector.Labels,
		ShowStatus:    cfg.Render.ShowStatus,
		Logger:        applog.Component(logger, "pipeline"),

		ExpectedFrames: src.FrameCount(),
	}

	if cfg.Detector.File != "" {
		df, err := os.Open(cfg.Detector.File)
		if err != nil {
			return fmt.Errorf("failed to open detections: %w", err)
		}
		det, err := pipeline.LoadDetections(df)
		df.Close()
		if err != nil {
			return err
		}
		entry.WithField("frames", det.Frames()).Info("loaded detections")
		opts.Detector = det
	}

	if cfg.Video.SearchOutput != "" {
		opts.SearchSink = video.NewImageSink(cfg.Video.SearchOutput)
	}

	var (
		store *telemetry.Store
		runID string
	)
	if cfg.Telemetry.DB != "" {
		store, err = telemetry.Open(cfg.Telemetry.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.StartRun(cfg.Video.Input)
		if err != nil {
			return err
		}
		opts.Recorder = store.Recorder(runID)
		entry.WithField("run", runID).Info("recording metrics")
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	defer p.Close()

	entry.WithFields(logrus.Fields{
		"input":  cfg.Video.Input,
		"output": cfg.Video.Output,
		"size":   fmt.Sprintf("%dx%d", size.X, size.Y),
		"fps":    fps,
	}).Info("processing")

	stats, runErr := p.Run(ctx, src, sink)

	if store != nil {
		if err := store.FinishRun(runID, stats.Frames); err != nil {
			entry.WithError(err).Warn("failed to close run")
		}
	}

	entry.WithFields(logrus.Fields{
		"frames":         stats.Frames,
		"low_confidence": stats.LowConfidence,
		"track_lost":     stats.TrackLost,
		"fallbacks":      stats.Fallbacks,
		"fps":            fmt.Sprintf("%.1f", stats.FPS()),
	}).Info("done")

	if errors.Is(runErr, context.Canceled) {
		entry.Warn("interrupted")
		return nil
	}
	return runErr
}

func loadCalibration(cfg *config.Config, entry *logrus.Entry) (*camera.Parameters, error) {
	source, err := cfg.CalibrationSource()
	if err != nil {
		return nil, err
	}

	switch source {
	case config.CalibrationFromFile:
		p, err := camera.Load(cfg.Calibration.File)
		if err != nil {
			return nil, err
		}
		entry.WithField("file", cfg.Calibration.File).Info("loaded calibration")
		return p, nil

	case config.CalibrationFromImages:
		images, err := camera.LoadImages(cfg.Calibration.Dir, entry)
		if err != nil {
			return nil, err
		}
		defer func() {
			for _, m := range images {
				m.Close()
			}
		}()
		opts := cfg.CalibrationOptions()
		opts.Logger = entry
		return camera.Calibrate(images, opts)

	default:
		entry.Warn("uncalibrated processing requested, frames are not undistorted")
		size := cfg.FrameSize()
		return camera.Identity(size.X, size.Y), nil
	}
}
