// Package config loads the lanetrack configuration document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"lanetrack/internal/camera"
	"lanetrack/internal/lane"
	"lanetrack/internal/mask"
	"lanetrack/internal/perspective"
	"lanetrack/internal/render"
	applog "lanetrack/pkg/log"

	"github.com/go-playground/validator/v10"
)

// VideoConfig selects the input and output streams.
type VideoConfig struct {
	Input        string  `json:"input"`
	Output       string  `json:"output"`
	Codec        string  `json:"codec" validate:"len=4"`
	FPS          float64 `json:"fps" validate:"gte=0"` // 0 uses the source rate
	Width        int     `json:"width" validate:"gte=64"`
	Height       int     `json:"height" validate:"gte=64"`
	SearchOutput string  `json:"search_output"` // fmt pattern for search-window images
}

// CalibrationConfig selects where camera parameters come from. File wins
// over Dir. With neither, Uncalibrated must be set to process frames
// without undistortion.
type CalibrationConfig struct {
	Dir          string `json:"dir"`
	File         string `json:"file"`
	Uncalibrated bool   `json:"uncalibrated"`
	PatternCols int    `json:"pattern_cols" validate:"gte=2"`
	PatternRows int    `json:"pattern_rows" validate:"gte=2"`
	Width       int    `json:"width" validate:"gt=0"`
	Height      int    `json:"height" validate:"gt=0"`
}

// PerspectiveConfig shapes the bird's-eye rectangle.
type PerspectiveConfig struct {
	InsetRatio float64 `json:"inset_ratio" validate:"gt=0,lt=0.5"`
}

// MaskConfig holds the lane-mask thresholds.
type MaskConfig struct {
	SobelMin      int `json:"sobel_min" validate:"gte=0,lte=255"`
	GrayMin       int `json:"gray_min" validate:"gte=0,lte=255"`
	SaturationMin int `json:"saturation_min" validate:"gte=0,lte=255"`
	HueLow        int `json:"hue_low" validate:"gte=0,lte=180"`
	HueHigh       int `json:"hue_high" validate:"gtefield=HueLow,lte=180"`
	CloseKernel   int `json:"close_kernel" validate:"gte=0,lte=31"`
}

// TrackingConfig holds the search and smoothing constants.
type TrackingConfig struct {
	Windows         int     `json:"windows" validate:"gte=1"`
	ReferenceWidth  int     `json:"reference_width" validate:"gt=0"`
	WindowMargin    int     `json:"window_margin" validate:"gt=0"`
	MinPixels       int     `json:"min_pixels" validate:"gte=0"`
	MinWarmPixels   int     `json:"min_warm_pixels" validate:"gte=0"`
	HistorySize     int     `json:"history_size" validate:"gte=1,lte=100"`
	MaxOffsetMeters float64 `json:"max_offset_m" validate:"gt=0"`
	LaneWidthMeters float64 `json:"lane_width_m" validate:"gt=0"`
	LookAheadMeters float64 `json:"look_ahead_m" validate:"gt=0"`
}

// RenderConfig controls the overlay.
type RenderConfig struct {
	CorridorInset float64 `json:"corridor_inset" validate:"gte=0,lt=0.5"`
	BoundaryWidth float64 `json:"boundary_width" validate:"gt=0,lte=0.5"`
	FrameWeight   float64 `json:"frame_weight" validate:"gte=0,lte=1"`
	OverlayWeight float64 `json:"overlay_weight" validate:"gte=0,lte=1"`
	ShowStatus    bool    `json:"show_status"`
}

// DetectorConfig points at replayed detections. An empty Labels list draws
// every class.
type DetectorConfig struct {
	File          string   `json:"file"`
	MinConfidence float64  `json:"min_confidence" validate:"gte=0,lte=1"`
	Labels        []string `json:"labels"`
}

// TelemetryConfig controls metric persistence.
type TelemetryConfig struct {
	DB string `json:"db"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level    string `json:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File     string `json:"file"`
	NoColors bool   `json:"no_colors"`
	Caller   bool   `json:"caller"`
}

// Config aggregates all configuration sections.
type Config struct {
	Video       VideoConfig       `json:"video"`
	Calibration CalibrationConfig `json:"calibration"`
	Perspective PerspectiveConfig `json:"perspective"`
	Mask        MaskConfig        `json:"mask"`
	Tracking    TrackingConfig    `json:"tracking"`
	Render      RenderConfig      `json:"render"`
	Detector    DetectorConfig    `json:"detector"`
	Telemetry   TelemetryConfig   `json:"telemetry"`
	Log         LogConfig         `json:"log"`
}

// Default returns the stock configuration.
func Default() *Config {
	th := mask.DefaultThresholds()
	tu := lane.DefaultTuning()
	pr := render.DefaultProjectorOptions()
	cal := camera.DefaultCalibrationOptions()

	return &Config{
		Video: VideoConfig{
			Output: "lane_detection_result.mp4",
			Codec:  "mp4v",
			Width:  perspective.ReferenceSize.X,
			Height: perspective.ReferenceSize.Y,
		},
		Calibration: CalibrationConfig{
			PatternCols: cal.Pattern.X,
			PatternRows: cal.Pattern.Y,
			Width:       cal.Size.X,
			Height:      cal.Size.Y,
		},
		Perspective: PerspectiveConfig{InsetRatio: perspective.DefaultInsetRatio},
		Mask: MaskConfig{
			SobelMin:      th.SobelMin,
			GrayMin:       th.GrayMin,
			SaturationMin: th.SaturationMin,
			HueLow:        th.HueLow,
			HueHigh:       th.HueHigh,
			CloseKernel:   th.CloseKernel,
		},
		Tracking: TrackingConfig{
			Windows:         tu.Windows,
			ReferenceWidth:  tu.ReferenceWidth,
			WindowMargin:    tu.WindowMargin,
			MinPixels:       tu.MinPixels,
			MinWarmPixels:   tu.MinWarmPixels,
			HistorySize:     tu.HistorySize,
			MaxOffsetMeters: tu.MaxOffsetMeters,
			LaneWidthMeters: tu.LaneWidthMeters,
			LookAheadMeters: tu.LookAheadMeters,
		},
		Render: RenderConfig{
			CorridorInset: pr.CorridorInset,
			BoundaryWidth: pr.BoundaryWidth,
			FrameWeight:   pr.FrameWeight,
			OverlayWeight: pr.OverlayWeight,
		},
		Detector: DetectorConfig{MinConfidence: 0.5, Labels: []string{"car"}},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads a JSON config. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every section's constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ErrNoCalibration is returned by CalibrationSource when no parameters are
// configured and uncalibrated processing was not requested.
var ErrNoCalibration = errors.New("no camera calibration configured")

// CalibrationSource says where camera parameters come from.
type CalibrationSource int

const (
	CalibrationFromFile CalibrationSource = iota + 1
	CalibrationFromImages
	CalibrationNone // distortion-free, by explicit request
)

// CalibrationSource resolves the calibration section.
func (c *Config) CalibrationSource() (CalibrationSource, error) {
	switch {
	case c.Calibration.File != "":
		return CalibrationFromFile, nil
	case c.Calibration.Dir != "":
		return CalibrationFromImages, nil
	case c.Calibration.Uncalibrated:
		return CalibrationNone, nil
	default:
		return 0, fmt.Errorf("%w: set calibration.file or calibration.dir, or calibration.uncalibrated", ErrNoCalibration)
	}
}

// FrameSize is the processing frame size.
func (c *Config) FrameSize() image.Point {
	return image.Pt(c.Video.Width, c.Video.Height)
}

// Thresholds converts the mask section.
func (c *Config) Thresholds() mask.Thresholds {
	return mask.Thresholds{
		SobelMin:      c.Mask.SobelMin,
		GrayMin:       c.Mask.GrayMin,
		SaturationMin: c.Mask.SaturationMin,
		HueLow:        c.Mask.HueLow,
		HueHigh:       c.Mask.HueHigh,
		CloseKernel:   c.Mask.CloseKernel,
	}
}

// Tuning converts the tracking section.
func (c *Config) Tuning() lane.Tuning {
	t := c.Tracking
	return lane.Tuning{
		Windows:         t.Windows,
		ReferenceWidth:  t.ReferenceWidth,
		WindowMargin:    t.WindowMargin,
		MinPixels:       t.MinPixels,
		MinWarmPixels:   t.MinWarmPixels,
		HistorySize:     t.HistorySize,
		MaxOffsetMeters: t.MaxOffsetMeters,
		LaneWidthMeters: t.LaneWidthMeters,
		LookAheadMeters: t.LookAheadMeters,
	}
}

// Projector converts the render section, keeping the stock colors.
func (c *Config) Projector() render.ProjectorOptions {
	opts := render.DefaultProjectorOptions()
	opts.CorridorInset = c.Render.CorridorInset
	opts.BoundaryWidth = c.Render.BoundaryWidth
	opts.FrameWeight = c.Render.FrameWeight
	opts.OverlayWeight = c.Render.OverlayWeight
	return opts
}

// CalibrationOptions converts the calibration section.
func (c *Config) CalibrationOptions() camera.CalibrationOptions {
	opts := camera.DefaultCalibrationOptions()
	opts.Pattern = image.Pt(c.Calibration.PatternCols, c.Calibration.PatternRows)
	opts.Size = image.Pt(c.Calibration.Width, c.Calibration.Height)
	return opts
}

// LogOptions converts the log section.
func (c *Config) LogOptions() applog.Options {
	return applog.Options{
		Level:    c.Log.Level,
		NoColors: c.Log.NoColors,
		Caller:   c.Log.Caller,
		File:     c.Log.File,
	}
}
