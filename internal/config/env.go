package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LANETRACK_"

// ApplyEnv loads envFile when it exists, then applies LANETRACK_*
// overrides. Variables already set in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	strs := map[string]*string{
		"INPUT":            &c.Video.Input,
		"OUTPUT":           &c.Video.Output,
		"CODEC":            &c.Video.Codec,
		"SEARCH_OUTPUT":    &c.Video.SearchOutput,
		"CALIBRATION_DIR":  &c.Calibration.Dir,
		"CALIBRATION_FILE": &c.Calibration.File,
		"DETECTIONS":       &c.Detector.File,
		"DB":               &c.Telemetry.DB,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FILE":         &c.Log.File,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WIDTH":           &c.Video.Width,
		"HEIGHT":          &c.Video.Height,
		"HISTORY_SIZE":    &c.Tracking.HistorySize,
		"MIN_WARM_PIXELS": &c.Tracking.MinWarmPixels,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	floats := map[string]*float64{
		"FPS":            &c.Video.FPS,
		"MAX_OFFSET":     &c.Tracking.MaxOffsetMeters,
		"LANE_WIDTH":     &c.Tracking.LaneWidthMeters,
		"MIN_CONFIDENCE": &c.Detector.MinConfidence,
	}
	for key, dst := range floats {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
	}

	bools := map[string]*bool{
		"LOG_NO_COLORS": &c.Log.NoColors,
		"UNCALIBRATED":  &c.Calibration.Uncalibrated,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}

	if v, ok := lookup("LABELS"); ok {
		c.Detector.Labels = nil
		for _, label := range strings.Split(v, ",") {
			if label = strings.TrimSpace(label); label != "" {
				c.Detector.Labels = append(c.Detector.Labels, label)
			}
		}
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
