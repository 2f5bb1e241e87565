// Command calibrate estimates camera parameters from a directory of
// checkerboard images and saves them as JSON for lanetrack -calibration.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"lanetrack/internal/camera"
	"lanetrack/internal/version"
	applog "lanetrack/pkg/log"
)

func main() {
	dir := flag.String("dir", "", "Directory of checkerboard images")
	out := flag.String("o", "calibration.json", "Output parameters file")
	cols := flag.Int("cols", 11, "Inner corners per row")
	rows := flag.Int("rows", 8, "Inner corners per column")
	width := flag.Int("width", 1280, "Width images are resized to before the corner search")
	height := flag.Int("height", 720, "Height images are resized to before the corner search")
	level := flag.String("log-level", "info", "Log level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("calibrate"))
		return
	}
	if *dir == "" {
		fmt.Println("Usage: calibrate -dir <images> [-o calibration.json] [-cols 11 -rows 8]")
		os.Exit(2)
	}

	logger, err := applog.New(applog.Options{Level: *level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(2)
	}
	entry := applog.Component(logger, "calibrate")

	fmt.Printf("=== Loading images from %s ===\n", *dir)
	images, err := camera.LoadImages(*dir, entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading images: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, m := range images {
			m.Close()
		}
	}()
	fmt.Printf("Loaded %d images\n", len(images))

	fmt.Printf("\n=== Calibrating (%dx%d pattern) ===\n", *cols, *rows)
	opts := camera.DefaultCalibrationOptions()
	opts.Pattern = image.Pt(*cols, *rows)
	opts.Size = image.Pt(*width, *height)
	opts.Logger = entry

	params, err := camera.Calibrate(images, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Used %d of %d images, RMS reprojection error %.4f\n", params.Images, len(images), params.RMS)
	fmt.Printf("fx=%.2f fy=%.2f cx=%.2f cy=%.2f\n",
		params.Matrix[0][0], params.Matrix[1][1], params.Matrix[0][2], params.Matrix[1][2])
	fmt.Printf("distortion=%v\n", params.Distortion)

	if err := params.Save(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving parameters: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nSaved %s\n", *out)
}
