// Command lanereport summarizes a recorded lanetrack run and plots its
// offset and curvature over time.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"lanetrack/internal/telemetry"
	"lanetrack/internal/version"
)

func main() {
	dbPath := flag.String("db", "lanetrack.db", "SQLite database written by lanetrack -db")
	runID := flag.String("run", "", "Run id (default: latest run)")
	out := flag.String("o", "", "Write a PNG plot to this path")
	htmlOut := flag.String("html", "", "Write an interactive HTML chart to this path")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("lanereport"))
		return
	}

	store, err := telemetry.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var run telemetry.Run
	if *runID != "" {
		run, err = store.Run(*runID)
	} else {
		run, err = store.LatestRun()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	frames, err := store.Frames(run.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading frames: %v\n", err)
		os.Exit(1)
	}

	s := telemetry.Summarize(frames)
	fmt.Printf("=== Run %s ===\n", run.ID)
	fmt.Printf("Source:    %s\n", run.Source)
	fmt.Printf("Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if !run.FinishedAt.IsZero() {
		fmt.Printf("Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	} else {
		fmt.Printf("Duration:  (unfinished)\n")
	}
	fmt.Printf("Frames:    %d\n", s.Frames)
	if s.Frames > 0 {
		pct := func(n int) float64 { return 100 * float64(n) / float64(s.Frames) }
		fmt.Printf("Cold:      %d (%.1f%%)\n", s.ColdStarts, pct(s.ColdStarts))
		fmt.Printf("Low conf:  %d (%.1f%%)\n", s.LowConfidence, pct(s.LowConfidence))
		fmt.Printf("Lost:      %d (%.1f%%)\n", s.TrackLost, pct(s.TrackLost))
		fmt.Printf("Straight:  %d (%.1f%%)\n", s.StraightFrames, pct(s.StraightFrames))
		fmt.Printf("Offset:    mean |%.3f| m, max |%.3f| m\n", s.MeanAbsOffset, s.MaxAbsOffset)
		if math.IsInf(s.MedianRadius, 0) {
			fmt.Printf("Radius:    straight\n")
		} else {
			fmt.Printf("Radius:    median %.0f m\n", s.MedianRadius)
		}
	}

	if *out != "" {
		if err := telemetry.PlotRun(frames, run.Source, *out); err != nil {
			fmt.Fprintf(os.Stderr, "Error plotting: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nPlot written to %s\n", *out)
	}

	if *htmlOut != "" {
		f, err := os.Create(*htmlOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating chart: %v\n", err)
			os.Exit(1)
		}
		err = telemetry.ChartRun(frames, run.Source, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing chart: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chart written to %s\n", *htmlOut)
	}
}
