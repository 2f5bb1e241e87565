package telemetry

import (
	"math"
	"sort"

	"lanetrack/internal/lane"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the frames of a run.
type Summary struct {
	Frames         int
	ColdStarts     int
	LowConfidence  int
	TrackLost      int
	MeanAbsOffset  float64
	MaxAbsOffset   float64
	MedianRadius   float64 // over finite left and right radii, +Inf if none
	StraightFrames int     // frames where both boundaries were straight
}

// Summarize computes run-level statistics.
func Summarize(frames []FrameRecord) Summary {
	s := Summary{Frames: len(frames), MedianRadius: math.Inf(1)}
	if len(frames) == 0 {
		return s
	}

	offsets := make([]float64, 0, len(frames))
	var radii []float64
	for _, f := range frames {
		if f.Mode == lane.ModeColdStart.String() {
			s.ColdStarts++
		}
		if f.LowConfidence {
			s.LowConfidence++
		}
		if f.TrackLost {
			s.TrackLost++
		}

		abs := math.Abs(f.Offset)
		offsets = append(offsets, abs)
		s.MaxAbsOffset = math.Max(s.MaxAbsOffset, abs)

		straight := 0
		for _, r := range [2]float64{f.LeftRadius, f.RightRadius} {
			if math.IsInf(r, 0) {
				straight++
				continue
			}
			radii = append(radii, r)
		}
		if straight == 2 {
			s.StraightFrames++
		}
	}

	s.MeanAbsOffset = stat.Mean(offsets, nil)
	if len(radii) > 0 {
		sort.Float64s(radii)
		s.MedianRadius = stat.Quantile(0.5, stat.Empirical, radii, nil)
	}
	return s
}
