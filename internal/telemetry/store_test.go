package telemetry

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"lanetrack/internal/lane"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lanetrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.StartRun("highway.mp4")
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	rec := s.Recorder(runID)
	res := lane.Result{
		Mode:        lane.ModeWarmStart,
		Search:      lane.SearchProximity,
		Metrics:     lane.Metrics{LeftRadius: math.Inf(1), RightRadius: 812.5, Offset: -0.21},
		LeftPixels:  5400,
		RightPixels: 3100,
		HistoryLen:  5,
	}
	require.NoError(t, rec.Record(RecordFromResult(0, res)))

	res.TrackLost = true
	res.LowConfidence = true
	require.NoError(t, rec.Record(RecordFromResult(1, res)))
	require.NoError(t, s.FinishRun(runID, 2))

	frames, err := s.Frames(runID)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, "WARM_START", frames[0].Mode)
	assert.Equal(t, "proximity", frames[0].Search)
	assert.True(t, math.IsInf(frames[0].LeftRadius, 1), "straight stored as NULL")
	assert.InDelta(t, 812.5, frames[0].RightRadius, 1e-9)
	assert.InDelta(t, -0.21, frames[0].Offset, 1e-9)
	assert.Equal(t, 5400, frames[0].LeftPixels)
	assert.False(t, frames[0].TrackLost)
	assert.True(t, frames[1].TrackLost)
	assert.True(t, frames[1].LowConfidence)

	run, err := s.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, "highway.mp4", run.Source)
	assert.Equal(t, 2, run.Frames)
	assert.False(t, run.FinishedAt.IsZero())

	latest, err := s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, runID, latest.ID)
}

func TestStoreMissingRun(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRun()
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.Run("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun("nope", 1), ErrRunNotFound)
}

func TestPlotRun(t *testing.T) {
	frames := []FrameRecord{
		{Frame: 0, Offset: 0.1, LeftRadius: 400, RightRadius: 600},
		{Frame: 1, Offset: 0.2, LeftRadius: math.Inf(1), RightRadius: math.Inf(1)},
		{Frame: 2, Offset: 1.8, LeftRadius: 300, RightRadius: 350, TrackLost: true},
	}
	path := filepath.Join(t.TempDir(), "run.png")
	require.NoError(t, PlotRun(frames, "test", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	assert.Error(t, PlotRun(nil, "empty", path))
}

func TestChartRun(t *testing.T) {
	frames := []FrameRecord{
		{Frame: 0, Offset: 0.1, LeftRadius: 400, RightRadius: 600},
		{Frame: 1, Offset: 1.9, LeftRadius: math.Inf(1), RightRadius: 700, TrackLost: true},
	}
	var buf bytes.Buffer
	require.NoError(t, ChartRun(frames, "highway.mp4", &buf))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Center offset")
	assert.Contains(t, html, "track lost")

	assert.Error(t, ChartRun(nil, "empty", &buf))
}
