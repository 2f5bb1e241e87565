package lane

import (
	"bytes"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 1200
	testHeight = 700
)

func newTestTracker(tuning Tuning) *Tracker {
	return NewTracker(tuning.ParamsFor(testWidth, testHeight))
}

func TestTrackerStartsCold(t *testing.T) {
	tr := newTestTracker(DefaultTuning())
	assert.Equal(t, ModeColdStart, tr.Mode())
	assert.Zero(t, tr.History().Len())
}

func TestTrackerStraightLanes(t *testing.T) {
	tr := newTestTracker(DefaultTuning())
	m := laneMask(testWidth, testHeight, vertical(300), vertical(900), 5)

	res := tr.Track(m)
	assert.Equal(t, ModeColdStart, res.Mode)
	assert.Equal(t, SearchHistogram, res.Search)
	assert.Equal(t, ModeWarmStart, res.NextMode)
	assert.False(t, res.LowConfidence)
	assert.False(t, res.TrackLost)
	assert.Equal(t, 1, res.HistoryLen)

	assert.InDelta(t, 300, res.Smoothed.Left.At(699), 1e-6)
	assert.InDelta(t, 900, res.Smoothed.Right.At(699), 1e-6)
	assert.InDelta(t, 0, res.Metrics.Offset, 1e-6)
	for _, r := range []float64{res.Metrics.LeftRadius, res.Metrics.RightRadius} {
		assert.True(t, math.IsInf(r, 1) || r > 1e6, "radius %v", r)
	}

	res = tr.Track(m)
	assert.Equal(t, ModeWarmStart, res.Mode)
	assert.Equal(t, SearchProximity, res.Search)
	assert.False(t, res.Fallback())
	assert.Equal(t, 700*11, res.LeftPixels)
	assert.Equal(t, 2, res.HistoryLen)
}

func TestTrackerWarmFallback(t *testing.T) {
	tr := newTestTracker(DefaultTuning())
	tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 5))
	require.Equal(t, ModeWarmStart, tr.Mode())

	// Both lines jump out of the proximity band.
	res := tr.Track(laneMask(testWidth, testHeight, vertical(100), vertical(1100), 5))
	assert.Equal(t, ModeWarmStart, res.Mode)
	assert.Equal(t, SearchHistogram, res.Search)
	assert.True(t, res.Fallback())
	assert.InDelta(t, 100, res.Raw.Left.C, 1e-6)
	assert.InDelta(t, 1100, res.Raw.Right.C, 1e-6)
	assert.InDelta(t, 200, res.Smoothed.Left.C, 1e-6)
	assert.False(t, res.TrackLost)
	assert.Equal(t, ModeWarmStart, res.NextMode)
}

func TestTrackerDegenerateInput(t *testing.T) {
	tr := newTestTracker(DefaultTuning())

	res := tr.Track(NewMask(testWidth, testHeight))
	assert.True(t, res.LowConfidence)
	assert.Equal(t, DefaultPolynomial, res.Raw.Left)
	assert.Equal(t, DefaultPolynomial, res.Raw.Right)
	assert.Equal(t, res.Raw, res.Smoothed)
	assert.Zero(t, res.HistoryLen)
	assert.Equal(t, ModeColdStart, res.NextMode)

	tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 5))
	want, _ := tr.History().Mean()

	res = tr.Track(NewMask(testWidth, testHeight))
	assert.True(t, res.LowConfidence)
	assert.Equal(t, 1, res.HistoryLen, "degenerate fit must not be appended")
	assert.Equal(t, want, res.Smoothed)
	assert.InDelta(t, 0, res.Metrics.Offset, 1e-6)
	assert.Equal(t, ModeColdStart, tr.Mode())
}

func TestTrackerDivergenceRecovery(t *testing.T) {
	tuning := DefaultTuning()
	tuning.LaneWidthMeters = 16
	tr := newTestTracker(tuning)

	tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 0))
	require.Equal(t, ModeWarmStart, tr.Mode())

	// Smoothed center lands at 450: 150 px * 16/1200 m = 2.0 m.
	res := tr.Track(laneMask(testWidth, testHeight, vertical(0), vertical(600), 0))
	assert.InDelta(t, 2.0, res.Metrics.Offset, 1e-6)
	assert.True(t, res.TrackLost)
	assert.Zero(t, res.HistoryLen)
	assert.Equal(t, ModeColdStart, res.NextMode)
	assert.Zero(t, tr.History().Len())

	res = tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 0))
	assert.Equal(t, ModeColdStart, res.Mode)
	assert.Equal(t, SearchHistogram, res.Search)
	assert.False(t, res.TrackLost)
	assert.Equal(t, 1, res.HistoryLen)
}

func TestTrackerSmoothingConverges(t *testing.T) {
	tr := newTestTracker(DefaultTuning())

	// Vertex at row 350, 49 px of bow over the frame.
	curvedLeft := Polynomial{A: 0.0004, B: -0.28, C: 349}
	curvedRight := Polynomial{A: 0.0004, B: -0.28, C: 949}
	for i := 0; i < 5; i++ {
		res := tr.Track(laneMask(testWidth, testHeight, curvedLeft, curvedRight, 5))
		require.False(t, res.LowConfidence)
	}
	mean, _ := tr.History().Mean()
	require.InDelta(t, 0.0004, mean.Left.A, 1e-5)

	straightMask := laneMask(testWidth, testHeight, vertical(300), vertical(900), 5)
	prev := math.Abs(mean.Left.A)
	for i := 0; i < 10; i++ {
		res := tr.Track(straightMask)
		require.Equal(t, SearchProximity, res.Search, "frame %d", i)
		a := math.Abs(res.Smoothed.Left.A)
		if i < 5 {
			assert.Less(t, a, prev, "frame %d", i)
		} else {
			assert.InDelta(t, 0, res.Smoothed.Left.A, 1e-9, "frame %d", i)
			assert.InDelta(t, 0, res.Smoothed.Right.A, 1e-9, "frame %d", i)
		}
		prev = a
		assert.LessOrEqual(t, res.HistoryLen, 5)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := newTestTracker(DefaultTuning())
	tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 5))
	require.Equal(t, ModeWarmStart, tr.Mode())

	tr.Reset()
	assert.Equal(t, ModeColdStart, tr.Mode())
	assert.Zero(t, tr.History().Len())
}

func TestTrackerLogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	tr := NewTracker(DefaultTuning().ParamsFor(testWidth, testHeight), WithLogger(logrus.NewEntry(logger)))
	tr.Track(laneMask(testWidth, testHeight, vertical(300), vertical(900), 5))

	assert.Contains(t, buf.String(), "mode transition")
	assert.Contains(t, buf.String(), "WARM_START")
}
