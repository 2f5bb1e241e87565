package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"lanetrack/internal/camera"
	"lanetrack/internal/lane"
	"lanetrack/internal/mask"
	"lanetrack/internal/perspective"
	"lanetrack/internal/render"
	"lanetrack/internal/telemetry"
	"lanetrack/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var frameSize = image.Pt(1280, 720)

// roadFrame draws both reference lane lines on a dark road.
func roadFrame() gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 60, 60, 0), frameSize.Y, frameSize.X, gocv.MatTypeCV8UC3)
	gocv.Line(&m, image.Pt(190, 720), image.Pt(596, 447), colorutil.White, 12)
	gocv.Line(&m, image.Pt(1125, 720), image.Pt(685, 447), colorutil.White, 12)
	return m
}

type sliceSource struct {
	frames []gocv.Mat
	next   int
	err    error // returned instead of end of stream
}

func (s *sliceSource) Read(dst *gocv.Mat) error {
	if s.next >= len(s.frames) {
		if s.err != nil {
			return s.err
		}
		return ErrEndOfStream
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return nil
}

type countingSink struct {
	sizes []image.Point
	err   error
}

func (s *countingSink) Write(frame gocv.Mat) error {
	if s.err != nil {
		return s.err
	}
	s.sizes = append(s.sizes, image.Pt(frame.Cols(), frame.Rows()))
	return nil
}

type memRecorder struct {
	records []telemetry.FrameRecord
	err     error
}

func (r *memRecorder) Record(rec telemetry.FrameRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

type failingDetector struct{ calls int }

func (d *failingDetector) Detect(gocv.Mat) ([]render.Detection, error) {
	d.calls++
	return nil, errors.New("model unavailable")
}

func testOptions(t *testing.T) Options {
	t.Helper()
	model, err := camera.NewModel(camera.Identity(frameSize.X, frameSize.Y))
	require.NoError(t, err)
	t.Cleanup(model.Close)

	mapping, err := perspective.DefaultMapping(frameSize.X, frameSize.Y, perspective.DefaultInsetRatio)
	require.NoError(t, err)

	return Options{
		FrameSize:     frameSize,
		Camera:        model,
		Mapping:       mapping,
		Thresholds:    mask.DefaultThresholds(),
		Tuning:        lane.DefaultTuning(),
		Projector:     render.DefaultProjectorOptions(),
		MinConfidence: 0.5,
	}
}

func newTestSource(t *testing.T, n int) *sliceSource {
	t.Helper()
	src := &sliceSource{}
	for i := 0; i < n; i++ {
		src.frames = append(src.frames, roadFrame())
	}
	t.Cleanup(func() {
		for _, f := range src.frames {
			f.Close()
		}
	})
	return src
}

func TestRunProcessesEveryFrame(t *testing.T) {
	rec := &memRecorder{}
	opts := testOptions(t)
	opts.Recorder = rec

	p, err := New(opts)
	require.NoError(t, err)
	defer p.Close()

	sink := &countingSink{}
	stats, err := p.Run(context.Background(), newTestSource(t, 3), sink)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, []image.Point{frameSize, frameSize, frameSize}, sink.sizes)
	require.Len(t, rec.records, 3)
	for i, r := range rec.records {
		assert.Equal(t, i, r.Frame)
		assert.InDelta(t, 0, r.Offset, 0.1, "frame %d", i)
		assert.False(t, r.TrackLost)
	}
	assert.Equal(t, "COLD_START", rec.records[0].Mode)
	assert.Equal(t, "WARM_START", rec.records[1].Mode)
	assert.Equal(t, "proximity", rec.records[2].Search)
}

func TestRunSurvivesDetectorAndRecorderFailures(t *testing.T) {
	det := &failingDetector{}
	opts := testOptions(t)
	opts.Detector = det
	opts.Recorder = &memRecorder{err: errors.New("disk full")}

	p, err := New(opts)
	require.NoError(t, err)
	defer p.Close()

	sink := &countingSink{}
	stats, err := p.Run(context.Background(), newTestSource(t, 2), sink)
	require.NoError(t, err)

	assert.Len(t, sink.sizes, 2, "no frame is dropped")
	assert.Equal(t, 2, det.calls)
	assert.Equal(t, 2, stats.DetectorErrors)
	assert.Equal(t, 2, stats.RecorderErrors)
}

func TestRunStopsOnIOErrors(t *testing.T) {
	p, err := New(testOptions(t))
	require.NoError(t, err)
	defer p.Close()

	readErr := errors.New("device unplugged")
	src := newTestSource(t, 1)
	src.err = readErr
	stats, err := p.Run(context.Background(), src, &countingSink{})
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, 1, stats.Frames)

	writeErr := errors.New("no space")
	_, err = p.Run(context.Background(), newTestSource(t, 1), &countingSink{err: writeErr})
	assert.ErrorIs(t, err, writeErr)
}

func TestRunHonoursCancellation(t *testing.T) {
	p, err := New(testOptions(t))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &countingSink{}
	stats, err := p.Run(ctx, newTestSource(t, 2), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Frames)
	assert.Empty(t, sink.sizes)
}

func TestProcessFrameLetterboxes(t *testing.T) {
	p, err := New(testOptions(t))
	require.NoError(t, err)
	defer p.Close()

	small := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 60, 60, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer small.Close()

	frame, err := p.ProcessFrame(small)
	require.NoError(t, err)
	defer frame.Close()
	assert.Equal(t, frameSize.X, frame.Output.Cols())
	assert.Equal(t, frameSize.Y, frame.Output.Rows())
	assert.Equal(t, 0, frame.Index)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = p.ProcessFrame(empty)
	assert.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	opts := testOptions(t)
	opts.Camera = nil
	_, err := New(opts)
	assert.Error(t, err)

	opts = testOptions(t)
	opts.FrameSize = image.Pt(640, 360)
	_, err = New(opts)
	assert.Error(t, err)
}

func TestFilterDetections(t *testing.T) {
	dets := []render.Detection{
		{Label: "car", Confidence: 0.9},
		{Label: "car", Confidence: 0.49},
		{Label: "truck", Confidence: 0.5},
	}
	assert.Len(t, FilterDetections(dets, 0.5, nil), 2)
	got := FilterDetections(dets, 0.5, []string{"car"})
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Confidence)
}

func TestLoadDetections(t *testing.T) {
	input := `{"frame":0,"boxes":[{"x1":10,"y1":20,"x2":50,"y2":60,"label":"car","conf":0.8,"distance":14.2}]}

{"frame":2,"boxes":[{"x1":1,"y1":2,"x2":3,"y2":4,"label":"car","conf":0.6}]}
`
	d, err := LoadDetections(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Frames())

	first, _ := d.Detect(gocv.Mat{})
	require.Len(t, first, 1)
	assert.Equal(t, image.Rect(10, 20, 50, 60), first[0].Rect())
	assert.Equal(t, 14.2, first[0].Distance)

	second, _ := d.Detect(gocv.Mat{})
	assert.Empty(t, second)
	third, _ := d.Detect(gocv.Mat{})
	assert.Len(t, third, 1)

	_, err = LoadDetections(strings.NewReader("{not json}\n"))
	assert.Error(t, err)
}

func TestProgressFields(t *testing.T) {
	res := lane.Result{NextMode: lane.ModeWarmStart, Metrics: lane.Metrics{Offset: -0.2}}

	fields := progressFields(300, 1200, res)
	assert.Equal(t, 300, fields["frames"])
	assert.Equal(t, "WARM_START", fields["mode"])
	assert.Equal(t, "25.0", fields["percent"])

	// live devices report no length
	assert.NotContains(t, progressFields(300, 0, res), "percent")
	// reported counts can be short
	assert.Equal(t, "100.0", progressFields(1300, 1200, res)["percent"])
}
