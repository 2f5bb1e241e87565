// Package pipeline runs the per-frame lane tracking sequence over a stream
// of frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"time"

	"lanetrack/internal/camera"
	"lanetrack/internal/lane"
	"lanetrack/internal/mask"
	"lanetrack/internal/perspective"
	"lanetrack/internal/render"
	"lanetrack/internal/telemetry"
	"lanetrack/pkg/log"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by a FrameSource with no more frames.
var ErrEndOfStream = errors.New("end of stream")

// FrameSource yields raw frames.
type FrameSource interface {
	Read(dst *gocv.Mat) error
}

// FrameSink consumes composited frames.
type FrameSink interface {
	Write(frame gocv.Mat) error
}

// Detector supplies object boxes for a frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]render.Detection, error)
}

// Recorder persists per-frame measurements.
type Recorder interface {
	Record(rec telemetry.FrameRecord) error
}

// Options configures a Pipeline. Camera, Mapping and FrameSize are required.
type Options struct {
	FrameSize  image.Point // frames are letterboxed to this size first
	Camera     *camera.Model
	Mapping    *perspective.Mapping
	Thresholds mask.Thresholds
	Tuning     lane.Tuning
	Projector  render.ProjectorOptions

	Detector      Detector // optional
	MinConfidence float64
	Labels        []string // empty accepts every label

	Recorder   Recorder  // optional
	SearchSink FrameSink // optional search-window debug view
	ShowStatus bool      // draw the tracking mode in the corner

	// ExpectedFrames is the source's reported length, 0 when unknown. It
	// only feeds progress logging.
	ExpectedFrames int

	Logger *logrus.Entry
}

// Frame is the output of one processed frame.
type Frame struct {
	Index      int
	Output     gocv.Mat
	Result     lane.Result
	Detections []render.Detection

	// DetectorErr is set when the detector failed; the frame carries no
	// detections.
	DetectorErr error
}

// Close releases the output Mat.
func (f *Frame) Close() {
	f.Output.Close()
}

// Stats summarises a run.
type Stats struct {
	Frames         int
	LowConfidence  int
	TrackLost      int
	Fallbacks      int
	DetectorErrors int
	RecorderErrors int
	Elapsed        time.Duration
}

// FPS returns the processing rate.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Pipeline processes frames strictly in order. It is not safe for
// concurrent use.
type Pipeline struct {
	opts      Options
	rect      *perspective.Rectifier
	extractor *mask.Extractor
	tracker   *lane.Tracker
	projector *render.Projector
	log       *logrus.Entry
	index     int
}

// New wires the stages described by opts.
func New(opts Options) (*Pipeline, error) {
	if opts.Camera == nil {
		return nil, errors.New("pipeline: camera model required")
	}
	if opts.Mapping == nil {
		return nil, errors.New("pipeline: perspective mapping required")
	}
	if opts.FrameSize.X <= 0 || opts.FrameSize.Y <= 0 {
		return nil, fmt.Errorf("pipeline: invalid frame size %v", opts.FrameSize)
	}
	if opts.Mapping.Size != opts.FrameSize {
		return nil, fmt.Errorf("pipeline: mapping size %v does not match frame size %v", opts.Mapping.Size, opts.FrameSize)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	size := opts.Mapping.Size
	params := opts.Tuning.ParamsFor(size.X, size.Y)

	return &Pipeline{
		opts:      opts,
		rect:      perspective.NewRectifier(opts.Mapping),
		extractor: mask.NewExtractor(opts.Thresholds),
		tracker:   lane.NewTracker(params, lane.WithLogger(logger.WithField("component", "tracker"))),
		projector: render.NewProjector(opts.Projector),
		log:       logger,
	}, nil
}

// Tracker exposes the lane tracker.
func (p *Pipeline) Tracker() *lane.Tracker { return p.tracker }

// ProcessFrame runs every stage on raw and returns the composited frame.
// The caller must Close the returned Frame.
func (p *Pipeline) ProcessFrame(raw gocv.Mat) (Frame, error) {
	index := p.index
	p.index++
	logger := p.log.WithField("frame", index)

	if raw.Empty() {
		return Frame{}, fmt.Errorf("frame %d: empty", index)
	}

	boxed := perspective.Letterbox(raw, p.opts.FrameSize)
	defer boxed.Close()

	undistorted := p.opts.Camera.Undistort(boxed)
	defer undistorted.Close()

	birdsEye, inverse := p.rect.Rectify(undistorted)
	defer birdsEye.Close()

	m, err := p.extractor.Extract(birdsEye)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", index, err)
	}

	res := p.tracker.Track(m)
	if res.LowConfidence {
		logger.Debug("low confidence fit")
	}

	out := p.projector.Render(undistorted, p.opts.Mapping.Size, res.Smoothed.Left, res.Smoothed.Right, inverse, p.rect)
	render.Annotate(&out, res.Metrics)
	if p.opts.ShowStatus {
		render.Status(&out, statusText(res))
	}

	frame := Frame{Index: index, Output: out, Result: res}

	if p.opts.Detector != nil {
		dets, err := p.opts.Detector.Detect(boxed)
		if err != nil {
			frame.DetectorErr = err
			logger.WithError(err).Warn("detector failed")
		} else {
			frame.Detections = FilterDetections(dets, p.opts.MinConfidence, p.opts.Labels)
			render.DrawDetections(&frame.Output, frame.Detections)
		}
	}

	if p.opts.SearchSink != nil {
		p.writeSearchView(logger, m, res)
	}

	return frame, nil
}

func (p *Pipeline) writeSearchView(logger *logrus.Entry, m *lane.Mask, res lane.Result) {
	view, err := render.SearchView(m, res.Raw.Left, res.Raw.Right, p.tracker.Params().Locator.Margin)
	if err != nil {
		logger.WithError(err).Warn("search view failed")
		return
	}
	defer view.Close()
	if err := p.opts.SearchSink.Write(view); err != nil {
		logger.WithError(err).Warn("search view write failed")
	}
}

// Run processes frames from src into sink until the source is exhausted or
// ctx is cancelled. Source and sink errors stop the run.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink FrameSink) (Stats, error) {
	var stats Stats
	start := time.Now()

	raw := gocv.NewMat()
	defer raw.Close()

	for {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}

		if err := src.Read(&raw); err != nil {
			if errors.Is(err, ErrEndOfStream) {
				break
			}
			stats.Elapsed = time.Since(start)
			return stats, fmt.Errorf("read frame %d: %w", p.index, err)
		}

		frame, err := p.ProcessFrame(raw)
		if err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}

		if p.opts.Recorder != nil {
			if err := p.opts.Recorder.Record(telemetry.RecordFromResult(frame.Index, frame.Result)); err != nil {
				stats.RecorderErrors++
				p.log.WithError(err).WithField("frame", frame.Index).Warn("failed to record frame")
			}
		}

		err = sink.Write(frame.Output)
		frame.Close()
		if err != nil {
			stats.Elapsed = time.Since(start)
			return stats, fmt.Errorf("write frame %d: %w", frame.Index, err)
		}

		stats.add(frame.Result)
		if frame.DetectorErr != nil {
			stats.DetectorErrors++
		}
		if stats.Frames%100 == 0 {
			p.log.WithFields(progressFields(stats.Frames, p.opts.ExpectedFrames, frame.Result)).Info("progress")
		}
	}

	stats.Elapsed = time.Since(start)
	return stats, nil
}

func progressFields(frames, expected int, res lane.Result) logrus.Fields {
	fields := logrus.Fields{
		"frames": frames,
		"mode":   res.NextMode.String(),
		"offset": res.Metrics.Offset,
	}
	if expected > 0 {
		fields["percent"] = fmt.Sprintf("%.1f", 100*float64(min(frames, expected))/float64(expected))
	}
	return fields
}

func (s *Stats) add(res lane.Result) {
	s.Frames++
	if res.LowConfidence {
		s.LowConfidence++
	}
	if res.TrackLost {
		s.TrackLost++
	}
	if res.Fallback() {
		s.Fallbacks++
	}
}

func statusText(res lane.Result) string {
	switch {
	case res.TrackLost:
		return "TRACK LOST"
	case res.LowConfidence:
		return "LOW CONFIDENCE"
	default:
		return res.Mode.String()
	}
}

// FilterDetections keeps boxes at or above minConfidence whose label is in
// labels. An empty labels list accepts every label.
func FilterDetections(dets []render.Detection, minConfidence float64, labels []string) []render.Detection {
	out := make([]render.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < minConfidence {
			continue
		}
		if len(labels) > 0 && !slices.Contains(labels, d.Label) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Close releases the stage resources.
func (p *Pipeline) Close() {
	p.rect.Close()
	p.extractor.Close()
}
