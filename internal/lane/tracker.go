package lane

import (
	"errors"
	"math"

	"lanetrack/pkg/log"

	"github.com/sirupsen/logrus"
)

// Result is the tracker's output for one frame.
type Result struct {
	Mode        Mode    `json:"mode"`      // mode the frame was processed in
	Search      Search  `json:"search"`    // search that produced the pixels
	NextMode    Mode    `json:"next_mode"` // mode the following frame will use
	Raw         Fits    `json:"raw"`
	Smoothed    Fits    `json:"smoothed"`
	Metrics     Metrics `json:"metrics"`
	LeftPixels  int     `json:"left_pixels"`
	RightPixels int     `json:"right_pixels"`

	// LowConfidence is set when either side could not be fitted and
	// DefaultPolynomial was substituted.
	LowConfidence bool `json:"low_confidence"`
	// TrackLost is set when the smoothed offset exceeded the plausible
	// range. History was cleared and the next frame starts cold.
	TrackLost bool `json:"track_lost"`

	HistoryLen int `json:"history_len"`
}

// Fallback reports whether a warm-start frame had to fall back to the
// histogram search.
func (r Result) Fallback() bool {
	return r.Mode == ModeWarmStart && r.Search == SearchHistogram
}

// Tracker owns the search mode and fit history across frames. It is not
// safe for concurrent use.
type Tracker struct {
	params  Params
	mode    Mode
	history *FitHistory
	log     *logrus.Entry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the entry used for mode transitions.
func WithLogger(entry *logrus.Entry) Option {
	return func(t *Tracker) {
		if entry != nil {
			t.log = entry
		}
	}
}

// NewTracker returns a tracker in cold start with an empty history.
func NewTracker(params Params, opts ...Option) *Tracker {
	t := &Tracker{
		params:  params,
		mode:    ModeColdStart,
		history: NewFitHistory(params.HistorySize),
		log:     log.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mode returns the mode the next frame will be processed in.
func (t *Tracker) Mode() Mode { return t.mode }

// History exposes the fit history. Callers must not modify it.
func (t *Tracker) History() *FitHistory { return t.history }

// Params returns the tracker's settings.
func (t *Tracker) Params() Params { return t.params }

// Reset clears the history and returns to cold start.
func (t *Tracker) Reset() {
	t.history.Clear()
	t.setMode(ModeColdStart, "reset")
}

// Track processes one bird's-eye mask.
func (t *Tracker) Track(m *Mask) Result {
	res := Result{Mode: t.mode}

	left, right, search := t.locate(m)
	res.Search = search
	res.LeftPixels, res.RightPixels = left.Len(), right.Len()

	next := ModeWarmStart
	var err error
	res.Raw.Left, res.Raw.Right, err = FitPair(left, right)
	if err != nil {
		var dfe *DegenerateFitError
		if errors.As(err, &dfe) {
			t.log.WithFields(logrus.Fields{
				"left":  dfe.Left,
				"right": dfe.Right,
			}).Debug("degenerate fit, default substituted")
		}
		res.LowConfidence = true
		next = ModeColdStart
	} else {
		t.history.Push(res.Raw)
	}

	smoothed, ok := t.history.Mean()
	if !ok {
		smoothed = res.Raw
	}
	res.Smoothed = smoothed
	res.Metrics = Measure(smoothed.Left, smoothed.Right, m.Width, m.Height, t.params.Scale)

	if math.Abs(res.Metrics.Offset) > t.params.MaxOffsetMeters {
		t.log.WithField("offset", res.Metrics.Offset).Warn("track lost, clearing history")
		res.TrackLost = true
		t.history.Clear()
		next = ModeColdStart
	}

	t.setMode(next, "frame")
	res.NextMode = next
	res.HistoryLen = t.history.Len()
	return res
}

// locate runs the search for the current mode.
func (t *Tracker) locate(m *Mask) (left, right Pixels, search Search) {
	loc := t.params.Locator
	if t.mode != ModeWarmStart {
		left, right = loc.Histogram(m)
		return left, right, SearchHistogram
	}

	ref, ok := t.history.Mean()
	if !ok {
		left, right = loc.Histogram(m)
		return left, right, SearchHistogram
	}

	left, right = loc.Proximity(m, ref.Left, ref.Right)
	if left.Len() < t.params.MinWarmPixels || right.Len() < t.params.MinWarmPixels {
		t.log.WithFields(logrus.Fields{
			"left":  left.Len(),
			"right": right.Len(),
		}).Debug("proximity search sparse, falling back to histogram")
		left, right = loc.Histogram(m)
		return left, right, SearchHistogram
	}
	return left, right, SearchProximity
}

func (t *Tracker) setMode(next Mode, reason string) {
	if next != t.mode {
		t.log.WithFields(logrus.Fields{
			"from":   t.mode.String(),
			"to":     next.String(),
			"reason": reason,
		}).Debug("mode transition")
	}
	t.mode = next
}
