package lane

// Tuning holds the tracker's empirical constants. Window geometry is given
// at ReferenceWidth and scaled to the actual frame width.
type Tuning struct {
	Windows         int
	ReferenceWidth  int
	WindowMargin    int // half-width of a search window at ReferenceWidth
	MinPixels       int // recentre threshold at ReferenceWidth
	MinWarmPixels   int // per side; below this the warm search falls back
	HistorySize     int
	MaxOffsetMeters float64 // beyond this the track is treated as lost
	LaneWidthMeters float64 // real width spanned by the bird's-eye frame
	LookAheadMeters float64 // real distance spanned by the bird's-eye frame height
}

// DefaultTuning returns constants calibrated on 1280x720 dash-cam footage.
func DefaultTuning() Tuning {
	return Tuning{
		Windows:         9,
		ReferenceWidth:  1920,
		WindowMargin:    100,
		MinPixels:       50,
		MinWarmPixels:   500,
		HistorySize:     5,
		MaxOffsetMeters: 1.5,
		LaneWidthMeters: 3.7,
		LookAheadMeters: 30,
	}
}

// Params are the tracker settings resolved for one frame size.
type Params struct {
	Width           int
	Height          int
	Locator         Locator
	MinWarmPixels   int
	HistorySize     int
	MaxOffsetMeters float64
	Scale           Scale
}

// ParamsFor resolves the tuning for a width x height bird's-eye frame.
func (t Tuning) ParamsFor(width, height int) Params {
	ref := t.ReferenceWidth
	if ref <= 0 {
		ref = width
	}
	return Params{
		Width:  width,
		Height: height,
		Locator: Locator{
			Windows: t.Windows,
			Margin:  width * t.WindowMargin / ref,
			MinPix:  width * t.MinPixels / ref,
		},
		MinWarmPixels:   t.MinWarmPixels,
		HistorySize:     t.HistorySize,
		MaxOffsetMeters: t.MaxOffsetMeters,
		Scale:           ScaleFor(width, height, t.LaneWidthMeters, t.LookAheadMeters),
	}
}
