package lane

import (
	"fmt"
	"math"
)

// Scale converts bird's-eye pixels to meters.
type Scale struct {
	XMetersPerPixel float64
	YMetersPerPixel float64
}

// ScaleFor maps a lane of laneWidthM meters onto the frame width and a
// look-ahead of lookAheadM meters onto the frame height.
func ScaleFor(width, height int, laneWidthM, lookAheadM float64) Scale {
	return Scale{
		XMetersPerPixel: laneWidthM / float64(width),
		YMetersPerPixel: lookAheadM / float64(height),
	}
}

// Metrics are the per-frame lane measurements.
type Metrics struct {
	LeftRadius  float64 `json:"left_radius_m"`
	RightRadius float64 `json:"right_radius_m"`
	Offset      float64 `json:"offset_m"` // negative: vehicle left of lane center
}

// MeanRadius averages the two boundary radii.
func (m Metrics) MeanRadius() float64 {
	return (m.LeftRadius + m.RightRadius) / 2
}

// Lines formats the metrics for on-screen annotation.
func (m Metrics) Lines() []string {
	return []string{
		fmt.Sprintf("Curve Radius [m]: %s", formatMeters(m.MeanRadius())),
		fmt.Sprintf("Center Offset [m]: %.3f", m.Offset),
	}
}

func formatMeters(v float64) string {
	if math.IsInf(v, 0) || v > 1e6 {
		return "straight"
	}
	return fmt.Sprintf("%.1f", v)
}

// Curvature returns the radius of curvature in meters at pixel row yEval.
// The pixel-space coefficients are rescaled to meters before applying
// R = (1 + (2Ay + B)^2)^1.5 / |2A|. A straight fit returns +Inf.
func Curvature(fit Polynomial, scale Scale, yEval float64) float64 {
	sx, sy := scale.XMetersPerPixel, scale.YMetersPerPixel
	a := fit.A * sx / (sy * sy)
	b := fit.B * sx / sy
	if a == 0 {
		return math.Inf(1)
	}
	y := yEval * sy
	d := 2*a*y + b
	return math.Pow(1+d*d, 1.5) / math.Abs(2*a)
}

// Position returns the vehicle's lateral offset from the lane center in
// meters, taking the frame's horizontal center as the vehicle position.
// Negative means the vehicle sits left of the lane center.
func Position(left, right Polynomial, width int, yEval float64, scale Scale) float64 {
	laneCenter := (left.At(yEval) + right.At(yEval)) / 2
	frameCenter := float64(width) / 2
	return (frameCenter - laneCenter) * scale.XMetersPerPixel
}

// Measure computes both radii and the offset at the bottom row of a
// width x height bird's-eye frame.
func Measure(left, right Polynomial, width, height int, scale Scale) Metrics {
	yEval := float64(height - 1)
	return Metrics{
		LeftRadius:  Curvature(left, scale, yEval),
		RightRadius: Curvature(right, scale, yEval),
		Offset:      Position(left, right, width, yEval, scale),
	}
}
