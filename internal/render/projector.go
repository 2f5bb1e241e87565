// Package render draws lane overlays, telemetry text and detections onto
// camera frames.
package render

import (
	"image"
	"image/color"

	"lanetrack/internal/lane"
	"lanetrack/internal/perspective"
	"lanetrack/pkg/colorutil"
	"lanetrack/pkg/geometry"

	"gocv.io/x/gocv"
)

// ProjectorOptions controls the lane overlay.
type ProjectorOptions struct {
	CorridorInset float64 // corridor inset from each boundary, fraction of width
	BoundaryWidth float64 // boundary stroke, fraction of height
	FrameWeight   float64
	OverlayWeight float64
	BoundaryColor color.RGBA
	CorridorColor color.RGBA
}

// DefaultProjectorOptions returns the stock overlay: red boundaries, a
// green corridor, blended 0.7/0.3 over the frame.
func DefaultProjectorOptions() ProjectorOptions {
	return ProjectorOptions{
		CorridorInset: 400.0 / 1920.0,
		BoundaryWidth: 50.0 / 720.0,
		FrameWeight:   0.7,
		OverlayWeight: 0.3,
		BoundaryColor: colorutil.Red,
		CorridorColor: colorutil.Green,
	}
}

// Projector renders fitted lanes back onto the camera view.
type Projector struct {
	opts ProjectorOptions
}

// NewProjector returns a projector using opts.
func NewProjector(opts ProjectorOptions) *Projector {
	return &Projector{opts: opts}
}

// Overlay draws the boundaries and corridor in bird's-eye space on a black
// canvas of the given size. The caller owns the returned Mat.
func (p *Projector) Overlay(size image.Point, left, right lane.Polynomial) gocv.Mat {
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC3)

	thickness := max(1, int(p.opts.BoundaryWidth*float64(size.Y)))
	inset := p.opts.CorridorInset * float64(size.X)

	boundaries := gocv.NewPointsVectorFromPoints([][]image.Point{
		curve(left, size.Y, 0),
		curve(right, size.Y, 0),
	})
	defer boundaries.Close()
	gocv.Polylines(&canvas, boundaries, false, p.opts.BoundaryColor, thickness)

	corridor := gocv.NewPointsVectorFromPoints([][]image.Point{
		band(left, right, size.Y, inset, -inset),
	})
	defer corridor.Close()
	gocv.FillPoly(&canvas, corridor, p.opts.CorridorColor)

	return canvas
}

// Render warps the lane overlay into the camera view and blends it over
// undistorted. The caller owns the returned Mat.
func (p *Projector) Render(undistorted gocv.Mat, birdsEyeSize image.Point, left, right lane.Polynomial,
	inverse geometry.Homography, rect *perspective.Rectifier) gocv.Mat {

	overlay := p.Overlay(birdsEyeSize, left, right)
	defer overlay.Close()

	warped := rect.Project(overlay, inverse)
	defer warped.Close()

	if warped.Cols() != undistorted.Cols() || warped.Rows() != undistorted.Rows() {
		resized := gocv.NewMat()
		gocv.Resize(warped, &resized, image.Pt(undistorted.Cols(), undistorted.Rows()), 0, 0, gocv.InterpolationLinear)
		warped.Close()
		warped = resized
	}

	out := gocv.NewMat()
	gocv.AddWeighted(undistorted, p.opts.FrameWeight, warped, p.opts.OverlayWeight, 0, &out)
	return out
}

// curve samples fit at every row, shifted horizontally by dx.
func curve(fit lane.Polynomial, height int, dx float64) []image.Point {
	pts := make([]image.Point, height)
	for y := 0; y < height; y++ {
		pts[y] = geometry.NewPoint2D(fit.At(float64(y))+dx, float64(y)).Image()
	}
	return pts
}

// band is the closed polygon from left+dl down the frame and back up
// along right+dr.
func band(left, right lane.Polynomial, height int, dl, dr float64) []image.Point {
	down := curve(left, height, dl)
	up := curve(right, height, dr)
	pts := make([]image.Point, 0, 2*height)
	pts = append(pts, down...)
	for i := len(up) - 1; i >= 0; i-- {
		pts = append(pts, up[i])
	}
	return pts
}
