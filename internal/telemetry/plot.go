package telemetry

import (
	"errors"
	"fmt"
	"math"
	"os"

	"lanetrack/pkg/colorutil"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MaxPlotRadius clips curvature radii so straight stretches do not flatten
// the chart.
const MaxPlotRadius = 5000.0

// PlotRun writes a PNG with the offset trend above the curvature trend.
// Track-lost frames are marked on the offset chart.
func PlotRun(frames []FrameRecord, title, path string) error {
	if len(frames) == 0 {
		return errors.New("no frames to plot")
	}

	offsetPts := make(plotter.XYs, 0, len(frames))
	lostPts := make(plotter.XYs, 0)
	radiusPts := make(plotter.XYs, 0, len(frames))
	for _, f := range frames {
		x := float64(f.Frame)
		offsetPts = append(offsetPts, plotter.XY{X: x, Y: f.Offset})
		if f.TrackLost {
			lostPts = append(lostPts, plotter.XY{X: x, Y: f.Offset})
		}
		radiusPts = append(radiusPts, plotter.XY{X: x, Y: clipRadius((f.LeftRadius + f.RightRadius) / 2)})
	}

	pOffset := plot.New()
	pOffset.Title.Text = fmt.Sprintf("%s - Center Offset", title)
	pOffset.X.Label.Text = "Frame"
	pOffset.Y.Label.Text = "Offset (m)"

	offsetLine, err := plotter.NewLine(offsetPts)
	if err != nil {
		return err
	}
	offsetLine.Color = colorutil.Blue
	offsetLine.Width = vg.Points(1)
	pOffset.Add(plotter.NewGrid(), offsetLine)
	pOffset.Legend.Add("offset", offsetLine)

	if len(lostPts) > 0 {
		lost, err := plotter.NewScatter(lostPts)
		if err != nil {
			return err
		}
		lost.Color = colorutil.Red
		lost.Shape = draw.CrossGlyph{}
		pOffset.Add(lost)
		pOffset.Legend.Add("track lost", lost)
	}

	pRadius := plot.New()
	pRadius.Title.Text = fmt.Sprintf("%s - Curve Radius", title)
	pRadius.X.Label.Text = "Frame"
	pRadius.Y.Label.Text = "Radius (m)"
	pRadius.Y.Min = 0
	pRadius.Y.Max = MaxPlotRadius

	radiusLine, err := plotter.NewLine(radiusPts)
	if err != nil {
		return err
	}
	radiusLine.Color = colorutil.Green
	radiusLine.Width = vg.Points(1)
	pRadius.Add(plotter.NewGrid(), radiusLine)

	for _, p := range []*plot.Plot{pOffset, pRadius} {
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	img := vgimg.New(14*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	plots := [][]*plot.Plot{{pOffset}, {pRadius}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot: %w", err)
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return f.Close()
}

func clipRadius(r float64) float64 {
	if math.IsInf(r, 0) || math.IsNaN(r) || r > MaxPlotRadius {
		return MaxPlotRadius
	}
	return r
}
