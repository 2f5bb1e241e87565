package telemetry

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartRun writes an interactive HTML page with the offset and radius
// trends of a run.
func ChartRun(frames []FrameRecord, title string, w io.Writer) error {
	if len(frames) == 0 {
		return errors.New("no frames to chart")
	}

	x := make([]int, len(frames))
	left := make([]opts.LineData, len(frames))
	right := make([]opts.LineData, len(frames))
	offset := make([]opts.LineData, len(frames))
	lost := make([]opts.LineData, len(frames))
	for i, f := range frames {
		x[i] = f.Frame
		left[i] = opts.LineData{Value: clipRadius(f.LeftRadius)}
		right[i] = opts.LineData{Value: clipRadius(f.RightRadius)}
		offset[i] = opts.LineData{Value: f.Offset}
		// "-" is a gap in echarts
		lost[i] = opts.LineData{Value: "-"}
		if f.TrackLost {
			lost[i] = opts.LineData{Value: f.Offset}
		}
	}

	offsetChart := charts.NewLine()
	offsetChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Center offset", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "offset (m)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	offsetChart.SetXAxis(x).
		AddSeries("offset", offset).
		AddSeries("track lost", lost, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	radiusChart := charts.NewLine()
	radiusChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Curvature radius", Subtitle: fmt.Sprintf("clipped at %.0f m", MaxPlotRadius)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "radius (m)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	radiusChart.SetXAxis(x).
		AddSeries("left", left).
		AddSeries("right", right)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(offsetChart, radiusChart)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
