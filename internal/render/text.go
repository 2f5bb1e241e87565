package render

import (
	"fmt"
	"image"

	"lanetrack/internal/lane"
	"lanetrack/pkg/colorutil"

	"gocv.io/x/gocv"
)

// Detection is an externally supplied object box.
type Detection struct {
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Label      string  `json:"label"`
	Confidence float64 `json:"conf"`
	Distance   float64 `json:"distance,omitempty"` // meters, 0 when unknown
}

// Rect returns the box as an image rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X1, d.Y1, d.X2, d.Y2)
}

// Annotate writes the curvature and offset lines onto img.
func Annotate(img *gocv.Mat, metrics lane.Metrics) {
	for i, line := range metrics.Lines() {
		gocv.PutText(img, line, image.Pt(40, 70+80*i), gocv.FontHersheyComplexSmall, 1.6, colorutil.White, 2)
	}
}

// Status writes a short status tag in the top-right corner of img.
func Status(img *gocv.Mat, text string) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 0.8, 2)
	org := image.Pt(img.Cols()-size.X-20, 40)
	gocv.PutText(img, text, org, gocv.FontHersheySimplex, 0.8, colorutil.Yellow, 2)
}

// DrawDetections draws each box with its label, confidence and, when
// known, distance.
func DrawDetections(img *gocv.Mat, dets []Detection) {
	for _, d := range dets {
		r := d.Rect()
		gocv.Rectangle(img, r, colorutil.Yellow, 2)
		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		gocv.PutText(img, label, image.Pt(r.Min.X, r.Min.Y-10), gocv.FontHersheySimplex, 0.5, colorutil.Yellow, 2)
		if d.Distance > 0 {
			gocv.PutText(img, fmt.Sprintf("Distance: %.2fm", d.Distance),
				image.Pt(r.Min.X, r.Max.Y+20), gocv.FontHersheySimplex, 0.5, colorutil.Blue, 2)
		}
	}
}
