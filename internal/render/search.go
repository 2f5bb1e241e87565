package render

import (
	"image"

	"lanetrack/internal/lane"
	"lanetrack/pkg/colorutil"

	"gocv.io/x/gocv"
)

// SearchView renders the mask with the proximity bands of both fits
// shaded, for inspecting the search. The caller owns the returned Mat.
func SearchView(m *lane.Mask, left, right lane.Polynomial, margin int) (gocv.Mat, error) {
	gray, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.Bytes())
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	base := gocv.NewMat()
	defer base.Close()
	gocv.CvtColor(gray, &base, gocv.ColorGrayToBGR)

	bands := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), m.Height, m.Width, gocv.MatTypeCV8UC3)
	defer bands.Close()

	mg := float64(margin)
	sides := gocv.NewPointsVectorFromPoints([][]image.Point{
		band(left, left, m.Height, -mg, mg),
		band(right, right, m.Height, -mg, mg),
	})
	defer sides.Close()
	gocv.FillPoly(&bands, sides, colorutil.Teal)

	center := gocv.NewPointsVectorFromPoints([][]image.Point{
		band(left, right, m.Height, mg, -mg),
	})
	defer center.Close()
	gocv.FillPoly(&bands, center, colorutil.Indigo)

	out := gocv.NewMat()
	gocv.AddWeighted(base, 1, bands, 0.9, 0, &out)

	fits := gocv.NewPointsVectorFromPoints([][]image.Point{
		curve(left, m.Height, 0),
		curve(right, m.Height, 0),
	})
	defer fits.Close()
	gocv.Polylines(&out, fits, false, colorutil.Yellow, 2)

	return out, nil
}
