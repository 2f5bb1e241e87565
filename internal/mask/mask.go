// Package mask extracts binary lane-marking masks from bird's-eye frames.
package mask

import (
	"errors"
	"fmt"
	"image"
	"math"

	"lanetrack/internal/lane"

	"gocv.io/x/gocv"
)

// ErrUnsupportedFrame is returned for frames that are not 8-bit BGR.
var ErrUnsupportedFrame = errors.New("unsupported frame type")

// Thresholds are the per-test cutoffs on 8-bit channel values.
type Thresholds struct {
	SobelMin      int `json:"sobel_min"`      // scaled |dx| at or above this
	GrayMin       int `json:"gray_min"`       // gray strictly above this
	SaturationMin int `json:"saturation_min"` // HLS S strictly above this
	HueLow        int `json:"hue_low"`        // HLS H strictly above this
	HueHigh       int `json:"hue_high"`       // HLS H at or below this
	CloseKernel   int `json:"close_kernel"`   // square structuring element size, 0 disables
}

// DefaultThresholds returns cutoffs tuned on daylight highway footage.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SobelMin:      20,
		GrayMin:       200,
		SaturationMin: 90,
		HueLow:        10,
		HueHigh:       30,
		CloseKernel:   5,
	}
}

// Extractor turns rectified frames into lane masks.
type Extractor struct {
	t      Thresholds
	kernel gocv.Mat
}

// NewExtractor prepares the closing kernel for t.
func NewExtractor(t Thresholds) *Extractor {
	e := &Extractor{t: t}
	if t.CloseKernel > 0 {
		e.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(t.CloseKernel, t.CloseKernel))
	}
	return e
}

// Close releases the kernel.
func (e *Extractor) Close() {
	if e.t.CloseKernel > 0 {
		e.kernel.Close()
	}
}

// Extract marks pixels passing the edge or brightness test, or the
// saturation or yellow-hue test, then closes small gaps.
func (e *Extractor) Extract(rectified gocv.Mat) (*lane.Mask, error) {
	if rectified.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrUnsupportedFrame)
	}
	if rectified.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: got %v, want 8-bit BGR", ErrUnsupportedFrame, rectified.Type())
	}

	combined := e.Binary(rectified)
	defer combined.Close()

	return lane.MaskFromBytes(combined.Cols(), combined.Rows(), combined.ToBytes())
}

// Binary returns the 0/255 single-channel mask. The caller owns the Mat.
func (e *Extractor) Binary(bgr gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	edges := e.sobelBinary(gray)
	defer edges.Close()

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, float32(e.t.GrayMin), 255, gocv.ThresholdBinary)

	hls := gocv.NewMat()
	defer hls.Close()
	gocv.CvtColor(bgr, &hls, gocv.ColorBGRToHLS)
	channels := gocv.Split(hls)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	hue, sat := channels[0], channels[2]

	saturated := gocv.NewMat()
	defer saturated.Close()
	gocv.Threshold(sat, &saturated, float32(e.t.SaturationMin), 255, gocv.ThresholdBinary)

	// InRange bounds are inclusive.
	yellow := gocv.NewMat()
	defer yellow.Close()
	gocv.InRangeWithScalar(hue,
		gocv.NewScalar(float64(e.t.HueLow+1), 0, 0, 0),
		gocv.NewScalar(float64(e.t.HueHigh), 0, 0, 0),
		&yellow)

	combined := gocv.NewMat()
	gocv.BitwiseOr(edges, bright, &combined)
	gocv.BitwiseOr(combined, saturated, &combined)
	gocv.BitwiseOr(combined, yellow, &combined)

	if e.t.CloseKernel > 0 {
		gocv.MorphologyEx(combined, &combined, gocv.MorphClose, e.kernel)
	}
	return combined
}

// sobelBinary marks pixels whose horizontal gradient magnitude, scaled to
// 0-255 by the frame maximum, is at least SobelMin. The comparison runs on
// the unrounded scaled value.
func (e *Extractor) sobelBinary(gray gocv.Mat) gocv.Mat {
	sobel := gocv.NewMat()
	defer sobel.Close()
	gocv.Sobel(gray, &sobel, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)

	minVal, maxVal, _, _ := gocv.MinMaxLoc(sobel)
	peak := math.Max(math.Abs(float64(minVal)), math.Abs(float64(maxVal)))

	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	if peak == 0 {
		return out
	}

	// positive and negative gradients are scaled and thresholded separately
	lo := gocv.NewScalar(float64(e.t.SobelMin), 0, 0, 0)
	hi := gocv.NewScalar(256, 0, 0, 0)
	scaled := gocv.NewMat()
	defer scaled.Close()
	side := gocv.NewMat()
	defer side.Close()
	for _, sign := range []float64{1, -1} {
		sobel.ConvertToWithParams(&scaled, gocv.MatTypeCV64F, float32(sign*255/peak), 0)
		gocv.InRangeWithScalar(scaled, lo, hi, &side)
		gocv.BitwiseOr(out, side, &out)
	}
	return out
}
