// Package camera corrects lens distortion using checkerboard calibration.
package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ErrCalibrationFailed is returned when no calibration image yields a
// checkerboard.
var ErrCalibrationFailed = errors.New("camera calibration failed")

// Parameters are the intrinsics and distortion coefficients of a camera at
// a given image size.
type Parameters struct {
	Matrix     [3][3]float64 `json:"matrix"`
	Distortion []float64     `json:"distortion"` // k1 k2 p1 p2 k3
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	RMS        float64       `json:"rms,omitempty"`
	Images     int           `json:"images,omitempty"`
}

// Identity returns distortion-free parameters for a width x height camera.
func Identity(width, height int) *Parameters {
	f := float64(max(width, height))
	return &Parameters{
		Matrix: [3][3]float64{
			{f, 0, float64(width) / 2},
			{0, f, float64(height) / 2},
			{0, 0, 1},
		},
		Distortion: make([]float64, 5),
		Width:      width,
		Height:     height,
	}
}

// IsIdentity reports whether every distortion coefficient is zero.
func (p *Parameters) IsIdentity() bool {
	for _, d := range p.Distortion {
		if d != 0 {
			return false
		}
	}
	return true
}

// Size returns the calibration image size.
func (p *Parameters) Size() image.Point {
	return image.Pt(p.Width, p.Height)
}

// Save writes the parameters as JSON.
func (p *Parameters) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration: %w", err)
	}
	return nil
}

// Load reads parameters previously written by Save.
func Load(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration: %w", err)
	}
	var p Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse calibration %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return &p, nil
}

func (p *Parameters) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", p.Width, p.Height)
	}
	if len(p.Distortion) < 4 {
		return fmt.Errorf("need at least 4 distortion coefficients, got %d", len(p.Distortion))
	}
	if p.Matrix[0][0] == 0 || p.Matrix[1][1] == 0 {
		return errors.New("zero focal length")
	}
	return nil
}

// Model undistorts frames with a fixed set of parameters. Frames of a size
// other than the calibration size use intrinsics scaled to that size.
type Model struct {
	params   *Parameters
	dist     gocv.Mat
	matrices map[image.Point]gocv.Mat
}

// NewModel prepares the OpenCV matrices for p.
func NewModel(p *Parameters) (*Model, error) {
	if p == nil {
		return nil, errors.New("nil calibration parameters")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	dist := gocv.NewMatWithSize(1, len(p.Distortion), gocv.MatTypeCV64F)
	for i, d := range p.Distortion {
		dist.SetDoubleAt(0, i, d)
	}

	return &Model{
		params:   p,
		dist:     dist,
		matrices: make(map[image.Point]gocv.Mat),
	}, nil
}

// Parameters returns the model's calibration.
func (m *Model) Parameters() *Parameters { return m.params }

// Undistort returns a corrected copy of raw with the same size and type.
// The caller owns the returned Mat.
func (m *Model) Undistort(raw gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	if raw.Empty() || m.params.IsIdentity() {
		raw.CopyTo(&dst)
		return dst
	}
	k := m.matrixFor(image.Pt(raw.Cols(), raw.Rows()))
	gocv.Undistort(raw, &dst, k, m.dist, k)
	return dst
}

// matrixFor returns the intrinsic matrix scaled to size, building it once.
func (m *Model) matrixFor(size image.Point) gocv.Mat {
	if k, ok := m.matrices[size]; ok {
		return k
	}
	sx := float64(size.X) / float64(m.params.Width)
	sy := float64(size.Y) / float64(m.params.Height)
	p := m.params.Matrix

	k := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 3, 3, gocv.MatTypeCV64F)
	k.SetDoubleAt(0, 0, p[0][0]*sx)
	k.SetDoubleAt(0, 1, p[0][1]*sx)
	k.SetDoubleAt(0, 2, p[0][2]*sx)
	k.SetDoubleAt(1, 1, p[1][1]*sy)
	k.SetDoubleAt(1, 2, p[1][2]*sy)
	k.SetDoubleAt(2, 2, 1)
	m.matrices[size] = k
	return k
}

// Close releases the OpenCV matrices.
func (m *Model) Close() {
	m.dist.Close()
	for size, k := range m.matrices {
		k.Close()
		delete(m.matrices, size)
	}
}
