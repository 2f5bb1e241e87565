package perspective

import (
	"image"

	"lanetrack/pkg/colorutil"
	"lanetrack/pkg/geometry"

	"gocv.io/x/gocv"
)

// Rectifier warps frames with a fixed Mapping.
type Rectifier struct {
	mapping *Mapping
	forward gocv.Mat
	inverse gocv.Mat
}

// NewRectifier prepares the OpenCV matrices for m.
func NewRectifier(m *Mapping) *Rectifier {
	return &Rectifier{
		mapping: m,
		forward: homographyMat(m.Forward),
		inverse: homographyMat(m.Inverse),
	}
}

// Mapping returns the rectifier's mapping.
func (r *Rectifier) Mapping() *Mapping { return r.mapping }

// Rectify warps frame into the bird's-eye view and returns it with the
// inverse homography. The caller owns the returned Mat.
func (r *Rectifier) Rectify(frame gocv.Mat) (gocv.Mat, geometry.Homography) {
	dst := gocv.NewMat()
	gocv.WarpPerspective(frame, &dst, r.forward, r.mapping.Size)
	return dst, r.mapping.Inverse
}

// Project warps a bird's-eye overlay back into the camera view using
// inverse. The caller owns the returned Mat.
func (r *Rectifier) Project(overlay gocv.Mat, inverse geometry.Homography) gocv.Mat {
	dst := gocv.NewMat()
	if inverse == r.mapping.Inverse {
		gocv.WarpPerspective(overlay, &dst, r.inverse, r.mapping.Size)
		return dst
	}
	m := homographyMat(inverse)
	defer m.Close()
	gocv.WarpPerspective(overlay, &dst, m, r.mapping.Size)
	return dst
}

// Close releases the OpenCV matrices.
func (r *Rectifier) Close() {
	r.forward.Close()
	r.inverse.Close()
}

func homographyMat(h geometry.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.SetDoubleAt(row, col, h[row][col])
		}
	}
	return m
}

// Letterbox resizes src to fit inside size without changing its aspect
// ratio and pads the remainder with black, centring the image. The caller
// owns the returned Mat.
func Letterbox(src gocv.Mat, size image.Point) gocv.Mat {
	dst := gocv.NewMat()
	from := image.Pt(src.Cols(), src.Rows())
	if from == size {
		src.CopyTo(&dst)
		return dst
	}

	content := LetterboxRect(from, size)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, content.Size(), 0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(resized, &dst,
		content.Min.Y, size.Y-content.Max.Y,
		content.Min.X, size.X-content.Max.X,
		gocv.BorderConstant, colorutil.Black)
	return dst
}

// LetterboxRect returns where a from-sized image lands inside a
// size-sized letterbox.
func LetterboxRect(from, size image.Point) image.Rectangle {
	if from.X <= 0 || from.Y <= 0 {
		return image.Rectangle{Max: size}
	}
	w, h := size.X, size.Y
	if from.X*size.Y > size.X*from.Y {
		h = size.X * from.Y / from.X
	} else {
		w = size.Y * from.X / from.Y
	}

	left := (size.X - w) / 2
	top := (size.Y - h) / 2
	return image.Rect(left, top, left+w, top+h)
}
