package camera

import (
	"fmt"
	"image"

	"lanetrack/pkg/log"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// CalibrationOptions configures checkerboard calibration.
type CalibrationOptions struct {
	Pattern    image.Point // inner corners per row and column
	Size       image.Point // images are resized to this before the corner search
	SquareSize float64     // object-space edge of one square
	Logger     *logrus.Entry
}

// DefaultCalibrationOptions returns an 11x8 pattern searched at 1280x720.
func DefaultCalibrationOptions() CalibrationOptions {
	return CalibrationOptions{
		Pattern:    image.Pt(11, 8),
		Size:       image.Pt(1280, 720),
		SquareSize: 1,
	}
}

// Calibrate estimates camera parameters from checkerboard images. Images in
// which the pattern is not found are skipped; if none remain the result is
// ErrCalibrationFailed.
func Calibrate(images []gocv.Mat, opts CalibrationOptions) (*Parameters, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Pattern.X < 2 || opts.Pattern.Y < 2 {
		return nil, fmt.Errorf("%w: pattern %v too small", ErrCalibrationFailed, opts.Pattern)
	}
	square := float32(opts.SquareSize)
	if square <= 0 {
		square = 1
	}

	objp := make([]gocv.Point3f, 0, opts.Pattern.X*opts.Pattern.Y)
	for r := 0; r < opts.Pattern.Y; r++ {
		for c := 0; c < opts.Pattern.X; c++ {
			objp = append(objp, gocv.Point3f{X: float32(c) * square, Y: float32(r) * square})
		}
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()

	for i, img := range images {
		corners, ok := findCorners(img, opts)
		if !ok {
			logger.WithField("image", i).Debug("checkerboard not found, skipping")
			continue
		}
		imagePoints.Append(corners)
		corners.Close()

		obj := gocv.NewPoint3fVectorFromPoints(objp)
		objectPoints.Append(obj)
		obj.Close()
	}

	used := imagePoints.Size()
	if used == 0 {
		return nil, fmt.Errorf("%w: no checkerboard found in %d images", ErrCalibrationFailed, len(images))
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objectPoints, imagePoints, opts.Size, &cameraMatrix, &distCoeffs, &rvecs, &tvecs, 0)
	if cameraMatrix.Empty() || distCoeffs.Empty() {
		return nil, fmt.Errorf("%w: solver returned no intrinsics", ErrCalibrationFailed)
	}

	p := &Parameters{
		Width:  opts.Size.X,
		Height: opts.Size.Y,
		RMS:    rms,
		Images: used,
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			p.Matrix[r][c] = cameraMatrix.GetDoubleAt(r, c)
		}
	}
	n := distCoeffs.Total()
	p.Distortion = make([]float64, n)
	for i := 0; i < n; i++ {
		p.Distortion[i] = distCoeffs.GetDoubleAt(0, i)
	}

	logger.WithFields(logrus.Fields{
		"images": used,
		"total":  len(images),
		"rms":    rms,
	}).Info("calibration complete")

	return p, nil
}

// findCorners resizes img to the calibration size and runs the corner search.
func findCorners(img gocv.Mat, opts CalibrationOptions) (gocv.Point2fVector, bool) {
	if img.Empty() {
		return gocv.Point2fVector{}, false
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, opts.Size, 0, 0, gocv.InterpolationLinear)

	gray := resized
	if resized.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)
	}

	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(gray, opts.Pattern, &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || corners.Empty() {
		return gocv.Point2fVector{}, false
	}
	return gocv.NewPoint2fVectorFromMat(corners), true
}
