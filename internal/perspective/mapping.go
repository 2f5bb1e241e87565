// Package perspective maps between the camera view and the bird's-eye view
// of the road plane.
package perspective

import (
	"fmt"
	"image"

	"lanetrack/pkg/geometry"
)

// ReferenceSize is the frame size the reference trapezoid was measured on.
var ReferenceSize = image.Pt(1280, 720)

// referenceSource is a straight lane section in a 1280x720 dash-cam frame,
// ordered near-left, far-left, far-right, near-right.
var referenceSource = geometry.Quad{
	{X: 190, Y: 720},
	{X: 596, Y: 447},
	{X: 685, Y: 447},
	{X: 1125, Y: 720},
}

// DefaultInsetRatio places the bird's-eye lane 150 px in from each edge at
// the reference width.
const DefaultInsetRatio = 150.0 / 1280.0

// ReferenceQuad returns the source trapezoid scaled to width x height and
// the destination rectangle inset horizontally by insetRatio of the width.
func ReferenceQuad(width, height int, insetRatio float64) (src, dst geometry.Quad) {
	sx := float64(width) / float64(ReferenceSize.X)
	sy := float64(height) / float64(ReferenceSize.Y)
	src = referenceSource.Scale(sx, sy)

	w, h := float64(width), float64(height)
	inset := insetRatio * w
	dst = geometry.Quad{
		{X: inset, Y: h},
		{X: inset, Y: 0},
		{X: w - inset, Y: 0},
		{X: w - inset, Y: h},
	}
	return src, dst
}

// Mapping is a camera to bird's-eye homography and its exact inverse.
type Mapping struct {
	Forward geometry.Homography
	Inverse geometry.Homography
	Size    image.Point
	Src     geometry.Quad
	Dst     geometry.Quad
}

// NewMapping solves the homography taking src onto dst. The bird's-eye
// frame has the same size as the camera frame.
func NewMapping(src, dst geometry.Quad, size image.Point) (*Mapping, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid frame size %v", size)
	}
	forward, err := geometry.HomographyFromQuads(src, dst)
	if err != nil {
		return nil, fmt.Errorf("perspective mapping: %w", err)
	}
	inverse, err := forward.Inverse()
	if err != nil {
		return nil, fmt.Errorf("perspective mapping: %w", err)
	}
	return &Mapping{
		Forward: forward,
		Inverse: inverse,
		Size:    size,
		Src:     src,
		Dst:     dst,
	}, nil
}

// DefaultMapping builds the reference mapping for a width x height frame.
func DefaultMapping(width, height int, insetRatio float64) (*Mapping, error) {
	src, dst := ReferenceQuad(width, height, insetRatio)
	return NewMapping(src, dst, image.Pt(width, height))
}

// ToBirdsEye maps a camera-view point into the bird's-eye view.
func (m *Mapping) ToBirdsEye(p geometry.Point2D) geometry.Point2D {
	return m.Forward.Apply(p)
}

// ToCamera maps a bird's-eye point back into the camera view.
func (m *Mapping) ToCamera(p geometry.Point2D) geometry.Point2D {
	return m.Inverse.Apply(p)
}
