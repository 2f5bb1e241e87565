// Package colorutil provides the overlay palette.
package colorutil

import "image/color"

// Overlay colors. gocv drawing maps R/G/B onto the BGR channels of the Mat.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Teal   = color.RGBA{R: 0, G: 100, B: 100, A: 255}
	Indigo = color.RGBA{R: 0, G: 100, B: 200, A: 255}
)
