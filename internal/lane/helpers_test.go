package lane

import "math"

// paint sets every pixel within halfWidth columns of fit's x on each row.
func paint(m *Mask, fit Polynomial, halfWidth int) {
	for y := 0; y < m.Height; y++ {
		xc := int(math.Round(fit.At(float64(y))))
		for x := xc - halfWidth; x <= xc+halfWidth; x++ {
			m.Set(x, y)
		}
	}
}

func laneMask(width, height int, left, right Polynomial, halfWidth int) *Mask {
	m := NewMask(width, height)
	paint(m, left, halfWidth)
	paint(m, right, halfWidth)
	return m
}

func vertical(x float64) Polynomial {
	return Polynomial{C: x}
}
