package lane

// Locator finds left and right lane pixels in a bird's-eye mask.
type Locator struct {
	Windows int // horizontal bands in the sliding-window scan
	Margin  int // half-width of a search window, and of the proximity band
	MinPix  int // pixels a band must exceed before its window is recentred
}

// Histogram runs the cold-start sliding-window scan.
//
// Column sums over the bottom half of the mask give one starting x per half
// of the frame. The mask is then cut into Windows equal bands scanned
// bottom-to-top; every set pixel inside a window is collected, and the next
// window is recentred on the mean x of the band when it holds more than
// MinPix pixels.
func (l Locator) Histogram(m *Mask) (left, right Pixels) {
	if m.Width == 0 || m.Height == 0 || l.Windows <= 0 {
		return left, right
	}

	hist := make([]int, m.Width)
	for y := m.Height / 2; y < m.Height; y++ {
		off := y * m.Width
		for x := 0; x < m.Width; x++ {
			hist[x] += int(m.Pix[off+x])
		}
	}

	mid := m.Width / 2
	leftX := argmax(hist, 0, mid)
	rightX := argmax(hist, mid, m.Width)

	rows := m.rows()
	windowHeight := m.Height / l.Windows

	for w := 0; w < l.Windows; w++ {
		yLow := m.Height - (w+1)*windowHeight
		yHigh := m.Height - w*windowHeight

		var leftSum, rightSum, leftN, rightN int
		for y := yLow; y < yHigh; y++ {
			for _, x := range rows[y] {
				if x >= leftX-l.Margin && x < leftX+l.Margin {
					left.add(x, y)
					leftSum += x
					leftN++
				}
				if x >= rightX-l.Margin && x < rightX+l.Margin {
					right.add(x, y)
					rightSum += x
					rightN++
				}
			}
		}

		if leftN > l.MinPix {
			leftX = leftSum / leftN
		}
		if rightN > l.MinPix {
			rightX = rightSum / rightN
		}
	}

	return left, right
}

// Proximity runs the warm-start search: every set pixel strictly within
// Margin of the reference polynomial's x at that pixel's row.
func (l Locator) Proximity(m *Mask, leftFit, rightFit Polynomial) (left, right Pixels) {
	margin := float64(l.Margin)
	for y := 0; y < m.Height; y++ {
		yf := float64(y)
		lx := leftFit.At(yf)
		rx := rightFit.At(yf)
		off := y * m.Width
		for x := 0; x < m.Width; x++ {
			if m.Pix[off+x] == 0 {
				continue
			}
			xf := float64(x)
			if xf > lx-margin && xf < lx+margin {
				left.add(x, y)
			}
			if xf > rx-margin && xf < rx+margin {
				right.add(x, y)
			}
		}
	}
	return left, right
}

// argmax returns the first index of the largest value in hist[from:to].
func argmax(hist []int, from, to int) int {
	best := from
	for i := from + 1; i < to; i++ {
		if hist[i] > hist[best] {
			best = i
		}
	}
	return best
}
