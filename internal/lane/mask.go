package lane

import "fmt"

// Mask is a binary image of lane-marking candidate pixels.
// Pix is row-major, one byte per pixel, 0 or 1.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask returns an all-zero mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// MaskFromBytes builds a mask from single-channel bytes, treating any
// non-zero value as set.
func MaskFromBytes(width, height int, data []byte) (*Mask, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("mask data length %d, want %dx%d=%d", len(data), width, height, width*height)
	}
	m := NewMask(width, height)
	for i, v := range data {
		if v != 0 {
			m.Pix[i] = 1
		}
	}
	return m, nil
}

// At reports whether (x, y) is set. Out-of-range coordinates read as unset.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = 1
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bytes returns the mask scaled to 0/255, suitable for an 8-bit image.
func (m *Mask) Bytes() []byte {
	out := make([]byte, len(m.Pix))
	for i, v := range m.Pix {
		if v != 0 {
			out[i] = 255
		}
	}
	return out
}

// rows returns the x coordinates of set pixels grouped by row.
func (m *Mask) rows() [][]int {
	rows := make([][]int, m.Height)
	for y := 0; y < m.Height; y++ {
		off := y * m.Width
		for x := 0; x < m.Width; x++ {
			if m.Pix[off+x] != 0 {
				rows[y] = append(rows[y], x)
			}
		}
	}
	return rows
}

// Pixels is a set of lane pixel coordinates.
type Pixels struct {
	X []float64
	Y []float64
}

// Len returns the number of pixels.
func (p Pixels) Len() int { return len(p.X) }

func (p *Pixels) add(x, y int) {
	p.X = append(p.X, float64(x))
	p.Y = append(p.Y, float64(y))
}
