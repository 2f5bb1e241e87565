package mask

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func frameWithStripe(bg, stripe gocv.Scalar, x0, x1 int) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(bg, 100, 200, gocv.MatTypeCV8UC3)
	region := m.Region(image.Rect(x0, 0, x1, 100))
	region.SetTo(stripe)
	region.Close()
	return m
}

func TestExtractWhiteStripe(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	frame := frameWithStripe(gocv.NewScalar(40, 40, 40, 0), gocv.NewScalar(250, 250, 250, 0), 100, 110)
	defer frame.Close()

	m, err := e.Extract(frame)
	require.NoError(t, err)
	assert.Equal(t, 200, m.Width)
	assert.Equal(t, 100, m.Height)
	assert.True(t, m.At(105, 50))
	assert.False(t, m.At(20, 50))
	assert.False(t, m.At(180, 50))
}

func TestExtractYellowStripe(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	// BGR (0,200,255): gray about 194, below the brightness cutoff, so the
	// color tests must catch it.
	frame := frameWithStripe(gocv.NewScalar(40, 40, 40, 0), gocv.NewScalar(0, 200, 255, 0), 60, 70)
	defer frame.Close()

	m, err := e.Extract(frame)
	require.NoError(t, err)
	assert.True(t, m.At(65, 50))
	assert.False(t, m.At(150, 50))
}

func TestExtractFlatFrame(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 100, 200, gocv.MatTypeCV8UC3)
	defer frame.Close()

	m, err := e.Extract(frame)
	require.NoError(t, err)
	assert.Zero(t, m.Count())
}

func TestExtractFillsNarrowGap(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	frame := frameWithStripe(gocv.NewScalar(40, 40, 40, 0), gocv.NewScalar(250, 250, 250, 0), 100, 105)
	defer frame.Close()
	right := frame.Region(image.Rect(107, 0, 112, 100))
	right.SetTo(gocv.NewScalar(250, 250, 250, 0))
	right.Close()

	m, err := e.Extract(frame)
	require.NoError(t, err)
	assert.True(t, m.At(105, 50))
	assert.True(t, m.At(106, 50))
}

func TestExtractRejectsBadInput(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := e.Extract(empty)
	assert.ErrorIs(t, err, ErrUnsupportedFrame)

	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8U)
	defer gray.Close()
	_, err = e.Extract(gray)
	assert.ErrorIs(t, err, ErrUnsupportedFrame)
}

// grayEdges is a 20x300 gray image: 0 up to column 100, 245 up to column
// 200, then 245-weak. The strong edge sets the scaling peak at 4*245.
func grayEdges(weak int) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 20, 300, gocv.MatTypeCV8U)
	for _, band := range []struct {
		x0, x1 int
		v      float64
	}{{100, 200, 245}, {200, 300, float64(245 - weak)}} {
		region := m.Region(image.Rect(band.x0, 0, band.x1, 20))
		region.SetTo(gocv.NewScalar(band.v, 0, 0, 0))
		region.Close()
	}
	return m
}

func TestSobelBinaryTruncatesScaledGradient(t *testing.T) {
	e := NewExtractor(DefaultThresholds())
	defer e.Close()

	tests := []struct {
		name   string
		weak   int
		marked bool
	}{
		// 255*4*19/980 = 19.78, below 20 without rounding
		{name: "just below", weak: 19, marked: false},
		// 255*4*21/980 = 21.86, falling edge
		{name: "above", weak: 21, marked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gray := grayEdges(tt.weak)
			defer gray.Close()

			out := e.sobelBinary(gray)
			defer out.Close()

			assert.Equal(t, uint8(255), out.GetUCharAt(10, 100), "strong edge")
			assert.Equal(t, tt.marked, out.GetUCharAt(10, 200) == 255, "weak edge")
			assert.Equal(t, uint8(0), out.GetUCharAt(10, 50))
			assert.Equal(t, uint8(0), out.GetUCharAt(10, 250))
		})
	}
}
