package lane

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampled(p Polynomial, rows int) Pixels {
	var px Pixels
	for y := 0; y < rows; y++ {
		px.X = append(px.X, p.At(float64(y)))
		px.Y = append(px.Y, float64(y))
	}
	return px
}

func TestFitPolynomialExact(t *testing.T) {
	want := Polynomial{A: 0.001, B: -0.5, C: 400}
	got, err := FitPolynomial(sampled(want, 700))
	require.NoError(t, err)
	assert.InDelta(t, want.A, got.A, 1e-8)
	assert.InDelta(t, want.B, got.B, 1e-5)
	assert.InDelta(t, want.C, got.C, 1e-3)
}

func TestFitPolynomialDegenerate(t *testing.T) {
	tests := []struct {
		name string
		px   Pixels
	}{
		{name: "empty"},
		{name: "one row", px: Pixels{X: []float64{1, 2, 3}, Y: []float64{5, 5, 5}}},
		{name: "two rows", px: Pixels{X: []float64{1, 2, 3, 4}, Y: []float64{5, 5, 6, 6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FitPolynomial(tt.px)
			assert.ErrorIs(t, err, ErrDegenerateFit)
			assert.Equal(t, DefaultPolynomial, got)
		})
	}
}

func TestFitPairReportsSide(t *testing.T) {
	left, right, err := FitPair(sampled(vertical(300), 50), Pixels{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateFit))

	var dfe *DegenerateFitError
	require.ErrorAs(t, err, &dfe)
	assert.False(t, dfe.Left)
	assert.True(t, dfe.Right)
	assert.Contains(t, err.Error(), "right")

	assert.InDelta(t, 300, left.C, 1e-6)
	assert.Equal(t, DefaultPolynomial, right)
}

func TestFitPolynomialNoisyCurve(t *testing.T) {
	want := Polynomial{A: 0.0004, B: -0.28, C: 349}
	px := sampled(want, 720)
	for i := range px.X {
		// symmetric jitter cancels in the least-squares solution
		if i%2 == 0 {
			px.X[i] += 2
		} else {
			px.X[i] -= 2
		}
	}
	px.X = append(px.X, px.X...)
	px.Y = append(px.Y, px.Y...)

	got, err := FitPolynomial(px)
	require.NoError(t, err)
	assert.InDelta(t, want.A, got.A, 1e-6)
	assert.InDelta(t, want.B, got.B, 1e-3)
	assert.InDelta(t, want.C, got.C, 0.5)
}

func TestFitPolynomialLargeMaskLinear(t *testing.T) {
	// a dense 1280x720 lane band: 140 columns on every row
	var px Pixels
	for y := 0; y < 720; y++ {
		for x := 300; x < 440; x++ {
			px.add(x, y)
		}
	}
	require.Greater(t, px.Len(), 100000)

	var got Polynomial
	var err error
	allocs := testing.AllocsPerRun(3, func() {
		got, err = FitPolynomial(px)
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, allocs, 40.0)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, _ = FitPolynomial(px)
	runtime.ReadMemStats(&after)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<10), "allocation must not scale with pixel count")

	assert.InDelta(t, 0, got.A, 1e-9)
	assert.InDelta(t, 0, got.B, 1e-6)
	assert.InDelta(t, 369.5, got.C, 1e-6)
}
