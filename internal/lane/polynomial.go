package lane

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateFit is returned when a side has too few pixels to fit.
var ErrDegenerateFit = errors.New("degenerate lane fit")

// Polynomial is x = A*y^2 + B*y + C in bird's-eye pixel coordinates.
type Polynomial struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// DefaultPolynomial is substituted for a side that could not be fitted: the
// straight diagonal x = y.
var DefaultPolynomial = Polynomial{A: 0, B: 1, C: 0}

// At evaluates the polynomial at row y.
func (p Polynomial) At(y float64) float64 {
	return p.A*y*y + p.B*y + p.C
}

// Add returns the component-wise sum.
func (p Polynomial) Add(o Polynomial) Polynomial {
	return Polynomial{A: p.A + o.A, B: p.B + o.B, C: p.C + o.C}
}

// Div returns every coefficient divided by d.
func (p Polynomial) Div(d float64) Polynomial {
	return Polynomial{A: p.A / d, B: p.B / d, C: p.C / d}
}

// FitPolynomial least-squares fits x as a second-order polynomial of y.
// Fewer than three distinct rows cannot pin a parabola; DefaultPolynomial is
// returned with ErrDegenerateFit.
//
// The fit accumulates the 3x3 normal equations in one pass over the pixels,
// with y centred and scaled to [-1, 1] for conditioning, and solves them by
// Cholesky. Cost is linear in the pixel count.
func FitPolynomial(px Pixels) (Polynomial, error) {
	n := px.Len()
	if distinctRows(px.Y, 3) < 3 {
		return DefaultPolynomial, fmt.Errorf("%w: %d pixels", ErrDegenerateFit, n)
	}

	lo, hi := px.Y[0], px.Y[0]
	for _, y := range px.Y {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	mid := (lo + hi) / 2
	scale := (hi - lo) / 2

	// sums of u^k for k = 0..4 and of x*u^k for k = 0..2
	var su [5]float64
	var sxu [3]float64
	for i := 0; i < n; i++ {
		u := (px.Y[i] - mid) / scale
		x := px.X[i]
		u2 := u * u
		su[0]++
		su[1] += u
		su[2] += u2
		su[3] += u2 * u
		su[4] += u2 * u2
		sxu[0] += x
		sxu[1] += x * u
		sxu[2] += x * u2
	}

	// unknowns ordered a, b, c for x = a*u^2 + b*u + c
	normal := mat.NewSymDense(3, []float64{
		su[4], su[3], su[2],
		su[3], su[2], su[1],
		su[2], su[1], su[0],
	})
	rhs := mat.NewVecDense(3, []float64{sxu[2], sxu[1], sxu[0]})

	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return DefaultPolynomial, fmt.Errorf("%w: singular normal equations over %d pixels", ErrDegenerateFit, n)
	}
	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, rhs); err != nil {
		return DefaultPolynomial, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}

	// substitute u = (y - mid) / scale back into y
	a, b, c := coef.AtVec(0), coef.AtVec(1), coef.AtVec(2)
	s2 := scale * scale
	return Polynomial{
		A: a / s2,
		B: b/scale - 2*a*mid/s2,
		C: a*mid*mid/s2 - b*mid/scale + c,
	}, nil
}

// DegenerateFitError reports which sides of a pair fell back to
// DefaultPolynomial.
type DegenerateFitError struct {
	Left  bool
	Right bool
}

func (e *DegenerateFitError) Error() string {
	var sides []string
	if e.Left {
		sides = append(sides, "left")
	}
	if e.Right {
		sides = append(sides, "right")
	}
	return fmt.Sprintf("%v: %s", ErrDegenerateFit, strings.Join(sides, ", "))
}

func (e *DegenerateFitError) Unwrap() error { return ErrDegenerateFit }

// FitPair fits both sides independently. A side that cannot be fitted gets
// DefaultPolynomial and the returned error is a *DegenerateFitError.
func FitPair(left, right Pixels) (Polynomial, Polynomial, error) {
	leftFit, leftErr := FitPolynomial(left)
	rightFit, rightErr := FitPolynomial(right)
	if leftErr != nil || rightErr != nil {
		return leftFit, rightFit, &DegenerateFitError{Left: leftErr != nil, Right: rightErr != nil}
	}
	return leftFit, rightFit, nil
}

// distinctRows counts distinct values in ys, stopping once limit is reached.
func distinctRows(ys []float64, limit int) int {
	seen := make(map[float64]struct{}, limit)
	for _, y := range ys {
		seen[y] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}
