package apermap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Polynomial is a least-squares polynomial evaluated in a normalised
// domain u = (x - Center) / Scale. Coeffs are ascending in u.
type Polynomial struct {
	Coeffs []float64
	Center float64
	Scale  float64
}

// PolyFit fits ys = p(xs) with the given degree by QR least squares.
// The abscissae are shifted and scaled to [-1, 1] before the Vandermonde
// matrix is built so degree-4 fits over detector coordinates stay well
// conditioned.
func PolyFit(xs, ys []float64, degree int) (Polynomial, error) {
	if degree < 0 {
		return Polynomial{}, fmt.Errorf("%w: negative degree %d", ErrFit, degree)
	}
	if len(xs) != len(ys) {
		return Polynomial{}, fmt.Errorf("%w: %d abscissae vs %d ordinates", ErrFit, len(xs), len(ys))
	}
	n := len(xs)
	if n < degree+1 {
		return Polynomial{}, fmt.Errorf("%w: %d points for degree %d", ErrFit, n, degree)
	}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			return Polynomial{}, fmt.Errorf("%w: non-finite point at %d", ErrFit, i)
		}
	}

	lo, hi := floats.Min(xs), floats.Max(xs)
	center := (lo + hi) / 2
	scale := (hi - lo) / 2
	if scale == 0 {
		if degree > 0 {
			return Polynomial{}, fmt.Errorf("%w: all %d abscissae equal %g", ErrFit, n, lo)
		}
		scale = 1
	}

	a := mat.NewDense(n, degree+1, nil)
	for i, x := range xs {
		u := (x - center) / scale
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= u
		}
	}
	b := mat.NewDense(n, 1, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return Polynomial{}, fmt.Errorf("%w: %v", ErrFit, err)
	}

	coeffs := make([]float64, degree+1)
	for j := range coeffs {
		coeffs[j] = sol.At(j, 0)
	}
	return Polynomial{Coeffs: coeffs, Center: center, Scale: scale}, nil
}

// Degree returns the polynomial degree.
func (p Polynomial) Degree() int { return len(p.Coeffs) - 1 }

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	if len(p.Coeffs) == 0 {
		return 0
	}
	u := (x - p.Center) / p.Scale
	y := 0.0
	for j := len(p.Coeffs) - 1; j >= 0; j-- {
		y = y*u + p.Coeffs[j]
	}
	return y
}

// Standard expands the polynomial into ascending power-basis
// coefficients of the raw abscissa, the layout written to trace files.
func (p Polynomial) Standard() []float64 {
	out := make([]float64, len(p.Coeffs))
	if len(p.Coeffs) == 0 {
		return out
	}
	// ((x - c) / s)^j = s^-j * sum_k binom(j,k) x^k (-c)^(j-k)
	for j, cj := range p.Coeffs {
		inv := math.Pow(p.Scale, -float64(j))
		binom := 1.0
		for k := 0; k <= j; k++ {
			if k > 0 {
				binom = binom * float64(j-k+1) / float64(k)
			}
			out[k] += cj * inv * binom * math.Pow(-p.Center, float64(j-k))
		}
	}
	return out
}
