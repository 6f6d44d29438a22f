// Package testutil provides shared test utilities and fixtures.
//
// It centralises the synthetic detector frames used across the layer
// package tests so every layer is exercised against the same light model.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Gaussian returns amplitude * exp(-(x-mu)^2 / (2 sigma^2)).
func Gaussian(x, mu, sigma, amplitude float64) float64 {
	d := (x - mu) / sigma
	return amplitude * math.Exp(-0.5*d*d)
}

// EvenlySpaced returns n positions starting at first, step apart.
func EvenlySpaced(first, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = first + float64(i)*step
	}
	return out
}

// FiberFrame builds a rows x cols frame with one Gaussian fiber profile
// per entry of rows, constant along the dispersion axis.
func FiberFrame(nRows, nCols int, centers []float64, sigma, amplitude float64) *apermap.Frame {
	return CurvedFiberFrame(nRows, nCols, func(fiber int, col float64) float64 {
		return centers[fiber]
	}, len(centers), sigma, amplitude)
}

// CurvedFiberFrame builds a frame whose fiber centres follow centerAt.
// Only rows within 8 sigma of a centre are evaluated.
func CurvedFiberFrame(nRows, nCols int, centerAt func(fiber int, col float64) float64, nFibers int, sigma, amplitude float64) *apermap.Frame {
	f := apermap.NewFrame(nRows, nCols)
	reach := int(math.Ceil(8 * sigma))
	for c := 0; c < nCols; c++ {
		for k := 0; k < nFibers; k++ {
			mu := centerAt(k, float64(c))
			r0 := max(int(mu)-reach, 0)
			r1 := min(int(mu)+reach, nRows-1)
			for r := r0; r <= r1; r++ {
				f.Data[r*nCols+c] += Gaussian(float64(r), mu, sigma, amplitude)
			}
		}
	}
	return f
}

// Without returns xs with the given 1-based positions removed.
func Without(xs []float64, oneBased ...int) []float64 {
	drop := make(map[int]bool, len(oneBased))
	for _, i := range oneBased {
		drop[i-1] = true
	}
	out := make([]float64, 0, len(xs))
	for i, x := range xs {
		if !drop[i] {
			out = append(out, x)
		}
	}
	return out
}
