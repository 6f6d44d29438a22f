package l6apermap

import (
	"fmt"
	"math"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// ApertureMap labels every detector pixel: 0 is background, k > 0 is
// fiber k. Labels is row-major.
type ApertureMap struct {
	Rows   int
	Cols   int
	Labels []int32
}

// At returns the label at (row, col).
func (m *ApertureMap) At(row, col int) int32 {
	return m.Labels[row*m.Cols+col]
}

// LabelSet returns the sorted distinct nonzero labels.
func (m *ApertureMap) LabelSet() []int32 {
	seen := make(map[int32]bool)
	var top int32
	for _, v := range m.Labels {
		if v != 0 {
			seen[v] = true
			if v > top {
				top = v
			}
		}
	}
	out := make([]int32, 0, len(seen))
	for v := int32(1); v <= top; v++ {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// Result is the output of Build.
type Result struct {
	Map *ApertureMap
	// Midpoints holds each fiber's row at the middle column.
	Midpoints []int
	// Pixels counts the labelled pixels per fiber after clipping.
	Pixels []int
	// MaxPixels is the largest aperture (the NMAX header card).
	MaxPixels int
}

// Vanished returns the 1-based labels that have no pixels left.
func (r Result) Vanished() []int {
	var out []int
	for i, n := range r.Pixels {
		if n == 0 {
			out = append(out, i+1)
		}
	}
	return out
}

// Build labels the rows [c-halfWidth, c+halfWidth) around each trace
// centre c in every column, later fibers overwriting earlier ones, then
// zeroes every pixel outside the curvature span of its row.
func Build(rows, cols int, traces []apermap.Polynomial, halfWidth int, curve apermap.Curvature) (Result, error) {
	if rows <= 0 || cols <= 0 {
		return Result{}, fmt.Errorf("%w: map shape %dx%d", apermap.ErrConfiguration, rows, cols)
	}
	if halfWidth < 1 {
		return Result{}, fmt.Errorf("%w: aperture half width %d", apermap.ErrConfiguration, halfWidth)
	}

	m := &ApertureMap{Rows: rows, Cols: cols, Labels: make([]int32, rows*cols)}
	res := Result{Map: m, Midpoints: make([]int, len(traces)), Pixels: make([]int, len(traces))}
	middle := float64(cols / 2)

	for i, tr := range traces {
		label := int32(i + 1)
		res.Midpoints[i] = int(math.RoundToEven(tr.Eval(middle)))
		for x := 0; x < cols; x++ {
			c := int(math.RoundToEven(tr.Eval(float64(x))))
			for r := max(c-halfWidth, 0); r < min(c+halfWidth, rows); r++ {
				m.Labels[r*cols+x] = label
			}
		}
	}

	for r := 0; r < rows; r++ {
		lo, hi := curve.Span(r)
		lo = min(max(lo, 0), cols)
		hi = min(max(hi, lo), cols)
		line := m.Labels[r*cols : (r+1)*cols]
		clear(line[:lo])
		clear(line[hi:])
	}

	for _, v := range m.Labels {
		if v > 0 {
			res.Pixels[v-1]++
		}
	}
	for _, n := range res.Pixels {
		res.MaxPixels = max(res.MaxPixels, n)
	}
	if gone := res.Vanished(); len(gone) > 0 {
		opsf("apertures %v have no pixels after clipping", gone)
	}
	diagf("aperture map %dx%d: %d fibers, half width %d, max %d px per aperture", rows, cols, len(traces), halfWidth, res.MaxPixels)
	return res, nil
}
