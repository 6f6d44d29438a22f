package l1profiles

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// ColumnProfile is the stacked spatial profile of one column group.
type ColumnProfile struct {
	Index   int       // position in the profile list
	Columns []int     // member detector columns
	Center  float64   // median member column
	Flux    []float64 // one value per frame row
}

// Boundaries returns the start column of every full group. The column
// axis is split into floor(cols/traceStep) evenly spaced integer
// boundaries; the last boundary only closes the final group and does not
// start one of its own.
func Boundaries(cols, traceStep int) ([]int, error) {
	if traceStep <= 0 {
		return nil, fmt.Errorf("%w: trace_step must be positive, got %d", apermap.ErrConfiguration, traceStep)
	}
	if traceStep > cols {
		return nil, fmt.Errorf("%w: trace_step %d exceeds frame width %d", apermap.ErrConfiguration, traceStep, cols)
	}
	n := cols / traceStep
	if n-1 < 2 {
		return nil, fmt.Errorf("%w: trace_step %d over %d columns yields %d column groups, need at least 2",
			apermap.ErrConfiguration, traceStep, cols, max(n-1, 0))
	}
	step := float64(cols) / float64(n-1)
	starts := make([]int, n-1)
	for i := range starts {
		starts[i] = int(float64(i) * step)
	}
	return starts, nil
}

// Extract stacks nLines adjacent columns at every boundary into one
// profile, weighting each pixel by 1/sigma^2.
func Extract(frame *apermap.Frame, traceStep, nLines int) ([]ColumnProfile, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if nLines <= 0 {
		return nil, fmt.Errorf("%w: n_lines must be positive, got %d", apermap.ErrConfiguration, nLines)
	}
	starts, err := Boundaries(frame.Cols, traceStep)
	if err != nil {
		return nil, err
	}

	profiles := make([]ColumnProfile, 0, len(starts))
	values := make([]float64, 0, nLines)
	weights := make([]float64, 0, nLines)
	for i, start := range starts {
		end := min(start+nLines, frame.Cols)
		cols := make([]int, 0, end-start)
		for c := start; c < end; c++ {
			cols = append(cols, c)
		}

		flux := make([]float64, frame.Rows)
		for r := 0; r < frame.Rows; r++ {
			values, weights = values[:0], weights[:0]
			sumW := 0.0
			for _, c := range cols {
				v := frame.At(r, c)
				s := frame.Sigma(r, c)
				if math.IsNaN(v) || math.IsNaN(s) || s <= 0 || math.IsInf(s, 0) {
					continue
				}
				w := 1 / (s * s)
				values = append(values, v)
				weights = append(weights, w)
				sumW += w
			}
			if sumW > 0 {
				flux[r] = stat.Mean(values, weights)
			}
		}

		profiles = append(profiles, ColumnProfile{
			Index:   i,
			Columns: cols,
			Center:  float64(cols[0]+cols[len(cols)-1]) / 2,
			Flux:    flux,
		})
		tracef("profile %d: columns %d..%d center %.1f", i, cols[0], cols[len(cols)-1], profiles[i].Center)
	}
	diagf("extracted %d column profiles (trace_step=%d n_lines=%d width=%d)", len(profiles), traceStep, nLines, frame.Cols)
	return profiles, nil
}

// Centers returns the representative column of every profile.
func Centers(profiles []ColumnProfile) []float64 {
	out := make([]float64, len(profiles))
	for i, p := range profiles {
		out[i] = p.Center
	}
	return out
}
