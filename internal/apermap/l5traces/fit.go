package l5traces

import (
	"fmt"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l1profiles"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l3tracks"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l4fibers"
)

// DefaultDegree is the degree of both the per-profile layout fit and the
// per-fiber trace fit.
const DefaultDegree = 4

// Input collects what the fitter needs from the earlier layers.
type Input struct {
	Profiles  []l1profiles.ColumnProfile
	Tracks    []l3tracks.Track
	Slots     []l4fibers.Slot
	Curvature apermap.Curvature
	Degree    int
}

// Fiber is one labelled fiber with its trace.
type Fiber struct {
	// Label is the 1-based aperture number.
	Label int
	// Template is the fiber's template coordinate.
	Template float64
	// Reference is the row at the reference profile, detected or predicted.
	Reference float64
	// Synthesized marks fibers that were never detected.
	Synthesized bool
	// Entries holds the profile-local row per profile.
	Entries l3tracks.Track

	// X and Y are the absolute (column, row) points the trace was fitted to.
	X, Y  []float64
	Trace apermap.Polynomial
}

// Result is the output of Fit.
type Result struct {
	Fibers []Fiber
	// SynthesizedPoints counts the profile entries filled from the layout fit.
	SynthesizedPoints int
}

// Traces returns the trace polynomials in label order.
func (r Result) Traces() []apermap.Polynomial {
	out := make([]apermap.Polynomial, len(r.Fibers))
	for i, f := range r.Fibers {
		out[i] = f.Trace
	}
	return out
}

// Fit synthesises missing fibers and fits one trace per slot. Any fiber
// that cannot be fitted aborts the whole fit.
func Fit(in Input) (Result, error) {
	degree := in.Degree
	if degree <= 0 {
		degree = DefaultDegree
	}
	n := len(in.Profiles)
	for i, t := range in.Tracks {
		if len(t) != n {
			return Result{}, fmt.Errorf("%w: track %d has %d entries for %d profiles", apermap.ErrConfiguration, i, len(t), n)
		}
	}

	var res Result
	res.Fibers = make([]Fiber, len(in.Slots))
	for i, s := range in.Slots {
		f := Fiber{Label: i + 1, Template: s.Template, Reference: s.Position}
		if s.Missing() {
			f.Synthesized = true
			f.Entries = make(l3tracks.Track, n)
		} else {
			if s.Track >= len(in.Tracks) {
				return Result{}, fmt.Errorf("%w: slot %d refers to track %d of %d", apermap.ErrConfiguration, i+1, s.Track, len(in.Tracks))
			}
			f.Entries = append(l3tracks.Track(nil), in.Tracks[s.Track]...)
		}
		res.Fibers[i] = f
	}

	if err := synthesize(&res, in.Profiles, degree); err != nil {
		return Result{}, err
	}

	for i := range res.Fibers {
		f := &res.Fibers[i]
		for p, e := range f.Entries {
			if !e.Detected {
				continue
			}
			f.X = append(f.X, in.Profiles[p].Center+in.Curvature.Offset(e.Pos))
			f.Y = append(f.Y, e.Pos)
		}
		if len(f.X) < degree+1 {
			return Result{}, fmt.Errorf("%w: fiber %d has %d points for degree %d", apermap.ErrFit, f.Label, len(f.X), degree)
		}
		poly, err := apermap.PolyFit(f.X, f.Y, degree)
		if err != nil {
			return Result{}, fmt.Errorf("fiber %d: %w", f.Label, err)
		}
		f.Trace = poly
		tracef("fiber %d: %d points, synthesized=%v", f.Label, len(f.X), f.Synthesized)
	}
	diagf("fitted %d traces (degree %d), %d synthesized points", len(res.Fibers), degree, res.SynthesizedPoints)
	return res, nil
}

// synthesize fills the entries of missing fibers profile by profile from
// a fit of template coordinate to detected row over the detected fibers.
func synthesize(res *Result, profiles []l1profiles.ColumnProfile, degree int) error {
	var missing []int
	for i, f := range res.Fibers {
		if f.Synthesized {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	for p := range profiles {
		var xs, ys []float64
		for _, f := range res.Fibers {
			if f.Synthesized || !f.Entries[p].Detected {
				continue
			}
			xs = append(xs, f.Template)
			ys = append(ys, f.Entries[p].Pos)
		}
		if len(xs) < 2 {
			tracef("profile %d: %d detected fibers, nothing to synthesise from", p, len(xs))
			continue
		}
		layout, err := apermap.PolyFit(xs, ys, min(degree, len(xs)-1))
		if err != nil {
			return fmt.Errorf("profile %d layout: %w", p, err)
		}
		for _, i := range missing {
			res.Fibers[i].Entries[p] = apermap.Detected(layout.Eval(res.Fibers[i].Template))
			res.SynthesizedPoints++
		}
	}
	if res.SynthesizedPoints > 0 {
		opsf("synthesised %d fibers from the template layout", len(missing))
	}
	return nil
}
