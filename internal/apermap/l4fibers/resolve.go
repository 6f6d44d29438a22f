package l4fibers

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Options tunes Resolve. Zero values fall back to the calibrated defaults.
type Options struct {
	Layout Layout
	// Expected is the per-side fiber count of the IFU. The ungrouped
	// strategy never inserts markers beyond it.
	Expected int
	// HalfWidth is the aperture half width in pixels.
	HalfWidth float64

	GapFactor         float64 // bundle gap: spacing > GapFactor * local median (1.5)
	MatchRadiusFactor float64 // match radius in half widths (2)
	GapWindow         int     // spacings either side of the local median (5)
	Degree            int     // template -> frame mapping degree (4)
}

// DefaultOptions returns the calibrated defaults for layout.
func DefaultOptions(layout Layout) Options {
	return Options{
		Layout:            layout,
		GapFactor:         1.5,
		MatchRadiusFactor: 2,
		GapWindow:         5,
		Degree:            4,
	}
}

func (o Options) withDefaults(template []float64) Options {
	d := DefaultOptions(o.Layout)
	if o.GapFactor <= 0 {
		o.GapFactor = d.GapFactor
	}
	if o.MatchRadiusFactor <= 0 {
		o.MatchRadiusFactor = d.MatchRadiusFactor
	}
	if o.GapWindow <= 0 {
		o.GapWindow = d.GapWindow
	}
	if o.Degree <= 0 {
		o.Degree = d.Degree
	}
	if o.HalfWidth <= 0 {
		o.HalfWidth = medianSpacing(template) / 2
	}
	if o.Expected <= 0 {
		o.Expected = len(template)
	}
	return o
}

// Slot is one fiber of the resolved layout.
type Slot struct {
	// Template is the fiber's coordinate in the template frame.
	Template float64
	// Position is the detected reference position, or the predicted one
	// for a missing fiber.
	Position float64
	// Track indexes the observed positions; -1 marks a missing fiber.
	Track int
}

// Missing reports whether the fiber was not detected.
func (s Slot) Missing() bool { return s.Track < 0 }

// Resolution is the output of Resolve.
type Resolution struct {
	// Slots are ordered by Position; slot i becomes fiber label i+1.
	Slots []Slot
	// Missing holds the 1-based slot indices of undetected fibers.
	Missing []int
	// Unmatched counts detections without a template counterpart. They
	// are kept as slots.
	Unmatched int
}

// Resolve compares the ascending detected reference positions with the
// template and returns the full fiber layout including missing fibers.
// It never fails; shortfalls show up as a Missing list or a slot count
// that differs from Options.Expected.
func Resolve(template, observed []float64, opts Options) Resolution {
	tpl := sortedCopy(template)
	obs := sortedCopy(observed)
	opts = opts.withDefaults(tpl)

	var r Resolution
	switch opts.Layout {
	case LayoutUngrouped:
		r = resolveUngrouped(tpl, obs, opts)
	default:
		r = resolveGrouped(tpl, obs, opts)
	}
	for i, s := range r.Slots {
		if s.Missing() {
			r.Missing = append(r.Missing, i+1)
		}
	}

	diagf("%s resolve: %d template, %d observed -> %d slots, %d missing, %d unmatched",
		opts.Layout, len(tpl), len(obs), len(r.Slots), len(r.Missing), r.Unmatched)
	if len(r.Missing) > 0 {
		opsf("missing fibers at slots %v", r.Missing)
	}
	return r
}

type gap struct {
	Left, Right float64
}

func (g gap) mid() float64   { return (g.Left + g.Right) / 2 }
func (g gap) width() float64 { return g.Right - g.Left }

// bundleGaps finds spacings that exceed factor times the median of the
// spacings within window on either side.
func bundleGaps(pos []float64, factor float64, window int) []gap {
	if len(pos) < 3 {
		return nil
	}
	d := diffs(pos)
	var out []gap
	local := make([]float64, 0, 2*window+1)
	for i := range d {
		lo := max(0, i-window)
		hi := min(len(d), i+window+1)
		local = append(local[:0], d[lo:hi]...)
		sort.Float64s(local)
		if d[i] > factor*stat.Quantile(0.5, stat.Empirical, local, nil) {
			out = append(out, gap{Left: pos[i], Right: pos[i+1]})
		}
	}
	return out
}

// coarseMap aligns the template onto the detections. The scale is the
// ratio of median spacings; the shift is the end-anchored candidate that
// matches the most fibers, allowing a few missing or extra fibers at
// either end.
func coarseMap(tpl, obs []float64, radius float64) func(float64) float64 {
	scale := 1.0
	if ts, ds := medianSpacing(tpl), medianSpacing(obs); ts > 0 && ds > 0 {
		scale = ds / ts
	}

	const reach = 3
	var shifts []float64
	for k := 0; k < min(reach, len(tpl)); k++ {
		for j := 0; j < min(reach, len(obs)); j++ {
			shifts = append(shifts,
				obs[j]-scale*tpl[k],
				obs[len(obs)-1-j]-scale*tpl[len(tpl)-1-k])
		}
	}

	best, bestN, bestCost := shifts[0], -1, math.Inf(1)
	pred := make([]float64, len(tpl))
	for _, shift := range shifts {
		for i, t := range tpl {
			pred[i] = shift + scale*t
		}
		n, cost := 0, 0.0
		for i, j := range matchNearest(pred, obs, radius, true) {
			if j >= 0 {
				n++
				cost += math.Abs(pred[i] - obs[j])
			}
		}
		if n > bestN || (n == bestN && cost < bestCost) {
			best, bestN, bestCost = shift, n, cost
		}
	}
	tracef("coarse map: scale %.4f shift %.2f, %d fibers matched", scale, best, bestN)
	return func(x float64) float64 { return best + scale*x }
}

// gapAnchors pairs template gaps with observed gaps and returns the bundle
// edges of every pair whose widths agree. A pair whose observed gap is
// wider than the template's has lost an edge fiber and is skipped.
func gapAnchors(tpl, obs []float64, o Options, coarse func(float64) float64) (xs, ys []float64) {
	tg := bundleGaps(tpl, o.GapFactor, o.GapWindow)
	og := bundleGaps(obs, o.GapFactor, o.GapWindow)
	if len(tg) == 0 || len(og) == 0 {
		return nil, nil
	}

	mapped := make([]float64, len(tg))
	for i, g := range tg {
		mapped[i] = coarse(g.mid())
	}
	tol := math.Inf(1)
	if len(tg) > 1 {
		tol = 0.5 * floats.Min(diffs(mapped))
	}
	oMid := make([]float64, len(og))
	for i, g := range og {
		oMid[i] = g.mid()
	}

	slope := coarse(1) - coarse(0)
	widthTol := 0.5 * medianSpacing(tpl) * math.Abs(slope)
	for i, j := range matchNearest(mapped, oMid, tol, false) {
		if j < 0 {
			continue
		}
		if math.Abs(og[j].width()-tg[i].width()*slope) > widthTol {
			tracef("gap at %.1f: width %.1f vs template %.1f, edge fiber missing", og[j].mid(), og[j].width(), tg[i].width()*slope)
			continue
		}
		xs = append(xs, tg[i].Left, tg[i].Right)
		ys = append(ys, og[j].Left, og[j].Right)
	}
	return xs, ys
}

func resolveGrouped(tpl, obs []float64, o Options) Resolution {
	if len(obs) == 0 || len(tpl) == 0 {
		return trivial(tpl, obs)
	}

	radius := o.MatchRadiusFactor * o.HalfWidth
	coarse := coarseMap(tpl, obs, radius)
	mapping := coarse
	xs, ys := gapAnchors(tpl, obs, o, coarse)
	if len(xs) >= 2 {
		if p, err := apermap.PolyFit(xs, ys, min(o.Degree, len(xs)-1)); err == nil {
			mapping = p.Eval
			diagf("gap mapping from %d bundle edges, degree %d", len(xs), p.Degree())
		}
	} else {
		diagf("no usable bundle gaps, using coarse mapping")
	}

	pred := predict(tpl, mapping)
	match := matchNearest(pred, obs, radius, true)

	var mt, mo []float64
	for k, j := range match {
		if j >= 0 {
			mt = append(mt, tpl[k])
			mo = append(mo, obs[j])
		}
	}
	if len(mt) >= 2 {
		if p, err := apermap.PolyFit(mt, mo, min(o.Degree, len(mt)-1)); err == nil {
			pred = predict(tpl, p.Eval)
			match = matchNearest(pred, obs, radius, true)
		}
	}

	var r Resolution
	used := make([]bool, len(obs))
	mt, mo = mt[:0], mo[:0]
	for k, j := range match {
		if j < 0 {
			r.Slots = append(r.Slots, Slot{Template: tpl[k], Position: pred[k], Track: -1})
			continue
		}
		used[j] = true
		mt = append(mt, tpl[k])
		mo = append(mo, obs[j])
		r.Slots = append(r.Slots, Slot{Template: tpl[k], Position: obs[j], Track: j})
	}
	for j, ok := range used {
		if ok {
			continue
		}
		r.Unmatched++
		r.Slots = append(r.Slots, Slot{Template: interpolate(obs[j], mo, mt), Position: obs[j], Track: j})
	}
	sort.SliceStable(r.Slots, func(a, b int) bool { return r.Slots[a].Position < r.Slots[b].Position })
	return r
}

func resolveUngrouped(tpl, obs []float64, o Options) Resolution {
	if len(obs) == 0 || len(tpl) == 0 {
		return trivial(tpl, obs)
	}

	threshold := 0.0
	if len(tpl) > 1 {
		threshold = o.GapFactor * floats.Max(diffs(tpl))
	}
	spacing := medianSpacing(obs)
	if spacing <= 0 || spacing > threshold {
		// too few detections to measure the pitch
		spacing = medianSpacing(tpl)
	}

	var r Resolution
	for j, p := range obs {
		if j > 0 && threshold > 0 && spacing > 0 {
			prev := r.Slots[len(r.Slots)-1].Position
			for p-prev > threshold && len(r.Slots)+len(obs)-j < o.Expected {
				prev += spacing
				r.Slots = append(r.Slots, Slot{Position: prev, Track: -1})
			}
		}
		r.Slots = append(r.Slots, Slot{Position: p, Track: j})
	}

	step := medianSpacing(tpl)
	last := len(tpl) - 1
	for k := range r.Slots {
		if k <= last {
			r.Slots[k].Template = tpl[k]
		} else {
			r.Slots[k].Template = tpl[last] + float64(k-last)*step
		}
	}
	if len(r.Slots) > len(tpl) {
		r.Unmatched = len(r.Slots) - len(tpl)
	}
	return r
}

// trivial handles an empty side: every template fiber is missing, or
// every detection stands on its own.
func trivial(tpl, obs []float64) Resolution {
	var r Resolution
	if len(obs) == 0 {
		for _, t := range tpl {
			r.Slots = append(r.Slots, Slot{Template: t, Position: t, Track: -1})
		}
		return r
	}
	for j, p := range obs {
		r.Slots = append(r.Slots, Slot{Template: p, Position: p, Track: j})
	}
	r.Unmatched = len(obs)
	return r
}

func predict(tpl []float64, f func(float64) float64) []float64 {
	out := make([]float64, len(tpl))
	for i, t := range tpl {
		out[i] = f(t)
	}
	return out
}

// matchNearest pairs a with b one-to-one, closest pairs first. It
// returns for every element of a the index into b, or -1.
func matchNearest(a, b []float64, radius float64, inclusive bool) []int {
	type cand struct {
		i, j int
		d    float64
	}
	var cands []cand
	for i, x := range a {
		for j, y := range b {
			d := math.Abs(x - y)
			if d < radius || (inclusive && d == radius) {
				cands = append(cands, cand{i, j, d})
			}
		}
	}
	sort.SliceStable(cands, func(p, q int) bool { return cands[p].d < cands[q].d })

	out := make([]int, len(a))
	for i := range out {
		out[i] = -1
	}
	taken := make([]bool, len(b))
	for _, c := range cands {
		if out[c.i] >= 0 || taken[c.j] {
			continue
		}
		out[c.i] = c.j
		taken[c.j] = true
	}
	return out
}

// interpolate maps x through the piecewise-linear curve (xs, ys), xs
// ascending, extending the end segments.
func interpolate(x float64, xs, ys []float64) float64 {
	switch len(xs) {
	case 0:
		return x
	case 1:
		return ys[0] + x - xs[0]
	}
	i := sort.SearchFloat64s(xs, x)
	i = min(max(i, 1), len(xs)-1)
	dx := xs[i] - xs[i-1]
	if dx == 0 {
		return ys[i]
	}
	return ys[i-1] + (x-xs[i-1])*(ys[i]-ys[i-1])/dx
}

func diffs(pos []float64) []float64 {
	if len(pos) < 2 {
		return nil
	}
	out := make([]float64, len(pos)-1)
	for i := range out {
		out[i] = pos[i+1] - pos[i]
	}
	return out
}

func medianSpacing(pos []float64) float64 {
	m, err := stats.Median(diffs(pos))
	if err != nil {
		return 0
	}
	return m
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}
