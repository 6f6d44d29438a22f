package l2peaks

import (
	"math"
	"sort"
)

// Peak is one accepted local maximum of a profile.
type Peak struct {
	Index      int
	Height     float64
	Prominence float64
	LeftBase   int
	RightBase  int

	// Width is measured at Height - Prominence*RelHeight between the
	// interpolated crossings Left and Right.
	Width float64
	Left  float64
	Right float64
}

// Center is the sub-pixel midpoint between the half-height crossings.
func (p Peak) Center() float64 { return (p.Left + p.Right) / 2 }

// Criteria selects peaks. Zero values disable the distance, prominence
// and width filters (every local maximum has prominence and width >= 0).
type Criteria struct {
	Distance   float64
	Prominence float64
	Width      float64
	RelHeight  float64
}

// FindPeaks returns the peaks of x that satisfy c, ordered by index.
// Filters apply in the order distance, prominence, width.
func FindPeaks(x []float64, c Criteria) []Peak {
	idx := localMaxima(x)
	if c.Distance >= 1 && len(idx) > 1 {
		idx = selectByDistance(x, idx, c.Distance)
	}

	relHeight := c.RelHeight
	if relHeight <= 0 {
		relHeight = 0.5
	}

	peaks := make([]Peak, 0, len(idx))
	for _, i := range idx {
		p := prominence(x, i)
		if p.Prominence < c.Prominence {
			continue
		}
		width(x, &p, relHeight)
		if p.Width < c.Width {
			continue
		}
		peaks = append(peaks, p)
	}
	return peaks
}

// localMaxima finds strict local maxima, taking the midpoint of flat
// plateaus. The first and last samples are never peaks.
func localMaxima(x []float64) []int {
	var out []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				out = append(out, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return out
}

// selectByDistance keeps the highest peaks and removes every lower peak
// closer than ceil(distance) samples to one already kept.
func selectByDistance(x []float64, idx []int, distance float64) []int {
	d := int(math.Ceil(distance))
	order := make([]int, len(idx))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[idx[order[a]]] < x[idx[order[b]]] })

	keep := make([]bool, len(idx))
	for i := range keep {
		keep[i] = true
	}
	for k := len(order) - 1; k >= 0; k-- {
		j := order[k]
		if !keep[j] {
			continue
		}
		for l := j - 1; l >= 0 && idx[j]-idx[l] < d; l-- {
			keep[l] = false
		}
		for l := j + 1; l < len(idx) && idx[l]-idx[j] < d; l++ {
			keep[l] = false
		}
	}

	out := idx[:0:0]
	for i, ok := range keep {
		if ok {
			out = append(out, idx[i])
		}
	}
	return out
}

// prominence walks outwards from the peak until a higher sample or the
// edge of the profile, tracking the lowest point on each side.
func prominence(x []float64, peak int) Peak {
	h := x[peak]
	leftMin, leftBase := h, peak
	for i := peak; i >= 0 && x[i] <= h; i-- {
		if x[i] < leftMin {
			leftMin, leftBase = x[i], i
		}
	}
	rightMin, rightBase := h, peak
	for i := peak; i < len(x) && x[i] <= h; i++ {
		if x[i] < rightMin {
			rightMin, rightBase = x[i], i
		}
	}
	return Peak{
		Index:      peak,
		Height:     h,
		Prominence: h - math.Max(leftMin, rightMin),
		LeftBase:   leftBase,
		RightBase:  rightBase,
	}
}

// width interpolates the crossings of the evaluation height inside the
// peak's bases.
func width(x []float64, p *Peak, relHeight float64) {
	height := p.Height - p.Prominence*relHeight

	i := p.Index
	for p.LeftBase < i && height < x[i] {
		i--
	}
	left := float64(i)
	if x[i] < height {
		left += (height - x[i]) / (x[i+1] - x[i])
	}

	i = p.Index
	for i < p.RightBase && height < x[i] {
		i++
	}
	right := float64(i)
	if x[i] < height {
		right -= (height - x[i]) / (x[i-1] - x[i])
	}

	p.Left, p.Right = left, right
	p.Width = right - left
}
