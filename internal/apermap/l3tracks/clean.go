package l3tracks

import (
	"fmt"
	"sort"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Cleaned is the output of Clean.
type Cleaned struct {
	// Tracks are ordered by ascending position at the reference profile
	// and are all detected there.
	Tracks []Track
	// Reference is the index of the profile with the most detections.
	Reference int

	DroppedGappy       int
	DroppedAtReference int
}

// Positions returns each track's position at the reference profile.
func (c Cleaned) Positions() []float64 {
	out := make([]float64, len(c.Tracks))
	for i, t := range c.Tracks {
		out[i] = t[c.Reference].Pos
	}
	return out
}

// Clean drops tracks whose gap fraction exceeds maxGapFraction, picks the
// reference profile and keeps only tracks detected there, sorted by their
// reference position. Ties for the reference resolve to the lower middle
// of the tied profile indices.
func Clean(tracks []Track, maxGapFraction float64) (Cleaned, error) {
	if maxGapFraction < 0 || maxGapFraction > 1 {
		return Cleaned{}, fmt.Errorf("%w: max gap fraction %v outside [0,1]", apermap.ErrConfiguration, maxGapFraction)
	}

	out := Cleaned{Reference: -1}
	var kept []Track
	for _, t := range tracks {
		if t.GapFraction() > maxGapFraction {
			out.DroppedGappy++
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return out, fmt.Errorf("%w: all %d tracks exceed gap fraction %.2f", apermap.ErrSignalNotFound, len(tracks), maxGapFraction)
	}

	out.Reference = referenceProfile(kept)
	for _, t := range kept {
		if !t[out.Reference].Detected {
			out.DroppedAtReference++
			continue
		}
		out.Tracks = append(out.Tracks, t)
	}
	ref := out.Reference
	sort.SliceStable(out.Tracks, func(a, b int) bool {
		return out.Tracks[a][ref].Pos < out.Tracks[b][ref].Pos
	})

	if out.DroppedGappy > 0 {
		opsf("dropped %d tracks with more than %.0f%% gaps", out.DroppedGappy, maxGapFraction*100)
	}
	diagf("reference profile %d: %d tracks kept, %d gappy, %d gap at reference",
		ref, len(out.Tracks), out.DroppedGappy, out.DroppedAtReference)
	return out, nil
}

func referenceProfile(tracks []Track) int {
	counts := make([]int, len(tracks[0]))
	for _, t := range tracks {
		for p, e := range t {
			if e.Detected {
				counts[p]++
			}
		}
	}
	best := -1
	var tied []int
	for p, n := range counts {
		switch {
		case n > best:
			best = n
			tied = append(tied[:0], p)
		case n == best:
			tied = append(tied, p)
		}
	}
	return tied[(len(tied)-1)/2]
}
