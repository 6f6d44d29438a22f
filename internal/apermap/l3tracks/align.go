package l3tracks

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// Track follows one fiber across the column profiles. It always holds one
// entry per profile.
type Track []apermap.Entry

// Last returns the most recent detected position.
func (t Track) Last() (float64, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Detected {
			return t[i].Pos, true
		}
	}
	return 0, false
}

// Detections counts the detected entries.
func (t Track) Detections() int {
	n := 0
	for _, e := range t {
		if e.Detected {
			n++
		}
	}
	return n
}

// GapFraction is the share of entries that are gaps.
func (t Track) GapFraction() float64 {
	if len(t) == 0 {
		return 1
	}
	return float64(len(t)-t.Detections()) / float64(len(t))
}

// Align links the peak lists of consecutive profiles into tracks. A peak
// continues a track when it lies strictly within tolerance of the track's
// last detected position; unmatched tracks receive a gap and unmatched
// peaks start new tracks back-filled with gaps. No track is dropped.
func Align(peaks [][]float64, tolerance float64) ([]Track, error) {
	if tolerance <= 0 || math.IsNaN(tolerance) {
		return nil, fmt.Errorf("%w: match tolerance %v must be positive", apermap.ErrConfiguration, tolerance)
	}

	var tracks []Track
	for p, list := range peaks {
		list = sortedCopy(list)
		sortByLast(tracks)

		var born []Track
		i, j := 0, 0
		for i < len(tracks) && j < len(list) {
			last, _ := tracks[i].Last()
			switch {
			case math.Abs(last-list[j]) < tolerance:
				tracks[i] = append(tracks[i], apermap.Detected(list[j]))
				i++
				j++
			case last < list[j]:
				tracks[i] = append(tracks[i], apermap.Gap())
				i++
			default:
				born = append(born, newTrack(p, list[j]))
				j++
			}
		}
		for ; i < len(tracks); i++ {
			tracks[i] = append(tracks[i], apermap.Gap())
		}
		for ; j < len(list); j++ {
			born = append(born, newTrack(p, list[j]))
		}
		if len(born) > 0 && p > 0 {
			tracef("profile %d: %d new tracks", p, len(born))
		}
		tracks = append(tracks, born...)
	}
	sortByLast(tracks)
	diagf("aligned %d profiles into %d tracks", len(peaks), len(tracks))
	return tracks, nil
}

func newTrack(profile int, pos float64) Track {
	t := make(Track, profile, profile+1)
	return append(t, apermap.Detected(pos))
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func sortByLast(tracks []Track) {
	sort.SliceStable(tracks, func(a, b int) bool {
		la, _ := tracks[a].Last()
		lb, _ := tracks[b].Last()
		return la < lb
	})
}
