package l2peaks

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l1profiles"
)

// Config holds the empirically tuned multipliers of the two-pass
// detector. They are operator-facing calibration defaults.
type Config struct {
	// DistanceMultiplier scales the half width into the minimum peak
	// separation (1.8; the simplified variant uses 2).
	DistanceMultiplier float64
	// ProminenceCut is the fixed prominence floor (20).
	ProminenceCut float64
	// RelHeight is the relative height of the width measurement (0.5).
	RelHeight float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{DistanceMultiplier: 1.8, ProminenceCut: 20, RelHeight: 0.5}
}

// Thresholds are derived once per frame by PreAnalyze and shared by the
// refined pass and every later layer that needs the aperture size.
type Thresholds struct {
	HalfWidth     int
	MedianSpacing float64
	WidthCut      float64
	DistanceCut   float64
	ProminenceCut float64
	RelHeight     float64
}

// Criteria returns the refined-pass selection criteria.
func (t Thresholds) Criteria() Criteria {
	return Criteria{
		Distance:   t.DistanceCut,
		Prominence: t.ProminenceCut,
		Width:      t.WidthCut,
		RelHeight:  t.RelHeight,
	}
}

// PreAnalyze runs an unthresholded pass over every profile and derives
// the aperture half width from the median peak-to-peak spacing.
func PreAnalyze(profiles []l1profiles.ColumnProfile, cfg Config) (Thresholds, error) {
	var spacings []float64
	for _, p := range profiles {
		peaks := FindPeaks(p.Flux, Criteria{RelHeight: cfg.RelHeight})
		for i := 1; i < len(peaks); i++ {
			spacings = append(spacings, float64(peaks[i].Index-peaks[i-1].Index))
		}
	}
	if len(spacings) == 0 {
		return Thresholds{}, fmt.Errorf("%w: no peak pairs in %d profiles", apermap.ErrSignalNotFound, len(profiles))
	}

	median, err := stats.Median(spacings)
	if err != nil {
		return Thresholds{}, fmt.Errorf("%w: median spacing: %v", apermap.ErrSignalNotFound, err)
	}
	half := int(math.RoundToEven(median / 2))
	if half < 1 {
		return Thresholds{}, fmt.Errorf("%w: median peak spacing %.1f px gives no usable aperture", apermap.ErrSignalNotFound, median)
	}

	t := Thresholds{
		HalfWidth:     half,
		MedianSpacing: median,
		WidthCut:      float64(half - 1),
		DistanceCut:   float64(half) * cfg.DistanceMultiplier,
		ProminenceCut: cfg.ProminenceCut,
		RelHeight:     cfg.RelHeight,
	}
	diagf("pre-analysis: %d spacings, median %.2f px, half width %d, width cut %.1f, distance cut %.2f, prominence cut %.1f",
		len(spacings), median, t.HalfWidth, t.WidthCut, t.DistanceCut, t.ProminenceCut)
	return t, nil
}

// Detect runs the refined pass and returns the ascending sub-pixel peak
// centres of every profile. It fails when a majority of profiles have no
// peaks at all.
func Detect(profiles []l1profiles.ColumnProfile, t Thresholds) ([][]float64, error) {
	crit := t.Criteria()
	out := make([][]float64, len(profiles))
	empty := 0
	for i, p := range profiles {
		peaks := FindPeaks(p.Flux, crit)
		centers := make([]float64, len(peaks))
		for k, pk := range peaks {
			centers[k] = pk.Center()
		}
		sort.Float64s(centers)
		out[i] = centers
		if len(centers) == 0 {
			empty++
		}
		tracef("profile %d (col %.1f): %d peaks", i, p.Center, len(centers))
	}
	if empty*2 > len(profiles) {
		return nil, fmt.Errorf("%w: %d of %d profiles have no peaks", apermap.ErrSignalNotFound, empty, len(profiles))
	}
	if empty > 0 {
		opsf("%d of %d profiles have no peaks", empty, len(profiles))
	}
	return out, nil
}
