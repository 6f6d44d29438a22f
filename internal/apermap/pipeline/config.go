package pipeline

import (
	"fmt"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/apermap/l2peaks"
	"github.com/banshee-data/ifum-apermap/internal/config"
)

// Config holds every tunable of a run. The defaults are the empirically
// calibrated values operators rely on; change them through the tuning
// file rather than in code.
type Config struct {
	TraceStep int // columns between profile boundaries
	NLines    int // columns stacked per profile

	Peaks l2peaks.Config

	MatchTolerance float64 // px, track continuation
	MaxGapFraction float64 // tracks with more gaps are dropped

	GapFactor         float64
	MatchRadiusFactor float64
	GapWindow         int

	PolyDegree int

	// Rectify shifts every row by its curvature offset before stacking so
	// profile columns are local to the spectral region.
	Rectify bool
	// MaskEdges zeroes pixels outside the valid span before stacking.
	MaskEdges bool
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		TraceStep:         20,
		NLines:            11,
		Peaks:             l2peaks.DefaultConfig(),
		MatchTolerance:    3,
		MaxGapFraction:    0.2,
		GapFactor:         1.5,
		MatchRadiusFactor: 2,
		GapWindow:         5,
		PolyDegree:        4,
		Rectify:           true,
	}
}

// ConfigFromTuning builds a Config from the JSON tuning file. Fields the
// file omits take their defaults through the Get* accessors.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := DefaultConfig()
	c.TraceStep = cfg.GetTraceStep()
	c.NLines = cfg.GetNLines()
	c.Peaks = l2peaks.Config{
		DistanceMultiplier: cfg.GetDistanceMultiplier(),
		ProminenceCut:      cfg.GetProminenceCut(),
		RelHeight:          cfg.GetRelHeight(),
	}
	c.MatchTolerance = cfg.GetMatchTolerancePx()
	c.MaxGapFraction = cfg.GetMaxGapFraction()
	c.GapFactor = cfg.GetGapFactor()
	c.MatchRadiusFactor = cfg.GetMatchRadiusFactor()
	c.GapWindow = cfg.GetGapWindow()
	c.PolyDegree = cfg.GetPolyDegree()
	return c
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.TraceStep <= 0 || c.NLines <= 0 {
		return fmt.Errorf("%w: trace_step %d, n_lines %d", apermap.ErrConfiguration, c.TraceStep, c.NLines)
	}
	if c.MatchTolerance <= 0 {
		return fmt.Errorf("%w: match tolerance %v", apermap.ErrConfiguration, c.MatchTolerance)
	}
	if c.MaxGapFraction < 0 || c.MaxGapFraction > 1 {
		return fmt.Errorf("%w: max gap fraction %v", apermap.ErrConfiguration, c.MaxGapFraction)
	}
	if c.Peaks.DistanceMultiplier <= 0 || c.Peaks.ProminenceCut < 0 || c.Peaks.RelHeight <= 0 || c.Peaks.RelHeight > 1 {
		return fmt.Errorf("%w: peak config %+v", apermap.ErrConfiguration, c.Peaks)
	}
	if c.GapFactor <= 0 || c.MatchRadiusFactor <= 0 || c.GapWindow < 1 {
		return fmt.Errorf("%w: resolver gap factor %v, radius factor %v, window %d",
			apermap.ErrConfiguration, c.GapFactor, c.MatchRadiusFactor, c.GapWindow)
	}
	if c.PolyDegree < 1 {
		return fmt.Errorf("%w: polynomial degree %d", apermap.ErrConfiguration, c.PolyDegree)
	}
	return nil
}
