package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tracing parameters.
// Every field is optional; omitted fields fall back to the calibrated
// defaults through the Get* accessors.
type TuningConfig struct {
	// Column profiles
	TraceStep *int `json:"trace_step,omitempty"`
	NLines    *int `json:"n_lines,omitempty"`

	// Peak detection
	DistanceMultiplier *float64 `json:"distance_multiplier,omitempty"`
	ProminenceCut      *float64 `json:"prominence_cut,omitempty"`
	RelHeight          *float64 `json:"rel_height,omitempty"`

	// Track alignment and cleaning
	MatchTolerancePx *float64 `json:"match_tolerance_px,omitempty"`
	MaxGapFraction   *float64 `json:"max_gap_fraction,omitempty"`

	// Missing-fiber resolution
	GapFactor         *float64 `json:"gap_factor,omitempty"`
	MatchRadiusFactor *float64 `json:"match_radius_factor,omitempty"`
	GapWindow         *int     `json:"gap_window,omitempty"`

	// Trace fitting
	PolyDegree *int `json:"poly_degree,omitempty"`

	// Templates
	TemplateNativeBinning *int    `json:"template_native_binning,omitempty"`
	TemplateDir           *string `json:"template_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// calibrated default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		TraceStep:             ptrInt(20),
		NLines:                ptrInt(11),
		DistanceMultiplier:    ptrFloat64(1.8),
		ProminenceCut:         ptrFloat64(20),
		RelHeight:             ptrFloat64(0.5),
		MatchTolerancePx:      ptrFloat64(3),
		MaxGapFraction:        ptrFloat64(0.2),
		GapFactor:             ptrFloat64(1.5),
		MatchRadiusFactor:     ptrFloat64(2),
		GapWindow:             ptrInt(5),
		PolyDegree:            ptrInt(4),
		TemplateNativeBinning: ptrInt(1),
		TemplateDir:           ptrString("templates"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/apermap/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TraceStep != nil && *c.TraceStep <= 0 {
		return fmt.Errorf("trace_step must be positive, got %d", *c.TraceStep)
	}
	if c.NLines != nil && *c.NLines <= 0 {
		return fmt.Errorf("n_lines must be positive, got %d", *c.NLines)
	}
	if c.RelHeight != nil && (*c.RelHeight <= 0 || *c.RelHeight > 1) {
		return fmt.Errorf("rel_height must be in (0, 1], got %f", *c.RelHeight)
	}
	if c.MaxGapFraction != nil && (*c.MaxGapFraction < 0 || *c.MaxGapFraction > 1) {
		return fmt.Errorf("max_gap_fraction must be between 0 and 1, got %f", *c.MaxGapFraction)
	}
	for name, v := range map[string]*float64{
		"distance_multiplier": c.DistanceMultiplier,
		"match_tolerance_px":  c.MatchTolerancePx,
		"gap_factor":          c.GapFactor,
		"match_radius_factor": c.MatchRadiusFactor,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.ProminenceCut != nil && *c.ProminenceCut < 0 {
		return fmt.Errorf("prominence_cut must be non-negative, got %f", *c.ProminenceCut)
	}
	if c.GapWindow != nil && *c.GapWindow < 1 {
		return fmt.Errorf("gap_window must be at least 1, got %d", *c.GapWindow)
	}
	if c.PolyDegree != nil && (*c.PolyDegree < 1 || *c.PolyDegree > 9) {
		return fmt.Errorf("poly_degree must be between 1 and 9, got %d", *c.PolyDegree)
	}
	if c.TemplateNativeBinning != nil && *c.TemplateNativeBinning <= 0 {
		return fmt.Errorf("template_native_binning must be positive, got %d", *c.TemplateNativeBinning)
	}
	return nil
}

// GetTraceStep returns the trace_step value or the default.
func (c *TuningConfig) GetTraceStep() int {
	if c.TraceStep == nil {
		return 20
	}
	return *c.TraceStep
}

// GetNLines returns the n_lines value or the default.
func (c *TuningConfig) GetNLines() int {
	if c.NLines == nil {
		return 11
	}
	return *c.NLines
}

// GetDistanceMultiplier returns the distance_multiplier value or the default.
func (c *TuningConfig) GetDistanceMultiplier() float64 {
	if c.DistanceMultiplier == nil {
		return 1.8
	}
	return *c.DistanceMultiplier
}

// GetProminenceCut returns the prominence_cut value or the default.
func (c *TuningConfig) GetProminenceCut() float64 {
	if c.ProminenceCut == nil {
		return 20
	}
	return *c.ProminenceCut
}

// GetRelHeight returns the rel_height value or the default.
func (c *TuningConfig) GetRelHeight() float64 {
	if c.RelHeight == nil {
		return 0.5
	}
	return *c.RelHeight
}

// GetMatchTolerancePx returns the match_tolerance_px value or the default.
func (c *TuningConfig) GetMatchTolerancePx() float64 {
	if c.MatchTolerancePx == nil {
		return 3
	}
	return *c.MatchTolerancePx
}

// GetMaxGapFraction returns the max_gap_fraction value or the default.
func (c *TuningConfig) GetMaxGapFraction() float64 {
	if c.MaxGapFraction == nil {
		return 0.2
	}
	return *c.MaxGapFraction
}

// GetGapFactor returns the gap_factor value or the default.
func (c *TuningConfig) GetGapFactor() float64 {
	if c.GapFactor == nil {
		return 1.5
	}
	return *c.GapFactor
}

// GetMatchRadiusFactor returns the match_radius_factor value or the default.
func (c *TuningConfig) GetMatchRadiusFactor() float64 {
	if c.MatchRadiusFactor == nil {
		return 2
	}
	return *c.MatchRadiusFactor
}

// GetGapWindow returns the gap_window value or the default.
func (c *TuningConfig) GetGapWindow() int {
	if c.GapWindow == nil {
		return 5
	}
	return *c.GapWindow
}

// GetPolyDegree returns the poly_degree value or the default.
func (c *TuningConfig) GetPolyDegree() int {
	if c.PolyDegree == nil {
		return 4
	}
	return *c.PolyDegree
}

// GetTemplateNativeBinning returns the template_native_binning value or the default.
func (c *TuningConfig) GetTemplateNativeBinning() int {
	if c.TemplateNativeBinning == nil {
		return 1
	}
	return *c.TemplateNativeBinning
}

// GetTemplateDir returns the template_dir value or the default.
func (c *TuningConfig) GetTemplateDir() string {
	if c.TemplateDir == nil || *c.TemplateDir == "" {
		return "templates"
	}
	return *c.TemplateDir
}
