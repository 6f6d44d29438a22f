package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.TraceStep == nil || *cfg.TraceStep != 20 {
		t.Errorf("Expected TraceStep 20, got %v", cfg.TraceStep)
	}
	if cfg.MaxGapFraction == nil || *cfg.MaxGapFraction != 0.2 {
		t.Errorf("Expected MaxGapFraction 0.2, got %v", cfg.MaxGapFraction)
	}
	if cfg.TemplateDir == nil || *cfg.TemplateDir != "templates" {
		t.Errorf("Expected TemplateDir 'templates', got %v", cfg.TemplateDir)
	}

	// Every pointer default must agree with its getter on an empty config.
	empty := EmptyTuningConfig()
	if cfg.GetTraceStep() != empty.GetTraceStep() || cfg.GetNLines() != empty.GetNLines() {
		t.Errorf("profile defaults disagree")
	}
	if cfg.GetDistanceMultiplier() != empty.GetDistanceMultiplier() ||
		cfg.GetProminenceCut() != empty.GetProminenceCut() ||
		cfg.GetRelHeight() != empty.GetRelHeight() {
		t.Errorf("peak defaults disagree")
	}
	if cfg.GetMatchTolerancePx() != empty.GetMatchTolerancePx() || cfg.GetMaxGapFraction() != empty.GetMaxGapFraction() {
		t.Errorf("track defaults disagree")
	}
	if cfg.GetGapFactor() != empty.GetGapFactor() ||
		cfg.GetMatchRadiusFactor() != empty.GetMatchRadiusFactor() ||
		cfg.GetGapWindow() != empty.GetGapWindow() {
		t.Errorf("resolver defaults disagree")
	}
	if cfg.GetPolyDegree() != empty.GetPolyDegree() ||
		cfg.GetTemplateNativeBinning() != empty.GetTemplateNativeBinning() ||
		cfg.GetTemplateDir() != empty.GetTemplateDir() {
		t.Errorf("fit/template defaults disagree")
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "trace_step": 10,
  "n_lines": 5,
  "match_tolerance_px": 2.5,
  "poly_degree": 3,
  "template_dir": "/tmp/templates"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetTraceStep() != 10 {
		t.Errorf("Expected TraceStep 10, got %d", cfg.GetTraceStep())
	}
	if cfg.GetNLines() != 5 {
		t.Errorf("Expected NLines 5, got %d", cfg.GetNLines())
	}
	if cfg.GetMatchTolerancePx() != 2.5 {
		t.Errorf("Expected MatchTolerancePx 2.5, got %f", cfg.GetMatchTolerancePx())
	}
	if cfg.GetPolyDegree() != 3 {
		t.Errorf("Expected PolyDegree 3, got %d", cfg.GetPolyDegree())
	}
	if cfg.GetTemplateDir() != "/tmp/templates" {
		t.Errorf("Expected TemplateDir /tmp/templates, got %s", cfg.GetTemplateDir())
	}
	// Omitted fields keep their defaults
	if cfg.GetGapFactor() != 1.5 {
		t.Errorf("Expected default GapFactor 1.5, got %f", cfg.GetGapFactor())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "trace_step": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig()},
		{name: "empty config is valid", cfg: &TuningConfig{}},
		{name: "zero trace step", cfg: &TuningConfig{TraceStep: ptrInt(0)}, wantErr: true},
		{name: "negative n_lines", cfg: &TuningConfig{NLines: ptrInt(-1)}, wantErr: true},
		{name: "rel height above one", cfg: &TuningConfig{RelHeight: ptrFloat64(1.5)}, wantErr: true},
		{name: "gap fraction above one", cfg: &TuningConfig{MaxGapFraction: ptrFloat64(1.2)}, wantErr: true},
		{name: "zero match tolerance", cfg: &TuningConfig{MatchTolerancePx: ptrFloat64(0)}, wantErr: true},
		{name: "negative gap factor", cfg: &TuningConfig{GapFactor: ptrFloat64(-1)}, wantErr: true},
		{name: "negative prominence", cfg: &TuningConfig{ProminenceCut: ptrFloat64(-5)}, wantErr: true},
		{name: "zero gap window", cfg: &TuningConfig{GapWindow: ptrInt(0)}, wantErr: true},
		{name: "degree too high", cfg: &TuningConfig{PolyDegree: ptrInt(12)}, wantErr: true},
		{name: "zero native binning", cfg: &TuningConfig{TemplateNativeBinning: ptrInt(0)}, wantErr: true},
		{name: "zero prominence allowed", cfg: &TuningConfig{ProminenceCut: ptrFloat64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetTraceStep() != 20 {
		t.Errorf("Expected 20, got %d", cfg.GetTraceStep())
	}
	if cfg.GetDistanceMultiplier() != 1.8 {
		t.Errorf("Expected 1.8, got %f", cfg.GetDistanceMultiplier())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetDistanceMultiplier() != 2 {
		t.Errorf("Expected 2, got %f", cfg.GetDistanceMultiplier())
	}
	if cfg.GetTraceStep() != 10 {
		t.Errorf("Expected 10, got %d", cfg.GetTraceStep())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetPolyDegree() != 4 {
		t.Errorf("Expected 4, got %d", cfg.GetPolyDegree())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(configPath, []byte(`{"max_gap_fraction": 2}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error, got nil")
	}
}
