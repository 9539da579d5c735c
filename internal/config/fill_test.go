package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clearsky-data/gridfill"
)

func TestLoadFillConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fill.json")

	testJSON := `{
  "relax": 0.55,
  "tolerance": 1e-5,
  "max_iterations": 250,
  "cyclic": true,
  "init_zonal": true,
  "workers": 4,
  "sentinel": -999,
  "lat_dim": "latitude",
  "lon_dim": "longitude"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadFillConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Relax == nil || *cfg.Relax != 0.55 {
		t.Errorf("Expected Relax 0.55, got %v", cfg.Relax)
	}
	if cfg.Tolerance == nil || *cfg.Tolerance != 1e-5 {
		t.Errorf("Expected Tolerance 1e-5, got %v", cfg.Tolerance)
	}
	if cfg.MaxIterations == nil || *cfg.MaxIterations != 250 {
		t.Errorf("Expected MaxIterations 250, got %v", cfg.MaxIterations)
	}
	if cfg.Cyclic == nil || *cfg.Cyclic != true {
		t.Errorf("Expected Cyclic true, got %v", cfg.Cyclic)
	}
	if cfg.InitZonal == nil || *cfg.InitZonal != true {
		t.Errorf("Expected InitZonal true, got %v", cfg.InitZonal)
	}
	if cfg.Workers == nil || *cfg.Workers != 4 {
		t.Errorf("Expected Workers 4, got %v", cfg.Workers)
	}
	if cfg.Sentinel == nil || *cfg.Sentinel != -999 {
		t.Errorf("Expected Sentinel -999, got %v", cfg.Sentinel)
	}
	if cfg.GetLatDim() != "latitude" {
		t.Errorf("GetLatDim() = %q, want latitude", cfg.GetLatDim())
	}
	if cfg.GetLonDim() != "longitude" {
		t.Errorf("GetLonDim() = %q, want longitude", cfg.GetLonDim())
	}
}

func TestLoadFillConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"relax": 0.45}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadFillConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetRelax() != 0.45 {
		t.Errorf("GetRelax() = %f, want 0.45", cfg.GetRelax())
	}
	if cfg.GetTolerance() != gridfill.DefaultTolerance {
		t.Errorf("GetTolerance() = %g, want solver default", cfg.GetTolerance())
	}
	if cfg.GetMaxIterations() != gridfill.DefaultMaxIterations {
		t.Errorf("GetMaxIterations() = %d, want solver default", cfg.GetMaxIterations())
	}
	if cfg.GetCyclic() != false {
		t.Errorf("GetCyclic() = %v, want false", cfg.GetCyclic())
	}
	if cfg.GetWorkers() != 0 {
		t.Errorf("GetWorkers() = %d, want 0", cfg.GetWorkers())
	}
	if cfg.Sentinel != nil {
		t.Errorf("Expected Sentinel unset, got %v", *cfg.Sentinel)
	}
	if cfg.GetLatDim() != "" || cfg.GetLonDim() != "" {
		t.Errorf("Expected empty dimension names, got %q/%q", cfg.GetLatDim(), cfg.GetLonDim())
	}
}

func TestLoadFillConfigMissing(t *testing.T) {
	_, err := LoadFillConfig("/nonexistent/path/to/fill.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadFillConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	invalidJSON := `{
  "relax": "fast"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadFillConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadFillConfigBadExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fill.yaml")

	if err := os.WriteFile(configPath, []byte(`{"relax": 0.5}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadFillConfig(configPath)
	if err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *FillConfig
		wantErr bool
	}{
		{name: "empty config", cfg: EmptyFillConfig(), wantErr: false},
		{name: "valid full", cfg: &FillConfig{
			Relax:         ptrFloat64(0.6),
			Tolerance:     ptrFloat64(1e-4),
			MaxIterations: ptrInt(100),
			Cyclic:        ptrBool(true),
			Workers:       ptrInt(2),
		}, wantErr: false},
		{name: "relax zero", cfg: &FillConfig{Relax: ptrFloat64(0)}, wantErr: true},
		{name: "relax too large", cfg: &FillConfig{Relax: ptrFloat64(2.5)}, wantErr: true},
		{name: "negative tolerance", cfg: &FillConfig{Tolerance: ptrFloat64(-1e-4)}, wantErr: true},
		{name: "zero max iterations", cfg: &FillConfig{MaxIterations: ptrInt(0)}, wantErr: true},
		{name: "negative workers", cfg: &FillConfig{Workers: ptrInt(-1)}, wantErr: true},
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

func TestParams(t *testing.T) {
	cfg := &FillConfig{
		Relax:         ptrFloat64(0.5),
		Tolerance:     ptrFloat64(1e-6),
		MaxIterations: ptrInt(300),
		Cyclic:        ptrBool(true),
		InitZonal:     ptrBool(true),
		Workers:       ptrInt(3),
		LatDim:        ptrString("y"),
		LonDim:        ptrString("x"),
	}

	p := cfg.Params()
	if p.Relax != 0.5 || p.Tolerance != 1e-6 || p.MaxIterations != 300 {
		t.Errorf("Params() numeric fields = %+v", p)
	}
	if !p.Cyclic || !p.InitZonal || p.Workers != 3 {
		t.Errorf("Params() flag fields = %+v", p)
	}

	// An empty config expands into the solver defaults.
	dp := EmptyFillConfig().Params()
	if dp.Relax != gridfill.DefaultRelax || dp.Tolerance != gridfill.DefaultTolerance || dp.MaxIterations != gridfill.DefaultMaxIterations {
		t.Errorf("empty config Params() = %+v, want solver defaults", dp)
	}
}
