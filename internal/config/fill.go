// Package config loads optional fill settings from JSON files. All
// fields are pointers so a partial file only overrides what it names;
// the Get accessors fall back to the solver defaults, which keeps the
// same file usable as a full or fragmentary parameterisation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clearsky-data/gridfill"
)

// FillConfig is the JSON schema of a fill settings file. The field names
// match the run log's params_json document, so a recorded run can be
// replayed by feeding its parameters back in.
type FillConfig struct {
	Relax         *float64 `json:"relax,omitempty"`
	Tolerance     *float64 `json:"tolerance,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	Cyclic        *bool    `json:"cyclic,omitempty"`
	InitZonal     *bool    `json:"init_zonal,omitempty"`
	Workers       *int     `json:"workers,omitempty"`

	// Sentinel overrides the missing-value marker instead of taking it
	// from the variable's attributes.
	Sentinel *float64 `json:"sentinel,omitempty"`

	// LatDim and LonDim name the grid dimensions when the variable does
	// not store them as its last two axes.
	LatDim *string `json:"lat_dim,omitempty"`
	LonDim *string `json:"lon_dim,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyFillConfig returns a FillConfig with every field unset.
func EmptyFillConfig() *FillConfig {
	return &FillConfig{}
}

// LoadFillConfig loads a FillConfig from a JSON file. The path must
// carry a .json extension and the file must be under the size cap.
// Fields omitted from the JSON keep their defaults, so partial configs
// are safe.
func LoadFillConfig(path string) (*FillConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyFillConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values that are set.
func (c *FillConfig) Validate() error {
	if c.Relax != nil {
		if *c.Relax <= 0 || *c.Relax >= 2 {
			return fmt.Errorf("relax must be between 0 and 2 exclusive, got %f", *c.Relax)
		}
	}
	if c.Tolerance != nil {
		if *c.Tolerance <= 0 {
			return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
		}
	}
	if c.MaxIterations != nil {
		if *c.MaxIterations <= 0 {
			return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
		}
	}
	if c.Workers != nil {
		if *c.Workers < 0 {
			return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
		}
	}
	return nil
}

// GetRelax returns the relax value or the solver default.
func (c *FillConfig) GetRelax() float64 {
	if c.Relax == nil {
		return gridfill.DefaultRelax
	}
	return *c.Relax
}

// GetTolerance returns the tolerance value or the solver default.
func (c *FillConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return gridfill.DefaultTolerance
	}
	return *c.Tolerance
}

// GetMaxIterations returns the max_iterations value or the solver default.
func (c *FillConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return gridfill.DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetCyclic returns the cyclic value or the default.
func (c *FillConfig) GetCyclic() bool {
	if c.Cyclic == nil {
		return false
	}
	return *c.Cyclic
}

// GetInitZonal returns the init_zonal value or the default.
func (c *FillConfig) GetInitZonal() bool {
	if c.InitZonal == nil {
		return false
	}
	return *c.InitZonal
}

// GetWorkers returns the workers value or the default.
func (c *FillConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0 // default: sequential
	}
	return *c.Workers
}

// GetLatDim returns the lat_dim name or empty for the conventional axis.
func (c *FillConfig) GetLatDim() string {
	if c.LatDim == nil {
		return ""
	}
	return *c.LatDim
}

// GetLonDim returns the lon_dim name or empty for the conventional axis.
func (c *FillConfig) GetLonDim() string {
	if c.LonDim == nil {
		return ""
	}
	return *c.LonDim
}

// Params expands the config into solver parameters, substituting the
// solver defaults for unset fields.
func (c *FillConfig) Params() gridfill.Params {
	return gridfill.Params{
		Relax:         c.GetRelax(),
		Tolerance:     c.GetTolerance(),
		MaxIterations: c.GetMaxIterations(),
		Cyclic:        c.GetCyclic(),
		InitZonal:     c.GetInitZonal(),
		Workers:       c.GetWorkers(),
	}
}
