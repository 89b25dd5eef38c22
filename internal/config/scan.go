package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical scan defaults file.
const DefaultConfigPath = "config/scan.defaults.json"

// ScanConfig is the root configuration for the scan pipeline and its outer
// surfaces. Every field is optional; Get* accessors supply the defaults for
// anything the file leaves out, so partial configs are safe.
type ScanConfig struct {
	// Quick analysis
	TargetFPS  *float64 `json:"target_fps,omitempty" yaml:"target_fps,omitempty"`
	Downsample *int     `json:"downsample,omitempty" yaml:"downsample,omitempty"`
	Normalize  *bool    `json:"normalize,omitempty" yaml:"normalize,omitempty"`
	Reduction  *string  `json:"reduction,omitempty" yaml:"reduction,omitempty"` // "mean" or "sum"

	// Synthetic frame source used by the scanprofile binary
	SourceFPS    *float64 `json:"source_fps,omitempty" yaml:"source_fps,omitempty"`
	SourceWidth  *int     `json:"source_width,omitempty" yaml:"source_width,omitempty"`
	SourceHeight *int     `json:"source_height,omitempty" yaml:"source_height,omitempty"`
	Pattern      *string  `json:"pattern,omitempty" yaml:"pattern,omitempty"` // "rings" or "uniform"

	// Intensity history
	HistoryMax *int `json:"history_max,omitempty" yaml:"history_max,omitempty"`

	// Outer surfaces
	Listen  *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	DBPath  *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	PlotDir *string `json:"plot_dir,omitempty" yaml:"plot_dir,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyScanConfig returns a ScanConfig with all fields unset.
func EmptyScanConfig() *ScanConfig {
	return &ScanConfig{}
}

// DefaultScanConfig returns a ScanConfig with every field populated from the
// Get* defaults.
func DefaultScanConfig() *ScanConfig {
	empty := EmptyScanConfig()
	return &ScanConfig{
		TargetFPS:    ptrFloat64(empty.GetTargetFPS()),
		Downsample:   ptrInt(empty.GetDownsample()),
		Normalize:    ptrBool(empty.GetNormalize()),
		Reduction:    ptrString(empty.GetReduction()),
		SourceFPS:    ptrFloat64(empty.GetSourceFPS()),
		SourceWidth:  ptrInt(empty.GetSourceWidth()),
		SourceHeight: ptrInt(empty.GetSourceHeight()),
		Pattern:      ptrString(empty.GetPattern()),
		HistoryMax:   ptrInt(empty.GetHistoryMax()),
		Listen:       ptrString(empty.GetListen()),
		DBPath:       ptrString(empty.GetDBPath()),
		PlotDir:      ptrString(empty.GetPlotDir()),
	}
}

// LoadScanConfig loads a ScanConfig from a .json, .yaml or .yml file.
// Fields omitted from the file keep their defaults.
func LoadScanConfig(path string) (*ScanConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
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

	cfg := EmptyScanConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *ScanConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadScanConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *ScanConfig) Validate() error {
	if c.TargetFPS != nil {
		if math.IsNaN(*c.TargetFPS) || math.IsInf(*c.TargetFPS, 0) || *c.TargetFPS < 0 {
			return fmt.Errorf("target_fps must be a finite non-negative number, got %v", *c.TargetFPS)
		}
	}
	if c.Downsample != nil && *c.Downsample < 1 {
		return fmt.Errorf("downsample must be >= 1, got %d", *c.Downsample)
	}
	if c.Reduction != nil && *c.Reduction != "mean" && *c.Reduction != "sum" {
		return fmt.Errorf("reduction must be \"mean\" or \"sum\", got %q", *c.Reduction)
	}
	if c.SourceFPS != nil {
		if math.IsNaN(*c.SourceFPS) || math.IsInf(*c.SourceFPS, 0) || *c.SourceFPS <= 0 {
			return fmt.Errorf("source_fps must be a finite positive number, got %v", *c.SourceFPS)
		}
	}
	if c.SourceWidth != nil && *c.SourceWidth <= 0 {
		return fmt.Errorf("source_width must be positive, got %d", *c.SourceWidth)
	}
	if c.SourceHeight != nil && *c.SourceHeight <= 0 {
		return fmt.Errorf("source_height must be positive, got %d", *c.SourceHeight)
	}
	if c.Pattern != nil && *c.Pattern != "rings" && *c.Pattern != "uniform" {
		return fmt.Errorf("pattern must be \"rings\" or \"uniform\", got %q", *c.Pattern)
	}
	if c.HistoryMax != nil && *c.HistoryMax < 1 {
		return fmt.Errorf("history_max must be >= 1, got %d", *c.HistoryMax)
	}
	return nil
}

// GetTargetFPS returns the quick-analysis rate. Zero disables throttling.
func (c *ScanConfig) GetTargetFPS() float64 {
	if c.TargetFPS == nil {
		return 15
	}
	return *c.TargetFPS
}

// GetDownsample returns the quick-scan downsample factor.
func (c *ScanConfig) GetDownsample() int {
	if c.Downsample == nil {
		return 2
	}
	return *c.Downsample
}

// GetNormalize returns the normalize-to-max flag.
func (c *ScanConfig) GetNormalize() bool {
	if c.Normalize == nil {
		return false
	}
	return *c.Normalize
}

// GetReduction returns the per-bin reduction name.
func (c *ScanConfig) GetReduction() string {
	if c.Reduction == nil || *c.Reduction == "" {
		return "mean"
	}
	return *c.Reduction
}

// GetSourceFPS returns the synthetic source frame rate.
func (c *ScanConfig) GetSourceFPS() float64 {
	if c.SourceFPS == nil {
		return 30
	}
	return *c.SourceFPS
}

// GetSourceWidth returns the synthetic frame width in pixels.
func (c *ScanConfig) GetSourceWidth() int {
	if c.SourceWidth == nil {
		return 1000
	}
	return *c.SourceWidth
}

// GetSourceHeight returns the synthetic frame height in pixels.
func (c *ScanConfig) GetSourceHeight() int {
	if c.SourceHeight == nil {
		return 1000
	}
	return *c.SourceHeight
}

// GetPattern returns the synthetic source pattern.
func (c *ScanConfig) GetPattern() string {
	if c.Pattern == nil || *c.Pattern == "" {
		return "rings"
	}
	return *c.Pattern
}

// GetHistoryMax returns the per-profile intensity history length.
func (c *ScanConfig) GetHistoryMax() int {
	if c.HistoryMax == nil {
		return 1000
	}
	return *c.HistoryMax
}

// GetListen returns the HTTP listen address.
func (c *ScanConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8090"
	}
	return *c.Listen
}

// GetDBPath returns the sqlite database path for captured results.
func (c *ScanConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "scans.db"
	}
	return *c.DBPath
}

// GetPlotDir returns the directory for exported PNG profiles.
func (c *ScanConfig) GetPlotDir() string {
	if c.PlotDir == nil || *c.PlotDir == "" {
		return "plots"
	}
	return *c.PlotDir
}
