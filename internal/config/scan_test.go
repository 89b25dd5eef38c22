package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScanConfig(t *testing.T) {
	cfg := DefaultScanConfig()

	require.NotNil(t, cfg.TargetFPS)
	assert.Equal(t, 15.0, *cfg.TargetFPS)
	require.NotNil(t, cfg.Downsample)
	assert.Equal(t, 2, *cfg.Downsample)
	assert.False(t, cfg.GetNormalize())
	assert.Equal(t, "mean", cfg.GetReduction())
	assert.Equal(t, 1000, cfg.GetSourceWidth())
	assert.Equal(t, "rings", cfg.GetPattern())
	assert.NoError(t, cfg.Validate())
}

func TestEmptyScanConfig_GettersFallBack(t *testing.T) {
	cfg := EmptyScanConfig()

	assert.Equal(t, 15.0, cfg.GetTargetFPS())
	assert.Equal(t, 2, cfg.GetDownsample())
	assert.Equal(t, 30.0, cfg.GetSourceFPS())
	assert.Equal(t, 1000, cfg.GetHistoryMax())
	assert.Equal(t, ":8090", cfg.GetListen())
	assert.Equal(t, "scans.db", cfg.GetDBPath())
	assert.Equal(t, "plots", cfg.GetPlotDir())
}

func TestLoadScanConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "target_fps": 20,
  "downsample": 4,
  "normalize": true
}`), 0o644))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.GetTargetFPS())
	assert.Equal(t, 4, cfg.GetDownsample())
	assert.True(t, cfg.GetNormalize())
	// Omitted fields keep defaults.
	assert.Equal(t, "mean", cfg.GetReduction())
	assert.Nil(t, cfg.SourceFPS)
}

func TestLoadScanConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_fps: 10\nreduction: sum\npattern: uniform\n"), 0o644))

	cfg, err := LoadScanConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.GetTargetFPS())
	assert.Equal(t, "sum", cfg.GetReduction())
	assert.Equal(t, "uniform", cfg.GetPattern())
}

func TestLoadScanConfig_Rejects(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad extension", func(t *testing.T) {
		path := filepath.Join(dir, "scan.toml")
		require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
		_, err := LoadScanConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScanConfig(filepath.Join(dir, "absent.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadScanConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(dir, "huge.json")
		payload := `{"listen": "` + strings.Repeat("x", 1024*1024) + `"}`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))
		_, err := LoadScanConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"downsample": 0}`), 0o644))
		_, err := LoadScanConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "downsample")
	})
}

func TestScanConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ScanConfig
		wantErr string
	}{
		{"negative fps", ScanConfig{TargetFPS: ptrFloat64(-1)}, "target_fps"},
		{"zero fps disables throttling", ScanConfig{TargetFPS: ptrFloat64(0)}, ""},
		{"unknown reduction", ScanConfig{Reduction: ptrString("median")}, "reduction"},
		{"zero source fps", ScanConfig{SourceFPS: ptrFloat64(0)}, "source_fps"},
		{"zero width", ScanConfig{SourceWidth: ptrInt(0)}, "source_width"},
		{"unknown pattern", ScanConfig{Pattern: ptrString("stripes")}, "pattern"},
		{"zero history", ScanConfig{HistoryMax: ptrInt(0)}, "history_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, DefaultScanConfig().GetTargetFPS(), cfg.GetTargetFPS())
	assert.Equal(t, DefaultScanConfig().GetDownsample(), cfg.GetDownsample())
}
