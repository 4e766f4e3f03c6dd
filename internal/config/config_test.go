package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "CRASH DATE", c.DateColumn)
	assert.Equal(t, "CRASH TIME", c.TimeColumn)
	assert.Equal(t, "BOROUGH", c.BoroughColumn)
	assert.Equal(t, 10, c.TopN)
	assert.InDelta(t, 0.95, c.ConfidenceLevel, 1e-12)
	assert.InDelta(t, 0.05, c.SignificanceLevel, 1e-12)
	assert.False(t, c.DenseGrid)
	assert.Equal(t, filepath.Join(home, ".crashlens", "projects"), c.ProjectsDir)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("top_n: 3\ndense_grid: true\nmodel_terms: [borough, season]\nborough_column: Borough Name\n"), 0o644))
	t.Setenv("CRASHLENS_TOP_N", "7")

	c, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, c.TopN)
	assert.True(t, c.DenseGrid)
	assert.Equal(t, []string{"borough", "season"}, c.ModelTerms)
	assert.Equal(t, "Borough Name", c.BoroughColumn)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c := Defaults()
	c.TopN = 4
	c.LogFormat = "json"
	require.NoError(t, Save(c, ""))

	dir, err := Dir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	back, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, back.TopN)
	assert.Equal(t, "json", back.LogFormat)
}

func TestValidate(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.Validate())

	c.ConfidenceLevel = 1
	assert.ErrorContains(t, c.Validate(), "confidence_level")

	c = Defaults()
	c.TopN = -1
	assert.ErrorContains(t, c.Validate(), "top_n")

	c = Defaults()
	c.LogFormat = "xml"
	assert.ErrorContains(t, c.Validate(), "log_format")

	t.Setenv("HOME", t.TempDir())
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("significance_level: 2\n"), 0o644))
	_, err := Load(cfgPath)
	assert.ErrorContains(t, err, "significance_level")
}
