package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrInit(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// The defaults are persisted for the next run.
	_, err = os.Stat(filepath.Join(dir, ".agentic-typer", "config.json"))
	require.NoError(t, err)

	again, err := LoadOrInit(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOrInitReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.BaselineWorkers = 4
	cfg.LintCommand = []string{"staticcheck", "./..."}
	cfg.SkipTestFiles = false
	require.NoError(t, Save(dir, cfg))

	loaded, err := LoadOrInit(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.BaselineWorkers)
	assert.Equal(t, []string{"staticcheck", "./..."}, loaded.LintCommand)
	assert.False(t, loaded.SkipTestFiles)
}

func TestLoadOrInitRepairsNonsensicalValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".agentic-typer"), 0755))
	raw := `{
  "oracle_command": [],
  "lint_command": [],
  "baseline_workers": 0,
  "full_coverage_workers": -2,
  "oracle_retries": -1,
  "skip_test_files": true
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".agentic-typer", "config.json"), []byte(raw), 0644))

	cfg, err := LoadOrInit(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.BaselineWorkers)
	assert.Equal(t, 1, cfg.FullCoverageWorkers)
	assert.Equal(t, 0, cfg.OracleRetries)
	assert.Equal(t, Default().OracleCommand, cfg.OracleCommand)
	assert.Equal(t, Default().LintCommand, cfg.LintCommand)
}

func TestLoadOrInitRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".agentic-typer"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".agentic-typer", "config.json"), []byte("{nope"), 0644))

	_, err := LoadOrInit(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestRuntimeFlagsAreNotPersisted(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.FullCoverage = true
	cfg.DryRun = true
	cfg.Quiet = true
	require.NoError(t, Save(dir, cfg))

	data, err := os.ReadFile(filepath.Join(dir, ".agentic-typer", "config.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "FullCoverage")
	assert.NotContains(t, string(data), "DryRun")

	loaded, err := LoadOrInit(dir)
	require.NoError(t, err)
	assert.False(t, loaded.FullCoverage)
	assert.False(t, loaded.DryRun)
}
