package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const configDirName = ".agentic-typer"

// Config holds run settings. It is persisted as JSON under
// .agentic-typer/config.json in the project directory; missing files fall
// back to defaults so a bare checkout works without an init step.
type Config struct {
	// OracleCommand is the headless agent CLI invoked for every repair turn.
	// The instruction is written to its stdin; it must emit a JSON event
	// stream on stdout (see pkg/oracle).
	OracleCommand []string `json:"oracle_command"`
	// LintCommand produces lint diagnostics in file:line:col: message form.
	LintCommand []string `json:"lint_command"`
	// BaselineWorkers bounds per-file concurrency while establishing the
	// type-check baseline.
	BaselineWorkers int `json:"baseline_workers"`
	// FullCoverageWorkers bounds concurrency in the full-coverage phase.
	// Serial by default: full-coverage repairs rewrite shared type
	// definitions, and concurrent writes to those are unsafe.
	FullCoverageWorkers int `json:"full_coverage_workers"`
	// OracleRetries bounds same-session retries after transient oracle
	// failures (rate limits included).
	OracleRetries int `json:"oracle_retries"`
	// SkipTestFiles excludes _test.go files from the repair file list.
	SkipTestFiles bool `json:"skip_test_files"`

	// FullCoverage enables the second phase after the baseline is clean.
	FullCoverage bool `json:"-"`
	// DryRun reports schedule order and diagnostics without invoking the
	// oracle.
	DryRun bool `json:"-"`
	// Quiet suppresses non-warning console output.
	Quiet bool `json:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OracleCommand:       []string{"agent", "--print", "--output-format", "stream-json"},
		LintCommand:         []string{"go", "vet", "./..."},
		BaselineWorkers:     10,
		FullCoverageWorkers: 1,
		OracleRetries:       3,
		SkipTestFiles:       true,
	}
}

func configPath(projectDir string) string {
	return filepath.Join(projectDir, configDirName, "config.json")
}

// LoadOrInit reads the project config, writing the defaults back when no
// config file exists yet.
func LoadOrInit(projectDir string) (*Config, error) {
	cfg := Default()
	path := configPath(projectDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if saveErr := Save(projectDir, cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyFloors()
	return cfg, nil
}

// Save writes the config as indented JSON, creating the dot directory when
// needed.
func Save(projectDir string, cfg *Config) error {
	path := configPath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", configDirName, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// applyFloors repairs nonsensical hand-edited values.
func (c *Config) applyFloors() {
	if c.BaselineWorkers < 1 {
		c.BaselineWorkers = 1
	}
	if c.FullCoverageWorkers < 1 {
		c.FullCoverageWorkers = 1
	}
	if c.OracleRetries < 0 {
		c.OracleRetries = 0
	}
	if len(c.OracleCommand) == 0 {
		c.OracleCommand = Default().OracleCommand
	}
	if len(c.LintCommand) == 0 {
		c.LintCommand = Default().LintCommand
	}
}
