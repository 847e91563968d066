package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "paperval.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.InDelta(t, 0.0, cfg.Compare.NumericTolerance, 0.001)
	assert.False(t, cfg.Compare.FuzzyStrings)
	assert.False(t, cfg.Compare.ListOrderMatters)
	assert.InDelta(t, 0.7, cfg.Report.IssueThreshold, 0.001)
	assert.Equal(t, "validation_metrics.json", cfg.Report.MetricsPath)
	assert.Equal(t, "validation_report.txt", cfg.Report.TextPath)
	assert.Equal(t, 20, cfg.Prepare.SampleSize)
	assert.Equal(t, "random", cfg.Prepare.Strategy)
	assert.Equal(t, int64(42), cfg.Prepare.Seed)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/paperval
compare:
  numeric_tolerance: 0.5
  fuzzy_strings: true
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/paperval", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.5, cfg.Compare.NumericTolerance, 0.001)
	assert.True(t, cfg.Compare.FuzzyStrings)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Prepare.SampleSize)
	assert.InDelta(t, 0.7, cfg.Report.IssueThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PAPERVAL_STORE_DRIVER", "postgres")
	t.Setenv("PAPERVAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PAPERVAL_SERVER_PORT", "3000")
	t.Setenv("PAPERVAL_PREPARE_SAMPLE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Prepare.SampleSize)
}

func TestCompareOptions(t *testing.T) {
	cfg := CompareConfig{NumericTolerance: 0.25, FuzzyStrings: true, ListOrderMatters: true}
	opts := cfg.Options()
	assert.InDelta(t, 0.25, opts.NumericTolerance, 0.001)
	assert.True(t, opts.FuzzyStrings)
	assert.True(t, opts.OrderedLists)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "paperval.db"
	cfg.Report.IssueThreshold = 0.7
	cfg.Prepare.SampleSize = 20
	cfg.Prepare.Strategy = "random"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateEvaluate(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("evaluate"))

	cfg.Report.IssueThreshold = 1.5
	assert.Error(t, cfg.Validate("evaluate"))
}

func TestValidatePrepare(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("prepare"))

	cfg.Prepare.SampleSize = 0
	assert.Error(t, cfg.Validate("prepare"))

	cfg.Prepare.SampleSize = 20
	cfg.Prepare.Strategy = "alphabetical"
	assert.Error(t, cfg.Validate("prepare"))
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.Driver = "mongodb"
	cfg.Store.DatabaseURL = "mongodb://localhost"
	assert.Error(t, cfg.Validate("store"))
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate("serve"))

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("enrichment")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
