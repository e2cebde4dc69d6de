package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.Pool.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.Pool.MinConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.vapi.ai", cfg.VAPI.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "builtin", cfg.Specs.Source)
	assert.Equal(t, 4, cfg.Backfill.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: intake.db
server:
  port: 9090
specs:
  source: file
  path: fields.yaml
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "intake.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Specs.Source)
	assert.Equal(t, "fields.yaml", cfg.Specs.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "https://api.vapi.ai", cfg.VAPI.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INTAKE_STORE_DRIVER", "postgres")
	t.Setenv("INTAKE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)

	t.Setenv("INTAKE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validServe() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      "postgres",
			DatabaseURL: "postgres://localhost/intake",
		},
		Server: ServerConfig{Port: 8080},
		Specs:  SpecsConfig{Source: "builtin"},
		Backfill: BackfillConfig{
			Concurrency: 4,
		},
	}
}

func TestValidateServe_OK(t *testing.T) {
	assert.NoError(t, validServe().Validate("serve"))
}

func TestValidateServe_MissingDB(t *testing.T) {
	cfg := validServe()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_BadDriver(t *testing.T) {
	cfg := validServe()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validServe()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_SpecsFileNeedsPath(t *testing.T) {
	cfg := validServe()
	cfg.Specs.Source = "file"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs.path is required")
}

func TestValidateServe_SpecsNotionNeedsCredentials(t *testing.T) {
	cfg := validServe()
	cfg.Specs.Source = "notion"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.field_db is required")
}

func TestValidateBackfill(t *testing.T) {
	cfg := validServe()

	err := cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vapi.api_key is required")

	cfg.VAPI.APIKey = "key"
	assert.NoError(t, cfg.Validate("backfill"))

	cfg.Backfill.Concurrency = 0
	err = cfg.Validate("backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill.concurrency must be between 1 and 32")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validServe().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
