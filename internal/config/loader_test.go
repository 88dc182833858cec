package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config dir at a temp directory so a developer's
// real config never leaks into tests.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, DefaultAPITimeout, cfg.API.Timeout)
	assert.Equal(t, SessionBackendFile, cfg.Session.Backend)
	assert.Equal(t, DefaultSessionPath(SessionBackendFile), cfg.Session.Path)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultTokenTTL, cfg.Server.TokenTTL)
	assert.Equal(t, DefaultMaxAttempts, cfg.Server.RateLimit.MaxAttempts)
	assert.Equal(t, DefaultLocale, cfg.Locale)
}

func TestLoad_DefaultDirFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, "serverboard")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeConfig(t, dir, "api:\n  url: http://localhost:9000\n")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.API.URL)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), `api:
  url: http://127.0.0.1:8374
  timeout: 3s
session:
  backend: sqlite
  path: /tmp/sb/session.db
log:
  level: debug
server:
  port: 9090
  token_ttl: 1h
  rate_limit:
    max_attempts: 2
    window: 30s
locale: de
`)

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8374", cfg.API.URL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, SessionBackendSQLite, cfg.Session.Backend)
	assert.Equal(t, "/tmp/sb/session.db", cfg.Session.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Server.TokenTTL)
	assert.Equal(t, 2, cfg.Server.RateLimit.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)
	// untouched keys keep defaults
	assert.Equal(t, DefaultBlockAfter, cfg.Server.RateLimit.BlockAfter)
	assert.Equal(t, "de", cfg.Locale)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "api: [")

	_, err := Load(NewViper(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "api:\n  url: http://from-file:1\n")
	t.Setenv("SERVERBOARD_API_URL", "http://from-env:2")
	t.Setenv("SERVERBOARD_SESSION_BACKEND", "memory")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:2", cfg.API.URL)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Empty(t, cfg.Session.Path)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("# comment\nSERVERBOARD_LOCALE=lt\n"), 0o644))
	t.Setenv("SERVERBOARD_LOCALE", "")
	require.NoError(t, os.Unsetenv("SERVERBOARD_LOCALE"))

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "lt", os.Getenv("SERVERBOARD_LOCALE"))

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "lt", cfg.Locale)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative api url", func(c *Config) { c.API.URL = "/v1" }, "api.url"},
		{"ftp api url", func(c *Config) { c.API.URL = "ftp://example.com" }, "api.url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "redis" }, "session.backend"},
		{"file backend without path", func(c *Config) { c.Session.Path = "" }, "session.path"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad locale", func(c *Config) { c.Locale = "not a tag!" }, "locale"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero token ttl", func(c *Config) { c.Server.TokenTTL = 0 }, "server.token_ttl"},
		{"zero attempts", func(c *Config) { c.Server.RateLimit.MaxAttempts = 0 }, "server.rate_limit.max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Session.Path = "/tmp/session.json"
			tt.mutate(&cfg)

			err := ValidateConfig(&cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("memory backend needs no path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Session.Backend = SessionBackendMemory
		assert.NoError(t, ValidateConfig(&cfg))
	})
}
