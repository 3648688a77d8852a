package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 300*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/milkcrate.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "milkcrate-traefik", cfg.Proxy.Network)
	assert.Equal(t, "http://traefik:80", cfg.Proxy.ProbeTarget)
	assert.Equal(t, "localhost", cfg.Proxy.ProbeHostHeader)
	assert.False(t, cfg.Proxy.EnableHTTPS)
	assert.Equal(t, "docker-compose", cfg.Compose.Binary)
	assert.Equal(t, "./data/bundles", cfg.Bundles.Dir)
	assert.Equal(t, 30*time.Second, cfg.Status.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.Status.AppTimeout)
	assert.Equal(t, 5, cfg.Status.MaxConcurrent)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 60s
  write_timeout: 120s
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

proxy:
  network: "edge"
  probe_host_header: "apps.example.com"
  enable_https: true

status:
  refresh_interval: 10s
  max_concurrent: 2

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "edge", cfg.Proxy.Network)
	assert.Equal(t, "apps.example.com", cfg.Proxy.ProbeHostHeader)
	assert.True(t, cfg.Proxy.EnableHTTPS)
	assert.Equal(t, 10*time.Second, cfg.Status.RefreshInterval)
	assert.Equal(t, 2, cfg.Status.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("MILKCRATE_SERVER_HOST", "192.168.1.1")
	t.Setenv("MILKCRATE_SERVER_PORT", "3000")
	t.Setenv("MILKCRATE_DATABASE_DSN", "/custom/path.db")
	t.Setenv("MILKCRATE_PROXY_NETWORK", "shared-edge")
	t.Setenv("MILKCRATE_COMPOSE_BINARY", "/usr/local/bin/docker-compose")
	t.Setenv("MILKCRATE_LOG_LEVEL", "warn")
	t.Setenv("MILKCRATE_LOG_FORMAT", "text")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "shared-edge", cfg.Proxy.Network)
	assert.Equal(t, "/usr/local/bin/docker-compose", cfg.Compose.Binary)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "invalid",
			Format: "json",
		},
	}

	// Should fall back to info level, not panic
	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

func TestSetupLogger_DebugLevel(t *testing.T) {
	cfg := &Config{
		Log: LogConfig{
			Level:  "debug",
			Format: "json",
		},
	}

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"MILKCRATE_SERVER_HOST",
		"MILKCRATE_SERVER_PORT",
		"MILKCRATE_DATABASE_DSN",
		"MILKCRATE_PROXY_NETWORK",
		"MILKCRATE_COMPOSE_BINARY",
		"MILKCRATE_LOG_LEVEL",
		"MILKCRATE_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
