package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Log      LogConfig      `mapstructure:"log"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Compose  ComposeConfig  `mapstructure:"compose"`
	Bundles  BundlesConfig  `mapstructure:"bundles"`
	Status   StatusConfig   `mapstructure:"status"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProxyConfig holds reverse proxy integration configuration.
type ProxyConfig struct {
	// Network is the shared network applications attach to so Traefik can
	// reach them.
	Network string `mapstructure:"network"`

	// ProbeTarget is the base URL health probes are issued against. Probes
	// go through the proxy, never directly to a container.
	ProbeTarget string `mapstructure:"probe_target"`

	// ProbeHostHeader is the Host header set on probe requests so the
	// proxy routes them like external traffic.
	ProbeHostHeader string `mapstructure:"probe_host_header"`

	// EnableHTTPS routes applications through the websecure entrypoint
	// with TLS termination.
	EnableHTTPS bool `mapstructure:"enable_https"`
}

// ComposeConfig holds compose CLI configuration.
type ComposeConfig struct {
	Binary string `mapstructure:"binary"`
}

// BundlesConfig holds bundle storage configuration.
type BundlesConfig struct {
	// Dir is the base directory where extracted application bundles live.
	Dir string `mapstructure:"dir"`
}

// StatusConfig holds the background status refresher configuration.
type StatusConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	AppTimeout      time.Duration `mapstructure:"app_timeout"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s") // bundle uploads and builds are slow
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/milkcrate.db")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("proxy.network", "milkcrate-traefik")
	v.SetDefault("proxy.probe_target", "http://traefik:80")
	v.SetDefault("proxy.probe_host_header", "localhost")
	v.SetDefault("proxy.enable_https", false)
	v.SetDefault("compose.binary", "docker-compose")
	v.SetDefault("bundles.dir", "./data/bundles")
	v.SetDefault("status.refresh_interval", "30s")
	v.SetDefault("status.app_timeout", "30s")
	v.SetDefault("status.max_concurrent", 5)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("MILKCRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
