package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/shell/executor"
	"github.com/maestro-sh/maestro/internal/shell/monitor"
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
	Executor ExecutorConfig `mapstructure:"executor"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
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

// ExecutorConfig holds deployment executor timeouts.
type ExecutorConfig struct {
	StartTimeout           time.Duration `mapstructure:"start_timeout"`
	StopTimeout            time.Duration `mapstructure:"stop_timeout"`
	HealthGateTimeout      time.Duration `mapstructure:"health_gate_timeout"`
	HealthGatePollInterval time.Duration `mapstructure:"health_gate_poll_interval"`
}

// MonitorConfig holds health monitor configuration.
type MonitorConfig struct {
	CheckInterval        time.Duration     `mapstructure:"check_interval"`
	NotificationInterval time.Duration     `mapstructure:"notification_interval"`
	NotificationsEnabled bool              `mapstructure:"notifications_enabled"`
	NotifyOnWarning      bool              `mapstructure:"notify_on_warning"`
	NotifyOnCritical     bool              `mapstructure:"notify_on_critical"`
	Thresholds           domain.Thresholds `mapstructure:"thresholds"`
}

// ExecutorSettings converts the config section into executor settings.
func (c ExecutorConfig) ExecutorSettings() executor.Config {
	return executor.Config{
		StartTimeout:           c.StartTimeout,
		StopTimeout:            c.StopTimeout,
		HealthGateTimeout:      c.HealthGateTimeout,
		HealthGatePollInterval: c.HealthGatePollInterval,
	}
}

// MonitorSettings converts the config section into monitor settings.
func (c MonitorConfig) MonitorSettings() monitor.Config {
	return monitor.Config{
		CheckInterval:        c.CheckInterval,
		NotificationInterval: c.NotificationInterval,
		NotificationsEnabled: c.NotificationsEnabled,
		NotifyOnWarning:      c.NotifyOnWarning,
		NotifyOnCritical:     c.NotifyOnCritical,
	}
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
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/maestro.db")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Executor defaults
	v.SetDefault("executor.start_timeout", "30s")
	v.SetDefault("executor.stop_timeout", "10s")
	v.SetDefault("executor.health_gate_timeout", "60s")
	v.SetDefault("executor.health_gate_poll_interval", "1s")

	// Monitor defaults
	v.SetDefault("monitor.check_interval", "30s")
	v.SetDefault("monitor.notification_interval", "5m")
	v.SetDefault("monitor.notifications_enabled", true)
	v.SetDefault("monitor.notify_on_warning", false)
	v.SetDefault("monitor.notify_on_critical", true)
	v.SetDefault("monitor.thresholds.cpu_warning", 70.0)
	v.SetDefault("monitor.thresholds.cpu_critical", 90.0)
	v.SetDefault("monitor.thresholds.memory_warning", 70.0)
	v.SetDefault("monitor.thresholds.memory_critical", 90.0)
	v.SetDefault("monitor.thresholds.restart_threshold", 3)

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
	v.SetEnvPrefix("MAESTRO")
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
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
