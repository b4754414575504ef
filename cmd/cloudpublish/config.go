package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Management ManagementConfig `mapstructure:"management"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Emulator   EmulatorConfig   `mapstructure:"emulator"`
	Log        LogConfig        `mapstructure:"log"`
}

// ManagementConfig holds the management endpoint and credentials.
type ManagementConfig struct {
	Endpoint              string        `mapstructure:"endpoint"`
	Subscription          string        `mapstructure:"subscription"`
	Token                 string        `mapstructure:"token"`
	TokenFile             string        `mapstructure:"token_file"` // re-read on every reconnect
	Timeout               time.Duration `mapstructure:"timeout"`
	OperationPollInterval time.Duration `mapstructure:"operation_poll_interval"`
	OperationTimeout      time.Duration `mapstructure:"operation_timeout"`
}

// TokenSource returns the configured credential source. A token file wins
// over an inline token.
func (c ManagementConfig) TokenSource() channel.TokenSource {
	if c.TokenFile != "" {
		return channel.FileToken(c.TokenFile)
	}
	return channel.StaticToken(c.Token)
}

// RetryConfig holds the retry policy for transient management failures.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// PublishConfig holds verification settings. Zero timeouts wait until
// interrupted.
type PublishConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	StartTimeout       time.Duration `mapstructure:"start_timeout"`
	ReadyTimeout       time.Duration `mapstructure:"ready_timeout"`
	CertificateTimeout time.Duration `mapstructure:"certificate_timeout"`
	DNSSuffix          string        `mapstructure:"dns_suffix"`
	UpgradeMode        string        `mapstructure:"upgrade_mode"`
}

// StorageConfig holds blob storage settings for package uploads.
type StorageConfig struct {
	Bucket     string        `mapstructure:"bucket"`
	PresignTTL time.Duration `mapstructure:"presign_ttl"`
}

// EmulatorConfig holds settings for the local management emulator.
type EmulatorConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DSN             string        `mapstructure:"dsn"`
	Token           string        `mapstructure:"token"`
	StorageEndpoint string        `mapstructure:"storage_endpoint"`
	StorageRegion   string        `mapstructure:"storage_region"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the listen address in host:port format.
func (c EmulatorConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("management.endpoint", "http://127.0.0.1:8443")
	v.SetDefault("management.subscription", "")
	v.SetDefault("management.token", "")
	v.SetDefault("management.token_file", "")
	v.SetDefault("management.timeout", "60s")
	v.SetDefault("management.operation_poll_interval", "2s")
	v.SetDefault("management.operation_timeout", "30m")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "10s")
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("publish.poll_interval", "5s")
	v.SetDefault("publish.start_timeout", "0s")
	v.SetDefault("publish.ready_timeout", "0s")
	v.SetDefault("publish.certificate_timeout", "5m")
	v.SetDefault("publish.dns_suffix", "cloudapp.net")
	v.SetDefault("publish.upgrade_mode", "Auto")

	v.SetDefault("storage.bucket", "deployments")
	v.SetDefault("storage.presign_ttl", "24h")

	v.SetDefault("emulator.host", "127.0.0.1")
	v.SetDefault("emulator.port", 8443)
	v.SetDefault("emulator.dsn", "./data/emulator.db")
	v.SetDefault("emulator.token", "")
	v.SetDefault("emulator.storage_endpoint", "")
	v.SetDefault("emulator.storage_region", "us-east-1")
	v.SetDefault("emulator.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing file falls back to defaults.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CLOUDPUBLISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w so command output on stdout stays clean.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
