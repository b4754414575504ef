package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8443", cfg.Management.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Management.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Management.OperationPollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Management.OperationTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.Equal(t, 5*time.Second, cfg.Publish.PollInterval)
	assert.Zero(t, cfg.Publish.StartTimeout)
	assert.Zero(t, cfg.Publish.ReadyTimeout)
	assert.Equal(t, "cloudapp.net", cfg.Publish.DNSSuffix)
	assert.Equal(t, "Auto", cfg.Publish.UpgradeMode)
	assert.Equal(t, "deployments", cfg.Storage.Bucket)
	assert.Equal(t, 24*time.Hour, cfg.Storage.PresignTTL)
	assert.Equal(t, "127.0.0.1:8443", cfg.Emulator.Address())
	assert.Equal(t, "./data/emulator.db", cfg.Emulator.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
management:
  endpoint: "https://management.example.com"
  subscription: "sub-1"
  token_file: "/run/secrets/token"
retry:
  max_attempts: 5
publish:
  ready_timeout: 20m
  upgrade_mode: Manual
emulator:
  port: 9443
log:
  level: debug
  format: json
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0o644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "https://management.example.com", cfg.Management.Endpoint)
	assert.Equal(t, "sub-1", cfg.Management.Subscription)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 20*time.Minute, cfg.Publish.ReadyTimeout)
	assert.Equal(t, "Manual", cfg.Publish.UpgradeMode)
	assert.Equal(t, 9443, cfg.Emulator.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// Unset keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Publish.PollInterval)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8443", cfg.Management.Endpoint)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("management: [unclosed"), 0o644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUDPUBLISH_MANAGEMENT_ENDPOINT", "http://localhost:9000")
	t.Setenv("CLOUDPUBLISH_MANAGEMENT_SUBSCRIPTION", "sub-env")
	t.Setenv("CLOUDPUBLISH_PUBLISH_POLL_INTERVAL", "250ms")
	t.Setenv("CLOUDPUBLISH_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Management.Endpoint)
	assert.Equal(t, "sub-env", cfg.Management.Subscription)
	assert.Equal(t, 250*time.Millisecond, cfg.Publish.PollInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestManagementConfig_TokenSource(t *testing.T) {
	assert.Equal(t, channel.StaticToken("inline"), ManagementConfig{Token: "inline"}.TokenSource())
	assert.Equal(t, channel.FileToken("/tmp/token"),
		ManagementConfig{Token: "inline", TokenFile: "/tmp/token"}.TokenSource())
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestSetupLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := SetupLogger(&Config{Log: LogConfig{Level: "debug", Format: "json"}}, &buf)
		logger.Debug("hello", "service", "web")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "web", entry["service"])
	})

	t.Run("text filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := SetupLogger(&Config{Log: LogConfig{Level: "error", Format: "text"}}, &buf)
		logger.Info("quiet")
		logger.Error("loud")

		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "msg=loud")
	})
}

// =============================================================================
// Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CLOUDPUBLISH_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}
