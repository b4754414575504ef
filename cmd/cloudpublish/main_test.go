package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/emulator"
	"github.com/artpar/cloudpublish/internal/shell/store"
)

type cli struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (c *cli) run(stdin string, args ...string) int {
	c.stdout.Reset()
	c.stderr.Reset()
	return run(args, strings.NewReader(stdin), &c.stdout, &c.stderr)
}

// setupEmulator points the CLI at an in-memory emulator through the
// environment and returns a settings file for the "web" service.
func setupEmulator(t *testing.T) string {
	t.Helper()
	clearEnv(t)

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	srv := httptest.NewServer(emulator.NewServer(st, emulator.Config{Token: "secret"}, nil).Routes())
	t.Cleanup(srv.Close)

	t.Setenv("CLOUDPUBLISH_MANAGEMENT_ENDPOINT", srv.URL)
	t.Setenv("CLOUDPUBLISH_MANAGEMENT_SUBSCRIPTION", "sub-1")
	t.Setenv("CLOUDPUBLISH_MANAGEMENT_TOKEN", "secret")
	t.Setenv("CLOUDPUBLISH_MANAGEMENT_OPERATION_POLL_INTERVAL", "5ms")
	t.Setenv("CLOUDPUBLISH_RETRY_INITIAL_DELAY", "1ms")
	t.Setenv("CLOUDPUBLISH_PUBLISH_POLL_INTERVAL", "5ms")
	t.Setenv("CLOUDPUBLISH_PUBLISH_READY_TIMEOUT", "5s")
	t.Setenv("CLOUDPUBLISH_LOG_LEVEL", "error")

	dir := t.TempDir()
	cscfg := `<ServiceConfiguration serviceName="web">
  <Role name="Web"><Instances count="1" /></Role>
</ServiceConfiguration>`
	cfgPath := filepath.Join(dir, "ServiceConfiguration.cscfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cscfg), 0o600))

	settingsYAML := fmt.Sprintf(`service: web
location: West US
label: release
package: https://blobs.example.com/deployments/web.cspkg
configuration: %s
`, cfgPath)
	settingsPath := filepath.Join(dir, "web.yaml")
	require.NoError(t, os.WriteFile(settingsPath, []byte(settingsYAML), 0o600))
	return settingsPath
}

// =============================================================================
// Command Tests
// =============================================================================

func TestRun_Version(t *testing.T) {
	var c cli
	assert.Equal(t, ExitSuccess, c.run("", "version"))
	assert.Contains(t, c.stdout.String(), "cloudpublish dev")

	assert.Equal(t, ExitSuccess, c.run("", "-version"))
	assert.Contains(t, c.stdout.String(), "cloudpublish dev")
}

func TestRun_Usage(t *testing.T) {
	clearEnv(t)
	var c cli

	assert.Equal(t, ExitConfigError, c.run(""))
	assert.Contains(t, c.stderr.String(), "usage: cloudpublish")

	assert.Equal(t, ExitConfigError, c.run("", "deploy"))
	assert.Contains(t, c.stderr.String(), `unknown command "deploy"`)
}

func TestRun_PublishValidation(t *testing.T) {
	clearEnv(t)
	var c cli

	code := c.run("", "publish", "-subscription", "sub-1", "-service", "web")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, c.stderr.String(), "package")

	code = c.run("", "publish", "-service", "web", "-slot", "qa")
	assert.Equal(t, ExitConfigError, code)
}

func TestRun_PublishLifecycle(t *testing.T) {
	settingsPath := setupEmulator(t)
	var c cli

	code := c.run("", "publish", "-settings", settingsPath, "-yes")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "==> web/production: complete")
	assert.Contains(t, c.stdout.String(), "Published web/production")
	assert.Contains(t, c.stdout.String(), "URL: http://web.cloudapp.net/")

	code = c.run("", "status", "-service", "web")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "Running")
	assert.Contains(t, c.stdout.String(), "Web_IN_0")

	code = c.run("", "stop", "-service", "web")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "web/production suspended.")

	code = c.run("", "start", "-service", "web")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "web/production is Running.")
}

func TestRun_PublishLaunch(t *testing.T) {
	settingsPath := setupEmulator(t)
	var c cli

	code := c.run("", "publish", "-settings", settingsPath, "-yes", "-launch")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "    Open http://web.cloudapp.net/")
}

func TestRun_PublishConfirmation(t *testing.T) {
	settingsPath := setupEmulator(t)
	var c cli

	code := c.run("n\n", "publish", "-settings", settingsPath)
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "[y/N]")
	assert.Contains(t, c.stdout.String(), "Publish cancelled.")

	code = c.run("", "status", "-service", "web")
	assert.Equal(t, ExitRemoteError, code)

	code = c.run("yes\n", "publish", "-settings", settingsPath, "-no-start")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.NotContains(t, c.stdout.String(), "waiting for role instances")

	code = c.run("", "status", "-service", "web")
	require.Equal(t, ExitSuccess, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "Suspended")
}

func TestRun_PublishMissingCertificate(t *testing.T) {
	settingsPath := setupEmulator(t)
	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	data = append(data, []byte("certificates:\n  - path: /nonexistent/ssl.pfx\n")...)
	require.NoError(t, os.WriteFile(settingsPath, data, 0o600))

	var c cli
	assert.Equal(t, ExitCertificateError, c.run("", "publish", "-settings", settingsPath, "-yes"))
	assert.Contains(t, c.stderr.String(), "load certificates: service web slot production")
}

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestExitCode(t *testing.T) {
	target := domain.DeploymentTarget{Subscription: "s", ServiceName: "web", Slot: domain.SlotProduction}
	boom := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), ExitInterrupted},
		{"config", domain.NewPublishError(domain.KindConfig, "resolve location", target, boom), ExitConfigError},
		{"certificate", domain.NewPublishError(domain.KindCertificate, "load", target, boom), ExitCertificateError},
		{"verification", domain.NewPublishError(domain.KindVerification, "verify", target, boom), ExitVerificationError},
		{"remote", domain.NewPublishError(domain.KindRemote, "create", target, boom), ExitRemoteError},
		{"plain", boom, ExitRemoteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureDir(":memory:"))
	require.NoError(t, ensureDir("file:"+filepath.Join(dir, "a", "emulator.db")+"?_fk=1"))

	info, err := os.Stat(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
