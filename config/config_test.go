package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `The file "`)
	assert.Contains(t, err.Error(), "can not be found")
}

func TestLoadDefaultsThreadCount(t *testing.T) {
	path := writeConfig(t, `
pfx_cert_path = "server.pfx"
pfx_pass = "secret"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultThreadCount, cfg.ThreadCount)
}

func TestUseTCPAndUDS(t *testing.T) {
	path := writeConfig(t, `
pfx_cert_path = "server.pfx"
pfx_pass = "secret"
tcp_client_host = "127.0.0.1:9001"
tcp_monitor_host = "127.0.0.1:9002"
uds_client_path = "/tmp/remonitor-client.sock"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.UseTCP())
	assert.False(t, cfg.UseUDS(), "uds_monitor_path missing, both must be set")
}

func TestLoadRejectsMissingCert(t *testing.T) {
	path := writeConfig(t, `thread_count = 2`)
	_, err := Load(path)
	require.Error(t, err)
}
