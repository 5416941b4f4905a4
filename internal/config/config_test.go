package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every FLEETPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"FLEETPANEL_PLATFORM_SERVER",
	"FLEETPANEL_PLATFORM_DATABASE",
	"FLEETPANEL_PLATFORM_USERNAME",
	"FLEETPANEL_PLATFORM_PASSWORD",
	"FLEETPANEL_ADDIN_ID",
	"FLEETPANEL_RECONCILE_INTERVAL",
	"FLEETPANEL_LISTEN_ADDR",
	"FLEETPANEL_DB_PATH",
	"FLEETPANEL_SECRET_KEY",
}

// isolateConfigEnv saves and unsets all FLEETPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FLEETPANEL_PLATFORM_SERVER", "https://fleet.example.com")
	t.Setenv("FLEETPANEL_PLATFORM_DATABASE", "fleetco")
	t.Setenv("FLEETPANEL_PLATFORM_USERNAME", "ops@fleetco.com")
	t.Setenv("FLEETPANEL_PLATFORM_PASSWORD", "hunter2")
	t.Setenv("FLEETPANEL_ADDIN_ID", "aCustomAddInId")
	t.Setenv("FLEETPANEL_RECONCILE_INTERVAL", "10m")
	t.Setenv("FLEETPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("FLEETPANEL_DB_PATH", "/tmp/test.db")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.com", cfg.PlatformServer)
	assert.Equal(t, "fleetco", cfg.PlatformDatabase)
	assert.Equal(t, "ops@fleetco.com", cfg.PlatformUsername)
	assert.Equal(t, "hunter2", cfg.PlatformPassword)
	assert.Equal(t, "aCustomAddInId", cfg.AddInID)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.True(t, cfg.HasPlatformCredentials())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, defaultAddInID, cfg.AddInID)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "fleetpanel.db", cfg.DBPath)
	assert.Nil(t, cfg.SecretKey)
}

// TestLoad_MissingCredentials verifies that absent platform credentials do
// not cause an error: the service starts unconfigured and waits for
// credentials through the API.
func TestLoad_MissingCredentials(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FLEETPANEL_PLATFORM_SERVER", "https://fleet.example.com")
	t.Setenv("FLEETPANEL_PLATFORM_DATABASE", "fleetco")

	cfg, err := Load()

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.False(t, cfg.HasPlatformCredentials())
}

func TestLoad_InvalidReconcileInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FLEETPANEL_RECONCILE_INTERVAL", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLEETPANEL_RECONCILE_INTERVAL")
}

func TestLoad_SecretKey_Valid(t *testing.T) {
	isolateConfigEnv(t)
	// 64 hex chars = 32 bytes
	t.Setenv("FLEETPANEL_SECRET_KEY", "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Len(t, cfg.SecretKey, 32)
	assert.Equal(t, byte(0x01), cfg.SecretKey[0])
	assert.Equal(t, byte(0x20), cfg.SecretKey[31])
}

func TestLoad_SecretKey_TooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("FLEETPANEL_SECRET_KEY", "deadbeef")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLEETPANEL_SECRET_KEY")
}

func TestLoad_SecretKey_NotHex(t *testing.T) {
	isolateConfigEnv(t)
	// 64 chars but not valid hex
	t.Setenv("FLEETPANEL_SECRET_KEY", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLEETPANEL_SECRET_KEY")
}
