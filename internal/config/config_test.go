package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 336*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.ClientTimeout)
	assert.Equal(t, "http://localhost:3333", cfg.BaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/learning")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, StoragePostgres, cfg.Storage)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
port = "9000"
storage = "libsql"
base_url = "http://tracker.local"
rate_limit_burst = 10
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StorageLibSQL, cfg.Storage)
	assert.Equal(t, "http://tracker.local", cfg.BaseURL)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Storage:                StorageMemory,
		SessionTTL:             time.Hour,
		SessionCleanupInterval: time.Hour,
		RateLimitRPS:           1,
		RateLimitBurst:         1,
	}

	cfg := base
	assert.NoError(t, cfg.Validate())

	cfg = base
	cfg.Storage = "redis"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage backend")

	cfg = base
	cfg.Storage = StoragePostgres
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = base
	cfg.SessionTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = base
	cfg.SessionCleanupInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "session_cleanup_interval")

	cfg = base
	cfg.TrustedProxies = []string{"10.0.0.0/8", "not-an-ip"}
	assert.ErrorContains(t, cfg.Validate(), "not-an-ip")
}

func TestLoadRejectsZeroCleanupInterval(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SESSION_CLEANUP_INTERVAL", "0s")

	_, err := Load("")
	assert.ErrorContains(t, err, "session_cleanup_interval")
}

func TestTrustedProxyNets(t *testing.T) {
	cfg := &Config{TrustedProxies: []string{"10.0.0.0/8", " 192.0.2.4 ", "::1", ""}}
	nets, err := cfg.TrustedProxyNets()
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.True(t, nets[0].Contains(net.ParseIP("10.1.2.3")))
	assert.True(t, nets[1].Contains(net.ParseIP("192.0.2.4")))
	assert.False(t, nets[1].Contains(net.ParseIP("192.0.2.5")))
	assert.True(t, nets[2].Contains(net.ParseIP("::1")))
}

func TestCSRFAuthKey(t *testing.T) {
	cfg := &Config{}
	key, generated, err := cfg.CSRFAuthKey()
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Len(t, key, 32)

	cfg.CSRFKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	key, generated, err = cfg.CSRFAuthKey()
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, byte(0x1f), key[31])

	cfg.CSRFKey = "abcdefghijklmnopqrstuvwxyz012345"
	key, _, err = cfg.CSRFAuthKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefghijklmnopqrstuvwxyz012345"), key)

	cfg.CSRFKey = "short"
	_, _, err = cfg.CSRFAuthKey()
	assert.Error(t, err)
}
