package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends understood by the server.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageLibSQL   = "libsql"
)

// Config holds server and client settings. Every key can be set from the
// environment using its upper-cased name (PORT, DATABASE_URL, ...).
type Config struct {
	// Server
	Port                   string        `mapstructure:"port"`
	Storage                string        `mapstructure:"storage"`
	DatabaseURL            string        `mapstructure:"database_url"`
	DataDir                string        `mapstructure:"data_dir"`
	CSRFKey                string        `mapstructure:"csrf_key"`
	SecureCookies          bool          `mapstructure:"secure_cookies"`
	SessionTTL             time.Duration `mapstructure:"session_ttl"`
	SessionCleanupInterval time.Duration `mapstructure:"session_cleanup_interval"`
	AllowedOrigins         []string      `mapstructure:"allowed_origins"`
	MetricsUser            string        `mapstructure:"metrics_user"`
	MetricsPass            string        `mapstructure:"metrics_pass"`
	PprofSecret            string        `mapstructure:"pprof_secret"`
	RateLimitRPS           float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst         int           `mapstructure:"rate_limit_burst"`
	TrustedProxies         []string      `mapstructure:"trusted_proxies"`
	LogLevel               string        `mapstructure:"log_level"`

	// Optional superuser created at server start.
	SuperuserUsername string `mapstructure:"superuser_username"`
	SuperuserEmail    string `mapstructure:"superuser_email"`
	SuperuserPassword string `mapstructure:"superuser_password"`

	// Client
	BaseURL       string        `mapstructure:"base_url"`
	StateDir      string        `mapstructure:"state_dir"`
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
}

// DefaultDataDir returns the default directory for server data (~/.learningtracker/).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".learningtracker")
	}
	return filepath.Join(home, ".learningtracker")
}

// Load reads .env (if present), then the optional TOML config file, the
// environment and defaults, in increasing order of precedence from defaults.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("port", "3333")
	v.SetDefault("storage", StorageMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("csrf_key", "")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("session_ttl", "336h")
	v.SetDefault("session_cleanup_interval", "1h")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("metrics_user", "")
	v.SetDefault("metrics_pass", "")
	v.SetDefault("pprof_secret", "")
	v.SetDefault("rate_limit_rps", 5.0)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("superuser_username", "")
	v.SetDefault("superuser_email", "")
	v.SetDefault("superuser_password", "")
	v.SetDefault("base_url", "http://localhost:3333")
	v.SetDefault("state_dir", filepath.Join(DefaultDataDir(), "client"))
	v.SetDefault("client_timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "learningtracker"))
		}
		v.AddConfigPath(DefaultDataDir())
		v.SetConfigName("config")
		v.SetConfigType("toml")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageLibSQL:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage %q", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	}
	if c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("session_cleanup_interval must be positive, got %s", c.SessionCleanupInterval)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive (rps=%v burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TrustedProxies. Entries are CIDRs or single addresses.
func (c *Config) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// CSRFAuthKey returns the 32-byte key used to sign CSRF cookies. The key may
// be given as 64 hex characters or 32 raw bytes; when unset a random key is
// generated, which invalidates issued tokens on every restart.
func (c *Config) CSRFAuthKey() (key []byte, generated bool, err error) {
	raw := strings.TrimSpace(c.CSRFKey)
	switch {
	case raw == "":
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, false, fmt.Errorf("generating csrf key: %w", err)
		}
		return key, true, nil
	case len(raw) == 64:
		key, err = hex.DecodeString(raw)
		if err != nil {
			return nil, false, fmt.Errorf("decoding csrf_key: %w", err)
		}
		return key, false, nil
	case len(raw) == 32:
		return []byte(raw), false, nil
	default:
		return nil, false, fmt.Errorf("csrf_key must be 32 bytes or 64 hex characters, got %d characters", len(raw))
	}
}
