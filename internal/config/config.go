// Package config loads the contentlock daemon configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/ratelimit"
	"github.com/ppiankov/contentlock/internal/store"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "CONTENTLOCK_"

// StorageConfig selects the policy record backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// BackendConfig converts the section into the store's backend selector.
func (s StorageConfig) BackendConfig() store.BackendConfig {
	return store.BackendConfig{
		Kind:          s.Backend,
		Path:          s.Path,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		RedisPrefix:   s.RedisPrefix,
	}
}

// SchedulerConfig controls the self-lock tick.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// GRPCConfig controls the gRPC listener.
type GRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// HTTPConfig controls the HTTP/JSON listener.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ProxyConfig controls the safe-request forward proxy.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AuditConfig locates the hash-chained audit log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig limits guessing of PINs, passphrases and recovery codes.
type SecurityConfig struct {
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
	LockoutWindow     time.Duration `yaml:"lockout_window"`
}

// AttemptLimit converts the section into the service's lockout limit.
func (s SecurityConfig) AttemptLimit() ratelimit.Limit {
	return ratelimit.Limit{MaxFailures: s.MaxFailedAttempts, Window: s.LockoutWindow}
}

// LogConfig selects the log handler and level.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Config is the daemon configuration.
type Config struct {
	Storage   StorageConfig       `yaml:"storage"`
	Scheduler SchedulerConfig     `yaml:"scheduler"`
	GRPC      GRPCConfig          `yaml:"grpc"`
	HTTP      HTTPConfig          `yaml:"http"`
	Proxy     ProxyConfig         `yaml:"proxy"`
	Audit     AuditConfig         `yaml:"audit"`
	Security  SecurityConfig      `yaml:"security"`
	Alerts    []alert.AlertConfig `yaml:"alerts"`
	Log       LogConfig           `yaml:"log"`
}

// Dir returns ~/.contentlock, falling back to the working directory.
func Dir() string {
	return store.DefaultDir()
}

// DefaultPath is where LoadWithHash looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Storage: StorageConfig{
			Backend:     store.KindFile,
			Path:        filepath.Join(dir, "state"),
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: store.DefaultRedisPrefix,
		},
		Scheduler: SchedulerConfig{TickInterval: time.Minute},
		GRPC:      GRPCConfig{Enabled: true, Port: 9743},
		HTTP:      HTTPConfig{Enabled: true, Addr: "127.0.0.1:9744"},
		Proxy:     ProxyConfig{Enabled: false, Port: 9745},
		Audit:     AuditConfig{Path: filepath.Join(dir, "audit.jsonl")},
		Security:  SecurityConfig{MaxFailedAttempts: 5, LockoutWindow: 15 * time.Minute},
		Log:       LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads the configuration at path. See LoadWithHash.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads the configuration and returns the SHA-256 of the raw
// YAML bytes. Empty path falls back to DefaultPath. A missing file yields
// the defaults and the hash of empty input. Environment overrides are
// applied last and are not part of the hash.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
		data = nil
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case store.KindFile, store.KindSQLite, store.KindRedis, store.KindMemory:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != store.KindMemory && c.Storage.Backend != store.KindRedis && c.Storage.Path == "" {
		return fmt.Errorf("storage.path: required for %s backend", c.Storage.Backend)
	}
	if c.Scheduler.TickInterval < time.Second {
		return fmt.Errorf("scheduler.tick_interval: must be at least 1s, got %s", c.Scheduler.TickInterval)
	}
	if c.Security.MaxFailedAttempts < 0 || c.Security.LockoutWindow < 0 {
		return fmt.Errorf("security: max_failed_attempts and lockout_window must not be negative")
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			return fmt.Errorf("alerts[%d].url: required", i)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays CONTENTLOCK_* variables on cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("REDIS_ADDR", &cfg.Storage.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Storage.RedisPassword)
	str("REDIS_PREFIX", &cfg.Storage.RedisPrefix)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	str("AUDIT_PATH", &cfg.Audit.Path)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_LEVEL", &cfg.Log.Level)

	if err := num("REDIS_DB", &cfg.Storage.RedisDB); err != nil {
		return err
	}
	if err := num("GRPC_PORT", &cfg.GRPC.Port); err != nil {
		return err
	}
	if err := num("PROXY_PORT", &cfg.Proxy.Port); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "TICK_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTICK_INTERVAL: %w", EnvPrefix, err)
		}
		cfg.Scheduler.TickInterval = d
	}
	return nil
}

// DefaultConfigYAML returns a commented config.yaml with the defaults.
func DefaultConfigYAML() string {
	return `# contentlock daemon configuration
# Every key is optional; omitted keys keep their defaults.
# Environment variables CONTENTLOCK_<SECTION>_<KEY> override this file.

storage:
  # file: one JSON file per key under path (a directory)
  # sqlite: single database file at path
  # redis: redis_addr / redis_db / redis_prefix
  # memory: nothing persists across restarts
  backend: file
  # path: ~/.contentlock/state
  redis_addr: 127.0.0.1:6379
  redis_prefix: "contentlock:"

scheduler:
  # How often an active self-lock is re-checked for expiry and clock rollback.
  tick_interval: 1m

grpc:
  enabled: true
  port: 9743

http:
  enabled: true
  addr: 127.0.0.1:9744

proxy:
  # Forward proxy that rewrites search and video requests to safe variants.
  enabled: false
  port: 9745

audit:
  # Hash-chained JSONL log of blocks and lock transitions. Empty disables it.
  # path: ~/.contentlock/audit.jsonl

security:
  # Failed PIN, passphrase or recovery code checks allowed per window
  # before further checks of that kind are refused. 0 disables.
  max_failed_attempts: 5
  lockout_window: 15m

# Webhook alerts. events: block, self_lock_activated, unlock_requested,
# unlock_confirmed, self_lock_expired, tamper_extended, lock_incremented, "*"
alerts: []
#  - url: https://hooks.slack.com/services/...
#    format: slack
#    events: [unlock_confirmed, tamper_extended]

log:
  format: text   # text | json
  level: info    # debug | info | warn | error
`
}
