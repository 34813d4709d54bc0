package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadWithHash(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != store.KindFile {
		t.Errorf("expected file backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Scheduler.TickInterval != time.Minute {
		t.Errorf("expected 1m tick, got %s", cfg.Scheduler.TickInterval)
	}
	// sha256 of empty input
	if hash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected hash for missing file: %s", hash)
	}
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite
  path: /tmp/contentlock.db
scheduler:
  tick_interval: 30s
alerts:
  - url: https://example.com/hook
    format: slack
    events: [block]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != store.KindSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Errorf("expected 30s tick, got %s", cfg.Scheduler.TickInterval)
	}
	if cfg.GRPC.Port != 9743 {
		t.Errorf("expected default grpc port, got %d", cfg.GRPC.Port)
	}
	if cfg.Storage.RedisPrefix != store.DefaultRedisPrefix {
		t.Errorf("expected default redis prefix, got %q", cfg.Storage.RedisPrefix)
	}
	if len(cfg.Alerts) != 1 || cfg.Alerts[0].Format != "slack" {
		t.Errorf("expected one slack alert, got %+v", cfg.Alerts)
	}
}

func TestHashTracksContent(t *testing.T) {
	_, h1, err := LoadWithHash(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadWithHash(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("expected different hashes for different content")
	}
	if !strings.HasPrefix(h1, "sha256:") || len(h1) != 71 {
		t.Errorf("unexpected hash format %s", h1)
	}
}

func TestInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "storage: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }, "storage.backend"},
		{"file without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"memory without path", func(c *Config) { c.Storage.Backend = store.KindMemory; c.Storage.Path = "" }, ""},
		{"tick too short", func(c *Config) { c.Scheduler.TickInterval = time.Millisecond }, "tick_interval"},
		{"negative lockout", func(c *Config) { c.Security.MaxFailedAttempts = -1 }, "security"},
		{"lockout disabled", func(c *Config) { c.Security = SecurityConfig{} }, ""},
		{"alert without url", func(c *Config) { c.Alerts = append(c.Alerts, alertWithoutURL()) }, "alerts[0].url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CONTENTLOCK_STORAGE_BACKEND": "redis",
		"CONTENTLOCK_REDIS_ADDR":      "redis:6380",
		"CONTENTLOCK_REDIS_DB":        "2",
		"CONTENTLOCK_GRPC_PORT":       "7000",
		"CONTENTLOCK_TICK_INTERVAL":   "15s",
		"CONTENTLOCK_LOG_LEVEL":       "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := applyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != store.KindRedis || cfg.Storage.RedisAddr != "redis:6380" || cfg.Storage.RedisDB != 2 {
		t.Errorf("unexpected storage section %+v", cfg.Storage)
	}
	if cfg.GRPC.Port != 7000 {
		t.Errorf("expected grpc port 7000, got %d", cfg.GRPC.Port)
	}
	if cfg.Scheduler.TickInterval != 15*time.Second {
		t.Errorf("expected 15s tick, got %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Log.Level)
	}
}

func TestEnvOverrideRejectsBadNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "CONTENTLOCK_GRPC_PORT" {
			return "not-a-port", true
		}
		return "", false
	}
	if err := applyEnv(DefaultConfig(), lookup); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("CONTENTLOCK_STORAGE_BACKEND", "memory")
	cfg, err := Load(writeConfig(t, "storage:\n  backend: sqlite\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != store.KindMemory {
		t.Errorf("expected env to win over file, got %s", cfg.Storage.Backend)
	}
}

func TestDefaultConfigYAMLParses(t *testing.T) {
	cfg, err := Load(writeConfig(t, DefaultConfigYAML()))
	if err != nil {
		t.Fatalf("default YAML does not load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Storage.Backend != def.Storage.Backend || cfg.Storage.Path != def.Storage.Path {
		t.Errorf("storage differs from defaults: %+v", cfg.Storage)
	}
	if cfg.Audit.Path != def.Audit.Path {
		t.Errorf("audit path differs from defaults: %q", cfg.Audit.Path)
	}
	if cfg.Scheduler.TickInterval != def.Scheduler.TickInterval {
		t.Errorf("tick differs from defaults: %s", cfg.Scheduler.TickInterval)
	}
	if cfg.HTTP.Addr != def.HTTP.Addr || cfg.Proxy.Enabled {
		t.Errorf("listeners differ from defaults: %+v %+v", cfg.HTTP, cfg.Proxy)
	}
	if cfg.Security != def.Security || !cfg.Security.AttemptLimit().Enabled() {
		t.Errorf("security differs from defaults: %+v", cfg.Security)
	}
}

func alertWithoutURL() alert.AlertConfig {
	return alert.AlertConfig{Events: []string{"block"}}
}
