package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.ProxyPort() != 5100 {
		t.Errorf("ProxyPort() = %d, want 5100", cfg.ProxyPort())
	}
	if cfg.ControlPort() != 5101 {
		t.Errorf("ControlPort() = %d, want 5101", cfg.ControlPort())
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
proxy_listen = "0.0.0.0:8100"
upstream_url = "https://api.example.com"
max_attempts = 5
attempt_timeout = "30s"
audit_log = "/tmp/audit.jsonl"
keys_command = "cat /run/keys"
`)

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ProxyListen != "0.0.0.0:8100" {
		t.Errorf("ProxyListen = %q", cfg.ProxyListen)
	}
	if cfg.UpstreamURL != "https://api.example.com" {
		t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.AttemptTimeout != 30*time.Second {
		t.Errorf("AttemptTimeout = %v, want 30s", cfg.AttemptTimeout)
	}
	if cfg.KeysCommand != "cat /run/keys" {
		t.Errorf("KeysCommand = %q", cfg.KeysCommand)
	}
	// Unset keys keep defaults
	if cfg.ControlListen != DefaultControlListen {
		t.Errorf("ControlListen = %q, want default", cfg.ControlListen)
	}
	if cfg.CacheFile != DefaultCacheFile {
		t.Errorf("CacheFile = %q, want default", cfg.CacheFile)
	}
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(missing, false)
	if err != nil {
		t.Fatalf("Load(optional) error: %v", err)
	}
	if cfg.UpstreamURL != DefaultUpstreamURL {
		t.Errorf("UpstreamURL = %q, want default", cfg.UpstreamURL)
	}

	if _, err := Load(missing, true); err == nil {
		t.Error("Load(required) should fail for a missing file")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `upstream = "https://typo.example.com"`)

	_, err := Load(path, true)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "upstream") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `max_attempts = 0`)

	if _, err := Load(path, true); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"http upstream", func(c *Config) { c.UpstreamURL = "http://localhost:9000" }, false},
		{"ftp upstream", func(c *Config) { c.UpstreamURL = "ftp://example.com" }, true},
		{"no host", func(c *Config) { c.UpstreamURL = "https://" }, true},
		{"empty proxy listen", func(c *Config) { c.ProxyListen = "" }, true},
		{"empty control listen", func(c *Config) { c.ControlListen = "" }, true},
		{"absolute cache file", func(c *Config) { c.CacheFile = "/etc/passwd" }, true},
		{"empty state dir", func(c *Config) { c.StateDir = "" }, true},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"zero threshold", func(c *Config) { c.FailureThreshold = 0 }, true},
		{"negative timeout", func(c *Config) { c.AttemptTimeout = -time.Second }, true},
		{"zero monitor interval", func(c *Config) { c.MonitorInterval = 0 }, true},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestControlURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"127.0.0.1:5101", "http://127.0.0.1:5101"},
		{":5101", "http://127.0.0.1:5101"},
		{"0.0.0.0:6000", "http://127.0.0.1:6000"},
		{"[::]:6000", "http://127.0.0.1:6000"},
		{"garbage", "http://" + DefaultControlListen},
	}

	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			cfg := Default()
			cfg.ControlListen = tt.listen
			if got := cfg.ControlURL(); got != tt.want {
				t.Errorf("ControlURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
