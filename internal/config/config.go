package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath       = "/etc/keypool/config.toml"
	DefaultStateDir         = "/var/lib/keypool"
	DefaultCacheFile        = ".keys-cache.json"
	DefaultProxyListen      = "127.0.0.1:5100"
	DefaultControlListen    = "127.0.0.1:5101"
	DefaultUpstreamURL      = "https://api.daidaibird.top"
	DefaultMaxAttempts      = 3
	DefaultFailureThreshold = 3
	DefaultMaxBodyBytes     = 50 << 20
	DefaultMonitorInterval  = time.Minute
)

// Config is the daemon configuration, read from a TOML file.
type Config struct {
	// ProxyListen is the address of the API proxy surface.
	ProxyListen string `toml:"proxy_listen"`

	// ControlListen is the address of the management surface.
	ControlListen string `toml:"control_listen"`

	// UpstreamURL is the base URL requests are forwarded to. The inbound
	// path (e.g. /v1/chat/completions) is appended verbatim.
	UpstreamURL string `toml:"upstream_url"`

	// StateDir holds the credential cache.
	StateDir string `toml:"state_dir"`

	// CacheFile is the cache file name, relative to StateDir.
	CacheFile string `toml:"cache_file"`

	// MaxAttempts caps upstream attempts per request (further capped by pool size).
	MaxAttempts int `toml:"max_attempts"`

	// FailureThreshold is the consecutive failure count that quarantines a key.
	FailureThreshold int `toml:"failure_threshold"`

	// AttemptTimeout bounds the wait for upstream response headers (0 = none).
	AttemptTimeout time.Duration `toml:"attempt_timeout"`

	// MaxBodyBytes limits inbound request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes"`

	// MonitorInterval is how often pool health is checked and logged.
	MonitorInterval time.Duration `toml:"monitor_interval"`

	// AuditLog is the JSONL audit log path (empty = disabled).
	AuditLog string `toml:"audit_log"`

	// LogFile additionally receives daemon logs (empty = stderr only).
	LogFile string `toml:"log_file"`

	// KeysCommand is a credential helper run at startup when the cache is empty.
	KeysCommand string `toml:"keys_command"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ProxyListen:      DefaultProxyListen,
		ControlListen:    DefaultControlListen,
		UpstreamURL:      DefaultUpstreamURL,
		StateDir:         DefaultStateDir,
		CacheFile:        DefaultCacheFile,
		MaxAttempts:      DefaultMaxAttempts,
		FailureThreshold: DefaultFailureThreshold,
		MaxBodyBytes:     DefaultMaxBodyBytes,
		MonitorInterval:  DefaultMonitorInterval,
	}
}

// Load reads the configuration at path on top of the defaults.
// A missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.ProxyListen == "" {
		return fmt.Errorf("proxy_listen is required")
	}
	if c.ControlListen == "" {
		return fmt.Errorf("control_listen is required")
	}

	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream_url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("upstream_url must use http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream_url must include a host")
	}

	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.CacheFile == "" || filepath.IsAbs(c.CacheFile) {
		return fmt.Errorf("cache_file must be a relative file name (got %q)", c.CacheFile)
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1 (got %d)", c.MaxAttempts)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1 (got %d)", c.FailureThreshold)
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("attempt_timeout must not be negative")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be positive")
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	return nil
}

// ProxyPort returns the numeric port of ProxyListen, or 0 if unparseable.
func (c *Config) ProxyPort() int {
	return listenPort(c.ProxyListen)
}

// ControlPort returns the numeric port of ControlListen, or 0 if unparseable.
func (c *Config) ControlPort() int {
	return listenPort(c.ControlListen)
}

func listenPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// ControlURL returns the base URL clients use to reach the control surface.
// Wildcard listen hosts are mapped to loopback.
func (c *Config) ControlURL() string {
	host, port, err := net.SplitHostPort(c.ControlListen)
	if err != nil {
		return "http://" + DefaultControlListen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
