package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultUpstreamURL     = "http://localhost:3001/api"
	defaultWorkspaceDir    = "/root/.openclaw/workspace"
	defaultTimezone        = "UTC"
	defaultRefreshCron     = "*/1 * * * *"
	defaultUpstreamTimeout = 15
	defaultCacheTTL        = 30
	defaultLogLevel        = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard API.
	Listen string `yaml:"listen" json:"listen"`

	// UpstreamURL is the base URL of the agent API, e.g.
	// "http://localhost:3001/api". Endpoint paths (/activity, /cron, ...)
	// are appended to it.
	UpstreamURL string `yaml:"upstream_url" json:"upstream_url"`

	// WorkspaceDir is the agent workspace; projects.json is read from here.
	WorkspaceDir string `yaml:"workspace_dir" json:"workspace_dir"`

	// Timezone is the IANA timezone used for calendar expansion and
	// human-readable labels (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/1 * * * *")
	// used to warm the activity cache in the background.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// UpstreamTimeoutSeconds bounds every request to the agent API.
	UpstreamTimeoutSeconds int `yaml:"upstream_timeout_seconds" json:"upstream_timeout_seconds"`

	// CacheTTLSeconds is how long API responses are served from memory.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		UpstreamURL:            defaultUpstreamURL,
		WorkspaceDir:           defaultWorkspaceDir,
		Timezone:               defaultTimezone,
		RefreshCron:            defaultRefreshCron,
		UpstreamTimeoutSeconds: defaultUpstreamTimeout,
		CacheTTLSeconds:        defaultCacheTTL,
		LogLevel:               defaultLogLevel,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.UpstreamURL = strings.TrimRight(c.UpstreamURL, "/")
	if c.UpstreamURL == "" {
		c.UpstreamURL = defaultUpstreamURL
	}
	if c.WorkspaceDir == "" {
		c.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		c.UpstreamTimeoutSeconds = defaultUpstreamTimeout
	}
	// A zero TTL is allowed and disables caching; only negatives are reset.
	if c.CacheTTLSeconds < 0 {
		c.CacheTTLSeconds = defaultCacheTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// ApplyEnv overrides file values with environment variables. The names
// match the ones the agent tooling already exports.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPENCLAW_API_URL"); v != "" {
		c.UpstreamURL = v
	}
	if v := os.Getenv("OPENCLAW_WORKSPACE"); v != "" {
		c.WorkspaceDir = v
	}
	if v := os.Getenv("CLAWDASH_TZ"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}

// UpstreamTimeout returns the upstream request timeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// CacheTTL returns the response cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".clawdash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
