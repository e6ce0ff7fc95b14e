package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/marcin-skalski/workflow-monitor/internal/logging"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

const (
	envListen          = "WORKFLOW_MONITOR_LISTEN"
	envDefaultRepo     = "WORKFLOW_MONITOR_DEFAULT_REPO"
	envCacheTTLMs      = "WORKFLOW_MONITOR_CACHE_TTL_MS"
	envCacheMaxEntries = "WORKFLOW_MONITOR_CACHE_MAX_ENTRIES"
)

type Config struct {
	Listen        string `yaml:"listen" toml:"listen"`
	DefaultRepo   string `yaml:"default_repo" toml:"default_repo"`
	ResultSchema  string `yaml:"result_schema" toml:"result_schema"`
	UIResourceURI string `yaml:"ui_resource_uri" toml:"ui_resource_uri"`
	LogFile       string `yaml:"log_file" toml:"log_file"`

	PollInterval time.Duration `yaml:"-" toml:"-"`
	RawInterval  string        `yaml:"poll_interval" toml:"poll_interval"`

	GitHub  GitHubConfig  `yaml:"github" toml:"github"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Backoff BackoffConfig `yaml:"rate_limit_backoff" toml:"rate_limit_backoff"`
	Watch   []WatchConfig `yaml:"watch" toml:"watch"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	TUI     TUIConfig     `yaml:"tui" toml:"tui"`

	// Token is read from the environment variable named by GitHub.TokenEnv.
	// It is never loaded from the config file and never logged.
	Token string `yaml:"-" toml:"-"`
}

type GitHubConfig struct {
	TokenEnv   string        `yaml:"token_env" toml:"token_env"`
	Endpoint   string        `yaml:"endpoint" toml:"endpoint"`
	Timeout    time.Duration `yaml:"-" toml:"-"`
	RawTimeout string        `yaml:"timeout" toml:"timeout"`
}

type CacheConfig struct {
	TTL    time.Duration `yaml:"-" toml:"-"`
	RawTTL string        `yaml:"ttl" toml:"ttl"`
	// TTLMs wins over RawTTL when set.
	TTLMs          int  `yaml:"ttl_ms" toml:"ttl_ms"`
	MaxEntries     int  `yaml:"max_entries" toml:"max_entries"`
	DedupeInflight bool `yaml:"dedupe_inflight" toml:"dedupe_inflight"`
}

type BackoffConfig struct {
	Initial    time.Duration `yaml:"-" toml:"-"`
	RawInitial string        `yaml:"initial" toml:"initial"`
	Max        time.Duration `yaml:"-" toml:"-"`
	RawMax     string        `yaml:"max" toml:"max"`
}

type WatchConfig struct {
	Repo string `yaml:"repo" toml:"repo"`
	PR   int    `yaml:"pr" toml:"pr"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-" toml:"-"`
	RawInterval     string        `yaml:"refresh_interval" toml:"refresh_interval"`
}

// Load reads path (YAML, or TOML for a .toml extension), applies environment
// overrides and defaults, and validates. An empty path means defaults and
// environment only. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := unmarshal(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Token = strings.TrimSpace(os.Getenv(cfg.GitHub.TokenEnv))
	return &cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(envDefaultRepo); v != "" {
		c.DefaultRepo = v
	}
	if v := os.Getenv(envCacheTTLMs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", envCacheTTLMs, v, err)
		}
		c.Cache.TTLMs = n
	}
	if v := os.Getenv(envCacheMaxEntries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", envCacheMaxEntries, v, err)
		}
		c.Cache.MaxEntries = n
	}
	return nil
}

func (c *Config) setDefaults() error {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3001"
	}
	if c.ResultSchema == "" {
		c.ResultSchema = "v2"
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(os.TempDir(), "workflow-monitor", "workflow-monitor.log")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.DefaultRepo = strings.TrimSpace(c.DefaultRepo)

	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
	if c.GitHub.Endpoint == "" {
		c.GitHub.Endpoint = "https://api.github.com/graphql"
	}

	var err error
	if c.RawInterval, c.PollInterval, err = duration("poll_interval", c.RawInterval, "60s"); err != nil {
		return err
	}
	if c.GitHub.RawTimeout, c.GitHub.Timeout, err = duration("github.timeout", c.GitHub.RawTimeout, "30s"); err != nil {
		return err
	}
	if c.Backoff.RawInitial, c.Backoff.Initial, err = duration("rate_limit_backoff.initial", c.Backoff.RawInitial, "5s"); err != nil {
		return err
	}
	if c.Backoff.RawMax, c.Backoff.Max, err = duration("rate_limit_backoff.max", c.Backoff.RawMax, "5m"); err != nil {
		return err
	}
	if c.TUI.RawInterval, c.TUI.RefreshInterval, err = duration("tui.refresh_interval", c.TUI.RawInterval, "3s"); err != nil {
		return err
	}

	if c.Cache.TTLMs > 0 {
		c.Cache.TTL = time.Duration(c.Cache.TTLMs) * time.Millisecond
	} else if c.Cache.RawTTL, c.Cache.TTL, err = duration("cache.ttl", c.Cache.RawTTL, "30s"); err != nil {
		return err
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}

	for i := range c.Watch {
		c.Watch[i].Repo = strings.TrimSpace(c.Watch[i].Repo)
	}

	return nil
}

func duration(name, raw, def string) (string, time.Duration, error) {
	if raw == "" {
		raw = def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return raw, 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	if d <= 0 {
		return raw, 0, fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return raw, d, nil
}

func (c *Config) validate() error {
	if c.DefaultRepo != "" {
		if _, _, err := snapshot.SplitRepo(c.DefaultRepo); err != nil {
			return fmt.Errorf("default_repo: %w", err)
		}
	}
	switch c.ResultSchema {
	case "v1", "v2":
	default:
		return fmt.Errorf("invalid result_schema %q (v1|v2)", c.ResultSchema)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLMs < 0 {
		return fmt.Errorf("cache.ttl_ms must be positive, got %d", c.Cache.TTLMs)
	}
	if c.Backoff.Max < c.Backoff.Initial {
		return fmt.Errorf("rate_limit_backoff.max (%s) must not be below initial (%s)", c.Backoff.Max, c.Backoff.Initial)
	}
	for i, w := range c.Watch {
		if _, _, err := snapshot.SplitRepo(w.Repo); err != nil {
			return fmt.Errorf("watch[%d]: %w", i, err)
		}
		if w.PR < 0 {
			return fmt.Errorf("watch[%d]: pr must be positive, got %d", i, w.PR)
		}
	}
	return nil
}
