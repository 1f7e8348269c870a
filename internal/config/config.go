// Package config loads headlines settings from YAML with environment overrides.
package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/colthorp/headlines-go/internal/core"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Environment overrides.
const (
	EnvDataDir     = "HEADLINES_DATA_DIR"
	EnvAddr        = "HEADLINES_ADDR"
	EnvRefreshMode = "HEADLINES_REFRESH_MODE"
	EnvMaxAge      = "HEADLINES_MAX_AGE_HOURS"
)

// Refresh modes.
const (
	RefreshCommand   = "command"
	RefreshInProcess = "inprocess"
)

// Analyze modes.
const (
	AnalyzeBuiltin = "builtin"
	AnalyzeScript  = "script"
)

type Source struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type RefreshConfig struct {
	Mode    string   `yaml:"mode"`
	Command []string `yaml:"command"`
	Workdir string   `yaml:"workdir"`
	Timeout string   `yaml:"timeout"`
}

type APIConfig struct {
	Key      string `yaml:"key"`
	BaseURL  string `yaml:"base_url"`
	Query    string `yaml:"query"`
	Language string `yaml:"language"`
	Category string `yaml:"category"`
	MaxPages int    `yaml:"max_pages"`
}

type AnalyzeConfig struct {
	Mode             string   `yaml:"mode"`
	Script           []string `yaml:"script"`
	SummarySentences int      `yaml:"summary_sentences"`
}

type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

type Config struct {
	DataDir          string        `yaml:"data_dir"`
	ListenAddr       string        `yaml:"listen_addr"`
	Timezone         string        `yaml:"timezone"`
	MaxAgeHours      float64       `yaml:"max_age_hours"`
	ForcedWait       string        `yaml:"forced_wait"`
	RefreshWait      string        `yaml:"refresh_wait"`
	Refresh          RefreshConfig `yaml:"refresh"`
	API              APIConfig     `yaml:"api"`
	NegativeKeywords []string      `yaml:"negative_keywords"`
	Sources          []Source      `yaml:"sources"`
	Analyze          AnalyzeConfig `yaml:"analyze"`
	History          HistoryConfig `yaml:"history"`
}

// SnapshotDir returns the configured data directory or the XDG default.
func (c *Config) SnapshotDir() string {
	if c.DataDir != "" {
		return expandHome(c.DataDir)
	}
	return filepath.Join(xdg.DataHome, "headlines", "data")
}

// HistoryPath returns the journal database path or the XDG default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	return filepath.Join(xdg.StateHome, "headlines", "history.db")
}

// APIKey returns the configured key, falling back to NEWS_API_KEY.
func (c *Config) APIKey() string {
	if c.API.Key != "" {
		return c.API.Key
	}
	return core.GetAPIKey()
}

// Location returns the timezone used for "today".
func (c *Config) Location() *time.Location {
	return core.GetTZ(c.Timezone)
}

func (c *Config) ForcedWaitDuration() time.Duration {
	return durationOr(c.ForcedWait, core.ForcedRefreshWait)
}

func (c *Config) RefreshWaitDuration() time.Duration {
	return durationOr(c.RefreshWait, core.RefreshWait)
}

func (c *Config) RefreshTimeout() time.Duration {
	return durationOr(c.Refresh.Timeout, core.RefreshTimeout)
}

func (c *Config) RetentionDuration() time.Duration {
	return durationOr(c.History.Retention, 30*24*time.Hour)
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := core.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func expandHome(p string) string {
	if len(p) > 1 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "headlines", "config.yaml")
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads path (or the default path) over the embedded defaults, applies
// environment overrides and validates the result. A missing file is created
// from the defaults on first run.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Non-fatal: just use embedded defaults
		_ = writeDefaults(path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.API.MaxPages == 0 {
		cfg.API.MaxPages = core.DefaultMaxPages
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvRefreshMode); v != "" {
		cfg.Refresh.Mode = v
	}
	if v := os.Getenv(EnvMaxAge); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvMaxAge, v)
		}
		cfg.MaxAgeHours = hours
	}
	if v := os.Getenv(core.APIKeyEnvVar); v != "" && cfg.API.Key == "" {
		cfg.API.Key = v
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Refresh.Mode {
	case RefreshCommand, RefreshInProcess:
	default:
		return fmt.Errorf("refresh.mode: unknown mode %q (valid: command, inprocess)", cfg.Refresh.Mode)
	}
	switch cfg.Analyze.Mode {
	case AnalyzeBuiltin:
	case AnalyzeScript:
		if len(cfg.Analyze.Script) == 0 {
			return fmt.Errorf("analyze.script is required when analyze.mode is script")
		}
	default:
		return fmt.Errorf("analyze.mode: unknown mode %q (valid: builtin, script)", cfg.Analyze.Mode)
	}

	for name, d := range map[string]string{
		"forced_wait":       cfg.ForcedWait,
		"refresh_wait":      cfg.RefreshWait,
		"refresh.timeout":   cfg.Refresh.Timeout,
		"history.retention": cfg.History.Retention,
	} {
		if d == "" {
			continue
		}
		if v, err := core.ParseDuration(d); err != nil || v < 0 {
			return fmt.Errorf("%s: invalid duration %q", name, d)
		}
	}

	if cfg.API.MaxPages < 0 {
		return fmt.Errorf("api.max_pages must not be negative")
	}
	if cfg.API.BaseURL != "" {
		u, err := url.Parse(cfg.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("api.base_url: must be an http or https URL, got %q", cfg.API.BaseURL)
		}
	}

	validTypes := map[string]bool{"rss": true, "atom": true}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: rss, atom)", s.Name, s.Type)
		}
	}
	return nil
}
