package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colthorp/headlines-go/internal/core"
)

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if cfg.MaxAgeHours != 6 {
		t.Errorf("expected max_age_hours 6, got %v", cfg.MaxAgeHours)
	}
	if cfg.ForcedWaitDuration() != 2*time.Second || cfg.RefreshWaitDuration() != 3*time.Second {
		t.Errorf("unexpected waits: %v %v", cfg.ForcedWaitDuration(), cfg.RefreshWaitDuration())
	}
	if cfg.RefreshTimeout() != 30*time.Second {
		t.Errorf("expected 30s refresh timeout, got %v", cfg.RefreshTimeout())
	}
	if len(cfg.NegativeKeywords) != 10 {
		t.Errorf("expected 10 negative keywords, got %d", len(cfg.NegativeKeywords))
	}
	if err := validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Refresh.Mode != RefreshCommand {
		t.Errorf("expected default refresh mode, got %q", cfg.Refresh.Mode)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to %s: %v", path, err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "data_dir: /srv/news\nmax_age_hours: 1.5\napi:\n  query: solar\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SnapshotDir() != "/srv/news" {
		t.Errorf("SnapshotDir = %s", cfg.SnapshotDir())
	}
	if cfg.MaxAgeHours != 1.5 {
		t.Errorf("MaxAgeHours = %v", cfg.MaxAgeHours)
	}
	if cfg.API.Query != "solar" || cfg.API.Language != "en" {
		t.Errorf("API = %+v; expected query overridden and language kept", cfg.API)
	}
}

func TestLoadZeroMaxPagesUsesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  max_pages: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.MaxPages != core.DefaultMaxPages {
		t.Errorf("MaxPages = %d, want %d", cfg.API.MaxPages, core.DefaultMaxPages)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/from-env")
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvRefreshMode, RefreshInProcess)
	t.Setenv(EnvMaxAge, "12")
	t.Setenv("NEWS_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/tmp/from-env" || cfg.ListenAddr != ":9999" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Refresh.Mode != RefreshInProcess || cfg.MaxAgeHours != 12 {
		t.Errorf("env not applied: mode=%s max=%v", cfg.Refresh.Mode, cfg.MaxAgeHours)
	}
	if cfg.APIKey() != "env-key" {
		t.Errorf("APIKey = %q", cfg.APIKey())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad refresh mode", func(c *Config) { c.Refresh.Mode = "cron" }, "refresh.mode"},
		{"script without command", func(c *Config) { c.Analyze.Mode = AnalyzeScript }, "analyze.script"},
		{"bad duration", func(c *Config) { c.ForcedWait = "soon" }, "forced_wait"},
		{"bad base url", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"source without url", func(c *Config) { c.Sources = []Source{{Name: "x", Type: "rss"}} }, "url is required"},
		{"source bad type", func(c *Config) {
			c.Sources = []Source{{Name: "x", Type: "json", URL: "https://example.com"}}
		}, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := Defaults()
			tt.mutate(cfg)
			err := validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnabledSources(t *testing.T) {
	cfg := &Config{
		Sources: []Source{
			{Name: "A", Enabled: true},
			{Name: "B", Enabled: false},
			{Name: "C", Enabled: true},
		},
	}
	enabled := cfg.EnabledSources()
	if len(enabled) != 2 || enabled[0].Name != "A" || enabled[1].Name != "C" {
		t.Errorf("unexpected enabled sources: %v", enabled)
	}
}

func TestRetentionDuration(t *testing.T) {
	tests := []struct {
		input    string
		wantDays int
	}{
		{"90d", 90},
		{"720h", 30},
		{"", 30},
		{"invalid", 30},
	}
	for _, tt := range tests {
		cfg := &Config{History: HistoryConfig{Retention: tt.input}}
		if got := cfg.RetentionDuration(); got.Hours() != float64(tt.wantDays*24) {
			t.Errorf("RetentionDuration(%q) = %v, want %dd", tt.input, got, tt.wantDays)
		}
	}
}
