package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.SnapshotInterval() != 10*time.Minute {
		t.Errorf("SnapshotInterval = %v, want 10m", cfg.SnapshotInterval())
	}
	if cfg.CompactionInterval() != time.Hour {
		t.Errorf("CompactionInterval = %v, want 1h", cfg.CompactionInterval())
	}
	if cfg.RawRetentionDays != 7 || cfg.HourlyRetentionDays != 30 || cfg.DailyRetentionDays != 180 || cfg.WeeklyRetentionYears != 2 {
		t.Errorf("Unexpected default retention: %+v", cfg)
	}
	if !cfg.OnlineOnly {
		t.Error("OnlineOnly should default to true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SKILLTREND_ADDR", ":9090")
	t.Setenv("SKILLTREND_RAW_RETENTION_DAYS", "14")
	t.Setenv("SKILLTREND_HOURLY_RETENTION_DAYS", "60")
	t.Setenv("SKILLTREND_SNAPSHOT_INTERVAL_MINUTES", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.RawRetentionDays != 14 {
		t.Errorf("RawRetentionDays = %d, want 14", cfg.RawRetentionDays)
	}
	if cfg.SnapshotInterval() != 5*time.Minute {
		t.Errorf("SnapshotInterval = %v, want 5m", cfg.SnapshotInterval())
	}
	// Untouched keys keep their defaults
	if cfg.DailyRetentionDays != 180 {
		t.Errorf("DailyRetentionDays = %d, want default 180", cfg.DailyRetentionDays)
	}
}

func TestLoad_YAMLFileWithEnvOnTop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "addr: \":7070\"\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("SKILLTREND_CONFIG", path)
	t.Setenv("SKILLTREND_ADDR", ":6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Env wins over file, file wins over defaults
	if cfg.Addr != ":6060" {
		t.Errorf("Addr = %q, want env override :6060", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want file value debug", cfg.LogLevel)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("SKILLTREND_CONFIG", "/nonexistent/config.yaml")

	if _, err := Load(); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty addr", func(c *Config) { c.Addr = "" }, false},
		{"zero snapshot interval", func(c *Config) { c.SnapshotIntervalMinutes = 0 }, false},
		{"zero compaction interval", func(c *Config) { c.CompactionIntervalMinutes = 0 }, false},
		{"zero retention", func(c *Config) { c.RawRetentionDays = 0 }, false},
		{"raw equals hourly", func(c *Config) { c.RawRetentionDays = 30 }, false},
		{"raw exceeds hourly", func(c *Config) { c.RawRetentionDays = 45 }, false},
		{"hourly exceeds daily", func(c *Config) { c.HourlyRetentionDays = 200 }, false},
		{"custom increasing tiers", func(c *Config) {
			c.RawRetentionDays = 3
			c.HourlyRetentionDays = 14
			c.DailyRetentionDays = 90
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.valid && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
