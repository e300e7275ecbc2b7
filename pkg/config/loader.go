package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds everything the daemon reads at startup. Interval and
// retention fields are plain integers so they layer cleanly through yaml
// and env; the duration accessors convert.
type Config struct {
	// LogMode selects zap output: "dev" or "prod".
	LogMode string `koanf:"log_mode"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir is where BadgerDB keeps its files.
	DataDir string `koanf:"data_dir"`

	// MaxMemoryMB bounds BadgerDB memory usage.
	MaxMemoryMB int64 `koanf:"max_memory_mb"`

	// SnapshotIntervalMinutes is the raw capture cadence.
	SnapshotIntervalMinutes int `koanf:"snapshot_interval_minutes"`

	// CompactionIntervalMinutes is the pipeline cadence; expected to exceed
	// worst-case run time, though single-flight is enforced regardless.
	CompactionIntervalMinutes int `koanf:"compaction_interval_minutes"`

	// Per-tier retention. Raw rows older than RawRetentionDays compact into
	// hourly summaries, and so on up the tiers.
	RawRetentionDays     int `koanf:"raw_retention_days"`
	HourlyRetentionDays  int `koanf:"hourly_retention_days"`
	DailyRetentionDays   int `koanf:"daily_retention_days"`
	WeeklyRetentionYears int `koanf:"weekly_retention_years"`

	// OnlineOnly restricts snapshot capture to currently online players.
	// The only supported mode; kept as a flag so turning it off is a config
	// change, not a code change.
	OnlineOnly bool `koanf:"online_only"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogMode:                   "dev",
		LogLevel:                  "info",
		Addr:                      DefaultAddr,
		DataDir:                   DefaultDataDir,
		MaxMemoryMB:               DefaultMaxMemoryMB,
		SnapshotIntervalMinutes:   10,
		CompactionIntervalMinutes: 60,
		RawRetentionDays:          7,
		HourlyRetentionDays:       30,
		DailyRetentionDays:        180,
		WeeklyRetentionYears:      2,
		OnlineOnly:                true,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SKILLTREND_CONFIG is set
//  3. env (prefix SKILLTREND_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("SKILLTREND_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// SKILLTREND_RAW_RETENTION_DAYS -> raw_retention_days; underscores are
	// preserved to match the koanf tags on the struct.
	envProvider := env.Provider("SKILLTREND_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "skilltrend_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run under.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.SnapshotIntervalMinutes < 1 {
		return fmt.Errorf("snapshot_interval_minutes must be >= 1")
	}
	if c.CompactionIntervalMinutes < 1 {
		return fmt.Errorf("compaction_interval_minutes must be >= 1")
	}
	if c.RawRetentionDays < 1 || c.HourlyRetentionDays < 1 || c.DailyRetentionDays < 1 || c.WeeklyRetentionYears < 1 {
		return fmt.Errorf("retention durations must be >= 1")
	}
	// Each tier must outlive the one below it or compaction would promote
	// rows into buckets it has already deleted.
	if c.RawRetentionDays >= c.HourlyRetentionDays || c.HourlyRetentionDays >= c.DailyRetentionDays {
		return fmt.Errorf("retention must be strictly increasing: raw (%dd) < hourly (%dd) < daily (%dd)",
			c.RawRetentionDays, c.HourlyRetentionDays, c.DailyRetentionDays)
	}
	return nil
}

// SnapshotInterval returns the raw capture cadence as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMinutes) * time.Minute
}

// CompactionInterval returns the pipeline cadence as a duration.
func (c *Config) CompactionInterval() time.Duration {
	return time.Duration(c.CompactionIntervalMinutes) * time.Minute
}
