package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" or "500ms"
// parse with time.ParseDuration. Bare integers are taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Config holds everything the daemon needs: where state lives, how
// often the countdown and rollover checks run, which zone defines a
// calendar day, and the optional remote sync target.
type Config struct {
	// TimeZone is an IANA zone name. Empty means the process-local zone,
	// resolved once at startup so a day boundary is deterministic for
	// the lifetime of the process.
	TimeZone string `yaml:"time_zone"`

	TickInterval     Duration `yaml:"tick_interval"`
	RolloverInterval Duration `yaml:"rollover_interval"`

	DBPath       string `yaml:"db_path"`
	SnapshotPath string `yaml:"snapshot_path"`
	HTTPAddr     string `yaml:"http_addr"`

	Sync SyncConfig `yaml:"sync"`
}

type SyncConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`

	// DebounceWindow is how long frequent updates to the same task are
	// coalesced before being pushed remotely.
	DebounceWindow Duration `yaml:"debounce_window"`
}

func Default() *Config {
	return &Config{
		TickInterval:     Duration(time.Second),
		RolloverInterval: Duration(time.Minute),
		DBPath:           ".tempo/tempo.db",
		SnapshotPath:     ".tempo/snapshot.jsonl",
		HTTPAddr:         ":8000",
		Sync: SyncConfig{
			DebounceWindow: Duration(5 * time.Second),
		},
	}
}

// Load reads a YAML config file, applying defaults for anything left
// unset. A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = Duration(time.Second)
	}
	if cfg.RolloverInterval <= 0 {
		cfg.RolloverInterval = Duration(time.Minute)
	}
	if cfg.Sync.DebounceWindow <= 0 {
		cfg.Sync.DebounceWindow = Duration(5 * time.Second)
	}

	return cfg, nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
