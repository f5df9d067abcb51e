// Package config loads the TOML configuration shared by the command line
// tools.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lucasjlepore/fitcam/telemetry"
)

// Config holds decode, time and export settings.
type Config struct {
	HourOffset         int
	Relaxed            bool
	DefaultTimeOnError bool
	LogLevel           string
	Format             string
	Workers            int
	Overwrite          bool
	CopySource         bool
	Sensors            []telemetry.SensorKind
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Format:   "parquet",
		Workers:  4,
	}
}

type fileConfig struct {
	HourOffset         int      `toml:"hour_offset"`
	Relaxed            bool     `toml:"relaxed"`
	DefaultTimeOnError bool     `toml:"default_time_on_error"`
	LogLevel           string   `toml:"log_level"`
	Format             string   `toml:"format"`
	Workers            int      `toml:"workers"`
	Overwrite          bool     `toml:"overwrite"`
	CopySource         bool     `toml:"copy_source"`
	Sensors            []string `toml:"sensors"`
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("hour_offset") {
		cfg.HourOffset = raw.HourOffset
	}
	if meta.IsDefined("relaxed") {
		cfg.Relaxed = raw.Relaxed
	}
	if meta.IsDefined("default_time_on_error") {
		cfg.DefaultTimeOnError = raw.DefaultTimeOnError
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("format") {
		format := strings.ToLower(strings.TrimSpace(raw.Format))
		if format != "parquet" && format != "csv" {
			return Config{}, fmt.Errorf("parse format: unsupported %q (expected parquet|csv)", raw.Format)
		}
		cfg.Format = format
	}
	if meta.IsDefined("workers") {
		if raw.Workers < 1 {
			return Config{}, fmt.Errorf("parse workers: must be at least 1, got %d", raw.Workers)
		}
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("overwrite") {
		cfg.Overwrite = raw.Overwrite
	}
	if meta.IsDefined("copy_source") {
		cfg.CopySource = raw.CopySource
	}
	if meta.IsDefined("sensors") {
		cfg.Sensors = make([]telemetry.SensorKind, 0, len(raw.Sensors))
		for _, s := range raw.Sensors {
			k, err := telemetry.ParseSensorKind(strings.TrimSpace(s))
			if err != nil {
				return Config{}, fmt.Errorf("parse sensors: %w", err)
			}
			cfg.Sensors = append(cfg.Sensors, k)
		}
	}

	return cfg, nil
}
