// Package config loads the daemon's optional TOML settings file.
// Thresholds, the current table and sysfs paths are fixed and not configurable.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where the daemon looks for its settings file.
const DefaultPath = "/etc/charge-limiter/config.toml"

// Health sources.
const (
	HealthSysfs  = "sysfs"
	HealthUPower = "upower"
)

// Config holds all daemon settings.
type Config struct {
	Status    StatusConfig    `toml:"status"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Health    HealthConfig    `toml:"health"`
	Indicator IndicatorConfig `toml:"indicator"`
	Log       LogConfig       `toml:"log"`
}

// StatusConfig controls the HTTP status server.
type StatusConfig struct {
	HTTP string `toml:"http"`
}

// MQTTConfig controls telemetry publishing. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string   `toml:"broker"`
	ClientID  string   `toml:"client_id"`
	Heartbeat Duration `toml:"heartbeat"`
}

// HealthConfig selects where battery status notifications come from.
type HealthConfig struct {
	Source string   `toml:"source"`
	Poll   Duration `toml:"poll"`
}

// IndicatorConfig controls the optional throttled LED. Line -1 disables it.
type IndicatorConfig struct {
	Chip string `toml:"chip"`
	Line int    `toml:"line"`
}

// LogConfig controls logging behaviour.
type LogConfig struct {
	Verbose bool `toml:"verbose"`
}

// Duration is a time.Duration decoded from a TOML string such as "15m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Status: StatusConfig{HTTP: ":8080"},
		MQTT: MQTTConfig{
			Broker:    "tcp://127.0.0.1:1883",
			ClientID:  "charge-limiter",
			Heartbeat: Duration{15 * time.Minute},
		},
		Health: HealthConfig{
			Source: HealthSysfs,
			Poll:   Duration{time.Second},
		},
		Indicator: IndicatorConfig{
			Chip: "gpiochip0",
			Line: -1,
		},
	}
}

// Load reads the settings file at path on top of Default.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Health.Source {
	case HealthSysfs, HealthUPower:
	default:
		return fmt.Errorf("health.source %q: want %q or %q", c.Health.Source, HealthSysfs, HealthUPower)
	}
	if c.Health.Poll.Duration <= 0 {
		return fmt.Errorf("health.poll must be positive, got %v", c.Health.Poll.Duration)
	}
	if c.MQTT.Heartbeat.Duration < 0 {
		return fmt.Errorf("mqtt.heartbeat must not be negative, got %v", c.MQTT.Heartbeat.Duration)
	}
	return nil
}
