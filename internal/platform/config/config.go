// Package config loads tracker settings from defaults, an optional geoattend.yaml
// and GEOATTEND_* environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderStatic = "static"
	ProviderPlugin = "plugin"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	UserID   string `mapstructure:"user_id"`
	Device   string `mapstructure:"device"`
	Network  string `mapstructure:"network"`
	Timezone string `mapstructure:"timezone"`
	// TickInterval is the position sampling period; 10s-60s is the useful range.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	Position PositionConfig `mapstructure:"position"`
	Store    StoreConfig    `mapstructure:"store"`

	OfficesFile string `mapstructure:"offices_file"`
	NotesDir    string `mapstructure:"notes_dir"`
	// MetricsAddr enables the Prometheus endpoint when non-empty (e.g. 127.0.0.1:9464).
	MetricsAddr string `mapstructure:"metrics_addr"`
	// ReconcileSchedule is a cron spec for the nightly daily-record rebuild; empty disables it.
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	LogLevel          string `mapstructure:"log_level"`
	LogJSON           bool   `mapstructure:"log_json"`
}

type PositionConfig struct {
	Provider     string        `mapstructure:"provider"`
	Latitude     float64       `mapstructure:"latitude"`
	Longitude    float64       `mapstructure:"longitude"`
	AccuracyM    float64       `mapstructure:"accuracy_m"`
	PluginBinary string        `mapstructure:"plugin_binary"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// DSN is the Postgres URL; for sqlite it is the database path.
	DSN string `mapstructure:"dsn"`
}

// Load builds a Config. configFile may be empty, in which case
// <dataDir>/geoattend.yaml is read when present.
func Load(dataDir, configFile string) (Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	v := viper.New()
	v.SetEnvPrefix("GEOATTEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", dataDir)
	v.SetDefault("user_id", "")
	v.SetDefault("device", "")
	v.SetDefault("network", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("tick_interval", "30s")
	v.SetDefault("position.provider", ProviderStatic)
	v.SetDefault("position.latitude", 0.0)
	v.SetDefault("position.longitude", 0.0)
	v.SetDefault("position.accuracy_m", 0.0)
	v.SetDefault("position.plugin_binary", "")
	v.SetDefault("position.timeout", "10s")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault("offices_file", "")
	v.SetDefault("notes_dir", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("reconcile_schedule", "5 0 * * *")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("geoattend")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDerivedDefaults() {
	if c.OfficesFile == "" {
		c.OfficesFile = filepath.Join(c.DataDir, "offices.yaml")
	}
	if c.NotesDir == "" {
		c.NotesDir = filepath.Join(c.DataDir, "notes")
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = filepath.Join(c.DataDir, ".geoattend", "geoattend.db")
	}
}

func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("config: tick_interval must be positive")
	}
	if c.Position.Timeout <= 0 {
		return errors.New("config: position.timeout must be positive")
	}
	switch c.Position.Provider {
	case ProviderStatic:
		if c.Position.Latitude < -90 || c.Position.Latitude > 90 || c.Position.Longitude < -180 || c.Position.Longitude > 180 {
			return errors.New("config: static position is out of range")
		}
	case ProviderPlugin:
		if c.Position.PluginBinary == "" {
			return errors.New("config: position.plugin_binary is required for the plugin provider")
		}
	default:
		return fmt.Errorf("config: unknown position.provider %q", c.Position.Provider)
	}
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Location resolves Timezone; calendar days are cut in this zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RequireUser is checked by commands that act on one user's log.
func (c Config) RequireUser() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user id is required (set user_id or GEOATTEND_USER_ID)")
	}
	return nil
}
