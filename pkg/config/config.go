package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	xdgAppName = "lwtt"
	configFile = "config.json"

	DefaultCalendar = "Timesheet"
)

// Config is the user configuration. The file may carry // and /* */
// comments and trailing commas.
type Config struct {
	// DataFile is the task document. Empty means ~/.config/lwtt/data.json.
	DataFile string `json:"data_file,omitempty"`
	// AutosaveInterval is a Go duration string, e.g. "5m".
	AutosaveInterval string `json:"autosave_interval,omitempty"`
	// DefaultRate is the hourly rate of new tasks.
	DefaultRate float64 `json:"default_rate,omitempty"`
	// Calendar is the Google Calendar that publish writes to.
	Calendar string `json:"calendar,omitempty"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AutosaveInterval: "5m",
		DefaultRate:      1,
		Calendar:         DefaultCalendar,
		LogLevel:         "info",
	}
}

// Dir is ~/.config/lwtt.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the configuration at path, or the default path when path is
// empty. A missing file yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, or the default path when path is empty.
func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := c.Interval(); err != nil {
		return err
	}
	if c.DefaultRate < 0 {
		return fmt.Errorf("default_rate %v is negative", c.DefaultRate)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Interval parses AutosaveInterval. Empty means five minutes.
func (c *Config) Interval() (time.Duration, error) {
	if c.AutosaveInterval == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.AutosaveInterval)
	if err != nil {
		return 0, fmt.Errorf("autosave_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("autosave_interval %s must be positive", d)
	}
	return d, nil
}

// ResolveDataFile returns DataFile with a leading ~ expanded, or the
// default data path.
func (c *Config) ResolveDataFile() (string, error) {
	if c.DataFile == "" {
		dir, err := Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "data.json"), nil
	}
	if strings.HasPrefix(c.DataFile, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, c.DataFile[2:]), nil
	}
	return c.DataFile, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
