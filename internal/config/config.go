// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultClockFormat = "3:04:05 PM"
	DefaultDateFormat  = "Monday, 2 January 2006"
	DefaultTimeFormat  = "3:04 PM"
)

// Config represents the adhan CLI configuration.
type Config struct {
	Display DisplayConfig `toml:"display"`
	TUI     TUIConfig     `toml:"tui"`
}

// DisplayConfig holds formatting options shared by the CLI commands.
type DisplayConfig struct {
	ClockFormat string `toml:"clock_format"` // Go layout for the running clock
	DateFormat  string `toml:"date_format"`
	TimeFormat  string `toml:"time_format"` // Prayer times in tables
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	ShowHelp     bool `toml:"show_help"`
	ShowBlackout bool `toml:"show_blackout"`
	ShowChannel  bool `toml:"show_channel"` // Query the daemon for the audio channel
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			ClockFormat: DefaultClockFormat,
			DateFormat:  DefaultDateFormat,
			TimeFormat:  DefaultTimeFormat,
		},
		TUI: TUIConfig{
			ShowHelp:     true,
			ShowBlackout: true,
			ShowChannel:  true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "adhan", "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "adhan")
}

// DefaultTimetablePath returns the path to the default timetable file.
func DefaultTimetablePath() string {
	return filepath.Join(DataPath(), "timetable.yaml")
}

// StatePath returns the path to the shared state file.
func StatePath() string {
	return filepath.Join(DataPath(), "state.json")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}
