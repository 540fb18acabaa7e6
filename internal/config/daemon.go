package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/adhan/internal/model"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "30s", "20m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '30s', '20m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Environment variables that override the config file.
const (
	EnvBlackoutPeriod = "ADHAN_BLACKOUT_PERIOD"
	EnvPrePrayerLead  = "ADHAN_PRE_PRAYER_LEAD"
	EnvTimetable      = "ADHAN_TIMETABLE"
	EnvMQTTBroker     = "ADHAN_MQTT_BROKER"
)

// DaemonConfig is the configuration for adhand.
// Loaded from ~/.config/adhan/adhand.toml
type DaemonConfig struct {
	Location  LocationConfig  `toml:"location"`
	Timetable TimetableConfig `toml:"timetable"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Chime     ChimeConfig     `toml:"chime"`
	Audio     AudioConfig     `toml:"audio"`
	Assets    AssetsConfig    `toml:"assets"`
	Quiet     QuietConfig     `toml:"quiet"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	DBus      DBusConfig      `toml:"dbus"`
}

// LocationConfig names the site and its time zone.
type LocationConfig struct {
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"` // IANA name, empty = system local
}

// TimetableConfig points at the prayer times file.
type TimetableConfig struct {
	Path  string `toml:"path"`  // YAML or JSON, empty = data dir default
	Watch bool   `toml:"watch"` // Reload when the file changes
}

// ScheduleConfig contains trigger timing settings.
type ScheduleConfig struct {
	BlackoutMinutes int      `toml:"blackout_minutes"`  // Window after congregation time
	PrePrayerLead   Duration `toml:"pre_prayer_lead"`   // Reminder lead, e.g. "20m"
	PostPrayerDelay Duration `toml:"post_prayer_delay"` // Isha recitation delay
	Friday          string   `toml:"friday"`            // Congregational weekday
	Tolerance       Duration `toml:"tolerance"`         // Late-tick catch-up, "0s" = exact second only
}

// ChimeConfig contains hourly chime settings.
type ChimeConfig struct {
	Enabled         bool     `toml:"enabled"`
	StartHour       int      `toml:"start_hour"`
	EndHour         int      `toml:"end_hour"`
	Pool            []string `toml:"pool"`
	Volume          float64  `toml:"volume"` // 0.0-1.0
	RespectBlackout bool     `toml:"respect_blackout"`
}

// AudioConfig contains audio channel settings.
type AudioConfig struct {
	Device            string   `toml:"device"`    // "beep" or "null"
	AssetDir          string   `toml:"asset_dir"` // Relative asset names resolve here
	Policy            string   `toml:"policy"`    // "queue" or "drop"
	QueueLimit        int      `toml:"queue_limit"`
	Volume            int      `toml:"volume"` // 0-100, announcements other than the chime
	MonitorInterval   Duration `toml:"monitor_interval"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
	HeartbeatLength   Duration `toml:"heartbeat_length"`
	KeepAlive         bool     `toml:"keep_alive"`
	Preload           bool     `toml:"preload"`
	WatchAssets       bool     `toml:"watch_assets"`
}

// AssetsConfig overrides announcement asset names.
type AssetsConfig struct {
	Prayer       string            `toml:"prayer"`
	PrayerFajr   string            `toml:"prayer_fajr"`
	PostFriday   string            `toml:"post_friday"`
	PostEveryday string            `toml:"post_everyday"`
	PrePrayer    map[string]string `toml:"pre_prayer"` // label -> asset
}

// QuietConfig contains quiet mode settings.
type QuietConfig struct {
	Enabled      bool `toml:"enabled"`       // Initial state
	PrayerBypass bool `toml:"prayer_bypass"` // Prayer calls sound even when quiet
}

// MQTTConfig contains event publishing settings.
type MQTTConfig struct {
	Enabled           bool     `toml:"enabled"`
	Broker            string   `toml:"broker"` // e.g. "tcp://localhost:1883"
	ClientID          string   `toml:"client_id"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	Topic             string   `toml:"topic"`
	QoS               int      `toml:"qos"`
	Retain            bool     `toml:"retain"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
}

// DBusConfig contains control service settings.
type DBusConfig struct {
	Enabled bool   `toml:"enabled"`
	Bus     string `toml:"bus"` // "session" or "system"
}

// Audio device names.
const (
	DeviceBeep = "beep"
	DeviceNull = "null"
)

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	pool := make([]string, 8)
	for i := range pool {
		pool[i] = fmt.Sprintf("%d.mp3", i+1)
	}

	return &DaemonConfig{
		Location: LocationConfig{
			Name: "Masjid",
		},
		Timetable: TimetableConfig{
			Watch: true,
		},
		Schedule: ScheduleConfig{
			BlackoutMinutes: 13,
			PrePrayerLead:   Duration(20 * time.Minute),
			PostPrayerDelay: Duration(60 * time.Minute),
			Friday:          "friday",
			Tolerance:       0,
		},
		Chime: ChimeConfig{
			Enabled:   true,
			StartHour: 5,
			EndHour:   23,
			Pool:      pool,
			Volume:    0.5,
		},
		Audio: AudioConfig{
			Device:            DeviceBeep,
			AssetDir:          filepath.Join(DataPath(), "audio"),
			Policy:            "queue",
			QueueLimit:        8,
			Volume:            100,
			MonitorInterval:   Duration(30 * time.Second),
			HeartbeatInterval: Duration(5 * time.Minute),
			HeartbeatLength:   Duration(2 * time.Second),
			KeepAlive:         true,
			Preload:           true,
			WatchAssets:       true,
		},
		Assets: AssetsConfig{
			Prayer:       "prayer.mp3",
			PrayerFajr:   "prayer_fajr.mp3",
			PostFriday:   "friday.mp3",
			PostEveryday: "everyday.mp3",
			PrePrayer:    map[string]string{},
		},
		Quiet: QuietConfig{
			Enabled:      false,
			PrayerBypass: true,
		},
		MQTT: MQTTConfig{
			Enabled:           false,
			ClientID:          "adhand",
			Topic:             "adhan",
			QoS:               1,
			HeartbeatInterval: Duration(5 * time.Minute),
		},
		DBus: DBusConfig{
			Enabled: true,
			Bus:     "session",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "adhan", "adhand.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from path, or from the
// default location when path is empty. Environment overrides are applied
// before validation. A missing file yields the defaults.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		p, err := DaemonConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	config := DefaultDaemonConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or to the
// default location when path is empty.
func SaveDaemonConfig(path string, config *DaemonConfig) error {
	if path == "" {
		p, err := DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// ApplyEnv overlays environment overrides read through getenv.
// ADHAN_BLACKOUT_PERIOD and ADHAN_PRE_PRAYER_LEAD take minutes or a duration.
func (c *DaemonConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBlackoutPeriod); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBlackoutPeriod, err)
		}
		c.Schedule.BlackoutMinutes = int(d / time.Minute)
	}
	if v := getenv(EnvPrePrayerLead); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPrePrayerLead, err)
		}
		c.Schedule.PrePrayerLead = Duration(d)
	}
	if v := getenv(EnvTimetable); v != "" {
		c.Timetable.Path = v
	}
	if v := getenv(EnvMQTTBroker); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
	return nil
}

func parseMinutes(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	return time.ParseDuration(s)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if _, err := c.Location.Load(); err != nil {
		return err
	}

	if c.Schedule.BlackoutMinutes < 0 || c.Schedule.BlackoutMinutes > 120 {
		return fmt.Errorf("blackout_minutes must be between 0 and 120, got %d", c.Schedule.BlackoutMinutes)
	}
	if c.Schedule.PrePrayerLead.Duration() <= 0 {
		return fmt.Errorf("pre_prayer_lead must be positive, got %s", c.Schedule.PrePrayerLead.Duration())
	}
	if c.Schedule.PostPrayerDelay.Duration() < 0 {
		return fmt.Errorf("post_prayer_delay must not be negative, got %s", c.Schedule.PostPrayerDelay.Duration())
	}
	if c.Schedule.Tolerance.Duration() < 0 || c.Schedule.Tolerance.Duration() > time.Minute {
		return fmt.Errorf("tolerance must be between 0s and 1m, got %s", c.Schedule.Tolerance.Duration())
	}
	if _, err := ParseWeekday(c.Schedule.Friday); err != nil {
		return err
	}

	if c.Chime.StartHour < 0 || c.Chime.EndHour > 23 || c.Chime.StartHour > c.Chime.EndHour {
		return fmt.Errorf("chime hours must satisfy 0 <= start_hour <= end_hour <= 23, got %d-%d", c.Chime.StartHour, c.Chime.EndHour)
	}
	if c.Chime.Enabled && len(c.Chime.Pool) == 0 {
		return fmt.Errorf("chime pool must not be empty when the chime is enabled")
	}
	if c.Chime.Volume < 0 || c.Chime.Volume > 1 {
		return fmt.Errorf("chime volume must be between 0 and 1, got %v", c.Chime.Volume)
	}

	if !slices.Contains([]string{DeviceBeep, DeviceNull}, c.Audio.Device) {
		return fmt.Errorf("invalid audio device %q, must be %q or %q", c.Audio.Device, DeviceBeep, DeviceNull)
	}
	if c.Audio.Policy != "queue" && c.Audio.Policy != "drop" {
		return fmt.Errorf("invalid audio policy %q, must be \"queue\" or \"drop\"", c.Audio.Policy)
	}
	if c.Audio.QueueLimit < 1 {
		return fmt.Errorf("queue_limit must be at least 1, got %d", c.Audio.QueueLimit)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Audio.MonitorInterval.Duration() < time.Second {
		return fmt.Errorf("monitor_interval must be at least 1s, got %s", c.Audio.MonitorInterval.Duration())
	}
	if c.Audio.HeartbeatInterval.Duration() < time.Second {
		return fmt.Errorf("heartbeat_interval must be at least 1s, got %s", c.Audio.HeartbeatInterval.Duration())
	}
	if l := c.Audio.HeartbeatLength.Duration(); l <= 0 || l > 3*time.Second {
		return fmt.Errorf("heartbeat_length must be between 0s and 3s, got %s", l)
	}

	for label := range c.Assets.PrePrayer {
		if _, err := model.ParseLabel(label); err != nil {
			return fmt.Errorf("[assets.pre_prayer]: %w", err)
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker must be set when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt topic must be set when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}

	if c.DBus.Bus != "session" && c.DBus.Bus != "system" {
		return fmt.Errorf("invalid dbus bus %q, must be \"session\" or \"system\"", c.DBus.Bus)
	}

	return nil
}

// Load returns the configured time zone.
func (l LocationConfig) Load() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// FridayWeekday returns the configured congregational weekday.
func (c *DaemonConfig) FridayWeekday() time.Weekday {
	wd, err := ParseWeekday(c.Schedule.Friday)
	if err != nil {
		return time.Friday
	}
	return wd
}

// TimetablePath returns the configured timetable file, or the default.
func (c *DaemonConfig) TimetablePath() string {
	if c.Timetable.Path != "" {
		return expandPath(c.Timetable.Path)
	}
	return DefaultTimetablePath()
}

// AssetDir returns the asset directory with ~ expanded.
func (c *DaemonConfig) AssetDir() string {
	return expandPath(c.Audio.AssetDir)
}

// AnnouncementVolume returns the announcement volume as 0.0-1.0.
func (c *DaemonConfig) AnnouncementVolume() float64 {
	return float64(c.Audio.Volume) / 100.0
}

// ParseWeekday parses an English weekday name or a number 0-6 (Sunday = 0).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday must be between 0 and 6, got %d", n)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
