package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "daycounter/internal/log"
	"daycounter/internal/model"
)

// ErrInvalidTime is returned for daily summary times that are not "HH:MM".
var ErrInvalidTime = errors.New("invalid time of day")

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"

	defaultListen           = "127.0.0.1:8080"
	defaultLogLevel         = "info"
	defaultDailySummaryTime = "09:00"
	defaultSMTPPort         = 587
)

// Environment overrides, read after the YAML file. A .env file next to the
// config file is loaded first without clobbering the real environment.
const (
	EnvListen       = "DAYCOUNTER_LISTEN"
	EnvDBPath       = "DAYCOUNTER_DB_PATH"
	EnvSMTPPassword = "DAYCOUNTER_SMTP_PASSWORD"
	EnvLogLevel     = "DAYCOUNTER_LOG_LEVEL"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StorageConfig selects the event repository adapter.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file. Empty means the per-user default.
	Path string `yaml:"path" json:"path"`
}

// MailConfig configures SMTP delivery of reminders. Host empty disables it.
type MailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"-"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
}

type NotificationsConfig struct {
	// Enabled is the notification permission. When false no alarms are set.
	Enabled bool       `yaml:"enabled" json:"enabled"`
	Mail    MailConfig `yaml:"mail" json:"mail"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for "today", reminder times of day and
	// the daily summary (e.g. "Asia/Seoul"). Empty means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DailySummaryTime seeds the summary schedule ("HH:MM") until a value
	// is stored through the API.
	DailySummaryTime string `yaml:"daily_summary_time" json:"daily_summary_time"`

	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		Timezone:         "",
		LogLevel:         defaultLogLevel,
		DailySummaryTime: defaultDailySummaryTime,
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Mail: MailConfig{
				Port: defaultSMTPPort,
				To:   []string{},
			},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if _, err := ParseTimeOfDay(c.DailySummaryTime); err != nil {
		c.DailySummaryTime = defaultDailySummaryTime
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	default:
		// Unknown or empty driver; persist by default.
		c.Storage.Driver = DriverSQLite
	}

	if c.Notifications.Mail.Port <= 0 {
		c.Notifications.Mail.Port = defaultSMTPPort
	}
	if c.Notifications.Mail.To == nil {
		c.Notifications.Mail.To = []string{}
	}
}

// Location resolves Timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone, falling back to local", err, "timezone", c.Timezone)
		return time.Local
	}
	return loc
}

// ParseTimeOfDay validates a 24-hour "HH:MM" value and returns it as an
// offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	h, m, err := model.ParseClock(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// ApplyEnv loads dir/.env (if present) into the process environment and
// applies the DAYCOUNTER_* overrides.
func (c *Config) ApplyEnv(dir string) error {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Notifications.Mail.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied last and never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, cfg.ApplyEnv(filepath.Dir(path))
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	if err := cfg.ApplyEnv(filepath.Dir(path)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daycounter-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.Notifications.Mail.Host != "" && len(c.Notifications.Mail.To) > 0
}
