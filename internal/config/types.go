package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full service configuration, loaded from a YAML file.
// Unknown keys are rejected so typos fail fast instead of silently using
// defaults.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Notify   NotifyConfig   `yaml:"notify"`
	Planner  PlannerConfig  `yaml:"planner"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout"`
}

type AuthConfig struct {
	// Secret signs session tokens. Usually injected via SMARTZONE_AUTH_SECRET
	// rather than written into the file.
	Secret   string `yaml:"secret"`
	TokenTTL string `yaml:"token_ttl"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"file"`
}

type NotifyConfig struct {
	Workers    int            `yaml:"workers"`
	QueueSize  int            `yaml:"queue_size"`
	RatePerSec int            `yaml:"rate_per_sec"`
	RetryMax   int            `yaml:"retry_max"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type PlannerConfig struct {
	// RearmCron is the schedule of the maintenance sweep that re-arms every
	// persisted reminder. Standard five-field cron syntax.
	RearmCron string `yaml:"rearm_cron"`
}

// Defaults applied by Validate when fields are unset.
const (
	DefaultAddr      = ":8080"
	DefaultDBPath    = "data/smartzone.db"
	DefaultTokenTTL  = 24 * time.Hour
	DefaultRearmCron = "30 3 * * *"
)

// Validate fills defaults and rejects configurations the service cannot
// start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = DefaultDBPath
	}
	if _, err := ParseDurationField("database.busy_timeout", c.Database.BusyTimeout); err != nil {
		return err
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret is required")
	}
	if _, err := ParseDurationField("auth.token_ttl", c.Auth.TokenTTL); err != nil {
		return err
	}
	if c.Notify.Telegram.Enabled && strings.TrimSpace(c.Notify.Telegram.Token) == "" {
		return errors.New("notify.telegram.token is required when telegram is enabled")
	}
	if strings.TrimSpace(c.Planner.RearmCron) == "" {
		c.Planner.RearmCron = DefaultRearmCron
	}
	return nil
}

// TokenTTL returns the parsed session lifetime.
func (c *Config) TokenTTL() time.Duration {
	d, err := ParseDurationOrDefault("auth.token_ttl", c.Auth.TokenTTL, DefaultTokenTTL)
	if err != nil {
		return DefaultTokenTTL
	}
	return d
}

// BusyTimeout returns the parsed SQLite busy timeout (0 means driver
// default).
func (c *Config) BusyTimeout() time.Duration {
	d, _ := ParseDurationField("database.busy_timeout", c.Database.BusyTimeout)
	return d
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
