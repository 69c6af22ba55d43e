// Package config provides YAML-based configuration loading for Drydock.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Drydock configuration, loaded from drydock.yaml.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Capacity     CapacityConfig     `yaml:"capacity"`
	Lock         LockConfig         `yaml:"lock"`
	Notify       NotifyConfig       `yaml:"notify"`
	Server       ServerConfig       `yaml:"server"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	DSN      string `yaml:"dsn"`    // full mysql DSN, overrides the parts below
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// CapacityConfig holds the workload policies seeded into the database.
type CapacityConfig struct {
	Default CapacityRule   `yaml:"default"`
	Rules   []CapacityRule `yaml:"rules"`
}

// CapacityRule is one workload policy. Role and Shift narrow its scope.
type CapacityRule struct {
	Role                   string  `yaml:"role"`
	Shift                  string  `yaml:"shift"`
	MaxHoursPerDay         float64 `yaml:"max_hours_per_day"`
	OvertimeThresholdHours float64 `yaml:"overtime_threshold_hours"`
	MaxOvertimeHours       float64 `yaml:"max_overtime_hours"`
	MaxJobsPerDay          int     `yaml:"max_jobs_per_day"`
}

// LockConfig selects how per-plan mutations are serialized.
type LockConfig struct {
	Backend  string        `yaml:"backend"` // local or redis
	RedisURL string        `yaml:"redis_url"`
	Expiry   time.Duration `yaml:"expiry"`
}

type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	NATS    NATSConfig    `yaml:"nats"`
}

type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type HousekeepingConfig struct {
	ArchiveCron string `yaml:"archive_cron"`
}

// envOverrides are read from DRYDOCK_* variables after the file is parsed.
type envOverrides struct {
	DatabaseDSN  string `envconfig:"DATABASE_DSN"`
	RedisURL     string `envconfig:"REDIS_URL"`
	SlackToken   string `envconfig:"SLACK_TOKEN"`
	DiscordToken string `envconfig:"DISCORD_TOKEN"`
	NATSURL      string `envconfig:"NATS_URL"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
}

// Load reads a YAML config file from path, applies environment overrides
// (including a .env file in the working directory), and returns a validated
// Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	_ = godotenv.Load()
	return parse(data, true)
}

// Parse unmarshals YAML bytes into a validated Config without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	return parse(data, false)
}

func parse(data []byte, withEnv bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if withEnv {
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("drydock", &env); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if env.DatabaseDSN != "" {
		c.Database.DSN = env.DatabaseDSN
	}
	if env.RedisURL != "" {
		c.Lock.RedisURL = env.RedisURL
	}
	if env.SlackToken != "" {
		c.Notify.Slack.Token = env.SlackToken
	}
	if env.DiscordToken != "" {
		c.Notify.Discord.Token = env.DiscordToken
	}
	if env.NATSURL != "" {
		c.Notify.NATS.URL = env.NATSURL
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "drydock.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "drydock"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	d := &c.Capacity.Default
	if d.MaxHoursPerDay == 0 {
		d.MaxHoursPerDay = 8
	}
	if d.OvertimeThresholdHours == 0 {
		d.OvertimeThresholdHours = d.MaxHoursPerDay
	}
	if d.MaxOvertimeHours == 0 {
		d.MaxOvertimeHours = 4
	}
	if d.MaxJobsPerDay == 0 {
		d.MaxJobsPerDay = 5
	}
	for i := range c.Capacity.Rules {
		r := &c.Capacity.Rules[i]
		if r.MaxHoursPerDay == 0 {
			r.MaxHoursPerDay = d.MaxHoursPerDay
		}
		if r.OvertimeThresholdHours == 0 {
			r.OvertimeThresholdHours = r.MaxHoursPerDay
		}
		if r.MaxJobsPerDay == 0 {
			r.MaxJobsPerDay = d.MaxJobsPerDay
		}
	}

	if c.Lock.Backend == "" {
		c.Lock.Backend = "local"
	}
	if c.Lock.Expiry == 0 {
		c.Lock.Expiry = 30 * time.Second
	}
	if c.Notify.NATS.URL != "" && c.Notify.NATS.Subject == "" {
		c.Notify.NATS.Subject = "drydock.events"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Housekeeping.ArchiveCron == "" {
		c.Housekeeping.ArchiveCron = "15 0 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Lock.RedisURL == "" {
			errs = append(errs, "lock.redis_url is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("lock.backend %q must be local or redis", c.Lock.Backend))
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required with a slack token")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a discord token")
	}

	rules := append([]CapacityRule{c.Capacity.Default}, c.Capacity.Rules...)
	for i, r := range rules {
		name := "capacity.default"
		if i > 0 {
			name = fmt.Sprintf("capacity.rules[%d]", i-1)
			if r.Role == "" && r.Shift == "" {
				errs = append(errs, name+" needs a role or a shift")
			}
		}
		if r.OvertimeThresholdHours > r.MaxHoursPerDay+r.MaxOvertimeHours {
			errs = append(errs, name+".overtime_threshold_hours exceeds the daily limit")
		}
		if r.MaxHoursPerDay < 0 || r.MaxOvertimeHours < 0 || r.MaxJobsPerDay < 0 {
			errs = append(errs, name+" has negative limits")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
