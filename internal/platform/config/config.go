package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

type ServerConfig struct {
	Host         string          `mapstructure:"host"`
	Port         int             `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration   `mapstructure:"idle_timeout"`
	RateLimits   RateLimitConfig `mapstructure:"rate_limits"`
}

// RateLimitConfig is requests per minute per organization.
type RateLimitConfig struct {
	Read   int `mapstructure:"read"`
	Write  int `mapstructure:"write"`
	Events int `mapstructure:"events"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// WebhooksConfig controls outbound webhook delivery.
type WebhooksConfig struct {
	Product     string        `mapstructure:"product"`
	Version     string        `mapstructure:"version"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type ChannelsConfig struct {
	PagerDutyURL    string `mapstructure:"pagerduty_url"`
	PagerDutySource string `mapstructure:"pagerduty_source"`
}

// AlertingConfig points the incident bridge at an Alertmanager-compatible
// receiver. An empty ReceiverURL disables the bridge.
type AlertingConfig struct {
	ReceiverURL string        `mapstructure:"receiver_url"`
	AlertName   string        `mapstructure:"alert_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.rate_limits.read", 1000)
	v.SetDefault("server.rate_limits.write", 100)
	v.SetDefault("server.rate_limits.events", 600)

	v.SetDefault("database.url", "file:data/beacon.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("webhooks.product", "Beacon")
	v.SetDefault("webhooks.version", "1.0")
	v.SetDefault("webhooks.timeout", 30*time.Second)
	v.SetDefault("webhooks.concurrency", 10)

	v.SetDefault("channels.pagerduty_url", "https://events.pagerduty.com/v2/enqueue")
	v.SetDefault("channels.pagerduty_source", "beacon")

	v.SetDefault("alerting.alert_name", "BeaconIncident")
	v.SetDefault("alerting.timeout", 10*time.Second)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
