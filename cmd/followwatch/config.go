// Package main provides the followwatch CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/followwatch/internal/tracker"
)

// Environment variables that override the config file.
const (
	envDatabasePath     = "FOLLOWWATCH_DATABASE_PATH"
	envJWTSecret        = "FOLLOWWATCH_JWT_SECRET"
	envTelegramBotToken = "FOLLOWWATCH_TELEGRAM_BOT_TOKEN"
	envSlackWebhookURL  = "FOLLOWWATCH_SLACK_WEBHOOK_URL"
	envSentryDSN        = "FOLLOWWATCH_SENTRY_DSN"
)

// Config represents the followwatch configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Source    SourceConfig    `yaml:"source"`
	Notify    NotifyConfig    `yaml:"notify"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress      string        `yaml:"http_address"`    // default :8080
	MetricsAddress   string        `yaml:"metrics_address"` // empty disables
	CORSOrigins      []string      `yaml:"cors_origins"`
	RateLimitPerIP   int           `yaml:"rate_limit_per_ip"`   // per minute, public routes
	RateLimitPerUser int           `yaml:"rate_limit_per_user"` // per minute, authenticated routes
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains token and lockout settings.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	LockoutThreshold int           `yaml:"lockout_threshold"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`
}

// SchedulerConfig contains fleet refresh settings.
type SchedulerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	RunOnStart bool          `yaml:"run_on_start"`
}

// RefreshConfig bounds each step of a refresh.
type RefreshConfig struct {
	SourceTimeout  time.Duration `yaml:"source_timeout"`
	StorageTimeout time.Duration `yaml:"storage_timeout"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
}

// SourceConfig selects the follower count provider.
type SourceConfig struct {
	Kind              string `yaml:"kind"` // random | http
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Seed              uint64 `yaml:"seed"` // random source only; 0 seeds from the clock
}

// NotifyConfig contains notification channel settings.
type NotifyConfig struct {
	TelegramBotToken string        `yaml:"telegram_bot_token"`
	SlackWebhookURL  string        `yaml:"slack_webhook_url"`
	RateLimit        int           `yaml:"rate_limit"` // per window, 0 disables
	RateWindow       time.Duration `yaml:"rate_window"`
}

// RetentionConfig controls history pruning.
type RetentionConfig struct {
	HistoryMaxAge time.Duration `yaml:"history_max_age"` // 0 disables pruning
	Interval      time.Duration `yaml:"interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Debug       bool   `yaml:"debug"`
	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`
}

// LoadConfig reads the YAML file at path, when given, then applies
// environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if doc.Kind != 0 {
			normalizeDurations(&doc, reflect.TypeOf(*cfg))
			if err := doc.Decode(cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := newConfig()
	cfg.setDefaults()
	return cfg
}

// newConfig presets the fields where an explicit zero means "disabled", so
// they are set before the file is decoded rather than in setDefaults.
func newConfig() *Config {
	return &Config{
		Notify:    NotifyConfig{RateLimit: 30},
		Retention: RetentionConfig{HistoryMaxAge: 30 * 24 * time.Hour},
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// normalizeDurations rewrites bare integers under time.Duration fields as
// seconds ("300" becomes "300s"). yaml.v3 only decodes durations from strings.
func normalizeDurations(n *yaml.Node, t reflect.Type) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, child := range n.Content {
			normalizeDurations(child, t)
		}
	case yaml.MappingNode:
		if t.Kind() != reflect.Struct {
			return
		}
		fields := make(map[string]reflect.Type, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "" {
				name = strings.ToLower(f.Name)
			}
			fields[name] = f.Type
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			ft, ok := fields[n.Content[i].Value]
			if !ok {
				continue
			}
			val := n.Content[i+1]
			switch {
			case ft == durationType && val.Kind == yaml.ScalarNode && val.ShortTag() == "!!int":
				val.Value += "s"
				val.Tag = "!!str"
				val.Style = yaml.DoubleQuotedStyle
			case ft.Kind() == reflect.Struct:
				normalizeDurations(val, ft)
			}
		}
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(envDatabasePath, &c.Database.Path)
	set(envJWTSecret, &c.Auth.JWTSecret)
	set(envTelegramBotToken, &c.Notify.TelegramBotToken)
	set(envSlackWebhookURL, &c.Notify.SlackWebhookURL)
	set(envSentryDSN, &c.Log.SentryDSN)
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/followwatch.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 30 * time.Minute
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 5 * time.Minute
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 8
	}
	if c.Scheduler.QueueSize == 0 {
		c.Scheduler.QueueSize = 256
	}
	refresh := tracker.DefaultConfig()
	if c.Refresh.SourceTimeout == 0 {
		c.Refresh.SourceTimeout = refresh.SourceTimeout
	}
	if c.Refresh.StorageTimeout == 0 {
		c.Refresh.StorageTimeout = refresh.StorageTimeout
	}
	if c.Refresh.NotifyTimeout == 0 {
		c.Refresh.NotifyTimeout = refresh.NotifyTimeout
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "random"
	}
	if c.Source.RequestsPerMinute == 0 {
		c.Source.RequestsPerMinute = 60
	}
	if c.Notify.RateWindow == 0 {
		c.Notify.RateWindow = time.Minute
	}
	if c.Retention.Interval == 0 {
		c.Retention.Interval = time.Hour
	}
	if c.Log.Environment == "" {
		c.Log.Environment = "development"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Scheduler.Interval < time.Second {
		errs = append(errs, errors.New("scheduler.interval must be at least 1s"))
	}
	if c.Scheduler.Workers < 0 || c.Scheduler.QueueSize < 0 {
		errs = append(errs, errors.New("scheduler.workers and scheduler.queue_size must not be negative"))
	}
	if c.Refresh.SourceTimeout < 0 || c.Refresh.StorageTimeout < 0 || c.Refresh.NotifyTimeout < 0 {
		errs = append(errs, errors.New("refresh timeouts must not be negative"))
	}
	switch c.Source.Kind {
	case "random":
	case "http":
		if c.Source.BaseURL == "" {
			errs = append(errs, errors.New("source.base_url is required when source.kind is http"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind must be random or http, got %q", c.Source.Kind))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes"))
	}
	if c.Notify.SlackWebhookURL != "" && !strings.HasPrefix(c.Notify.SlackWebhookURL, "https://") {
		errs = append(errs, errors.New("notify.slack_webhook_url must use https"))
	}
	if c.Notify.RateLimit < 0 {
		errs = append(errs, errors.New("notify.rate_limit must not be negative"))
	}
	if c.Retention.HistoryMaxAge < 0 {
		errs = append(errs, errors.New("retention.history_max_age must not be negative"))
	}

	return errors.Join(errs...)
}
