package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	StoreBackendFile     = "file"
	StoreBackendDynamoDB = "dynamodb"

	NotifierBackendTelegram = "telegram"
	NotifierBackendLog      = "log"
)

// Environment variables that override secrets from the config file.
const (
	EnvToken                 = "CFPING_TOKEN"
	EnvTelegramToken         = "CFPING_TELEGRAM_TOKEN"
	EnvTelegramChatID        = "CFPING_TELEGRAM_CHAT_ID"
	EnvTelegramWebhookSecret = "CFPING_TELEGRAM_WEBHOOK_SECRET"
)

// Config represents configuration data for the heartbeat monitor.
type Config struct {
	Token    string   `yaml:"token"`
	Entities []string `yaml:"entities"`
	LogLevel string   `yaml:"log_level"`
	Server   Server   `yaml:"server"`
	Sweep    Sweep    `yaml:"sweep"`
	Store    Store    `yaml:"store"`
	Notifier Notifier `yaml:"notifier"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr              string `yaml:"addr"`
	MaxConnections    int    `yaml:"max_connections"`
	StatusPushSeconds int    `yaml:"status_push_seconds"`
}

// Sweep configures silence detection.
type Sweep struct {
	IntervalSeconds      int `yaml:"interval_seconds"`
	ThresholdSeconds     int `yaml:"threshold_seconds"`
	EntityTimeoutSeconds int `yaml:"entity_timeout_seconds"`
	MaxConcurrency       int `yaml:"max_concurrency"`
}

// Store selects and configures the record store backend.
type Store struct {
	Backend         string `yaml:"backend"`
	Path            string `yaml:"path"`
	Table           string `yaml:"table"`
	Region          string `yaml:"region"`
	ConflictRetries int    `yaml:"conflict_retries"`
}

// Notifier selects and configures the notification channel.
type Notifier struct {
	Backend        string   `yaml:"backend"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Telegram       Telegram `yaml:"telegram"`
}

// Telegram holds Bot API credentials.
type Telegram struct {
	Token         string `yaml:"token"`
	ChatID        string `yaml:"chat_id"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:              ":8080",
			MaxConnections:    256,
			StatusPushSeconds: 15,
		},
		Sweep: Sweep{
			IntervalSeconds:      60,
			ThresholdSeconds:     90,
			EntityTimeoutSeconds: 10,
			MaxConcurrency:       8,
		},
		Store: Store{
			Backend:         StoreBackendFile,
			Path:            filepath.Join(".dist", "data", "status.json"),
			Table:           "cfping-status",
			ConflictRetries: 3,
		},
		Notifier: Notifier{
			TimeoutSeconds: 10,
		},
	}
}

// Load reads configuration from a yaml file. Missing files fall back to
// defaults. Secrets from the environment win over the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := getenv(EnvTelegramToken); v != "" {
		cfg.Notifier.Telegram.Token = v
	}
	if v := getenv(EnvTelegramChatID); v != "" {
		cfg.Notifier.Telegram.ChatID = v
	}
	if v := getenv(EnvTelegramWebhookSecret); v != "" {
		cfg.Notifier.Telegram.WebhookSecret = v
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.MaxConnections <= 0 {
		cfg.Server.MaxConnections = defaults.Server.MaxConnections
	}
	if cfg.Server.StatusPushSeconds <= 0 {
		cfg.Server.StatusPushSeconds = defaults.Server.StatusPushSeconds
	}
	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = defaults.Sweep.IntervalSeconds
	}
	if cfg.Sweep.ThresholdSeconds <= 0 {
		cfg.Sweep.ThresholdSeconds = defaults.Sweep.ThresholdSeconds
	}
	if cfg.Sweep.EntityTimeoutSeconds <= 0 {
		cfg.Sweep.EntityTimeoutSeconds = defaults.Sweep.EntityTimeoutSeconds
	}
	if cfg.Sweep.MaxConcurrency <= 0 {
		cfg.Sweep.MaxConcurrency = defaults.Sweep.MaxConcurrency
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaults.Store.Path
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = defaults.Store.Table
	}
	if cfg.Store.ConflictRetries <= 0 {
		cfg.Store.ConflictRetries = defaults.Store.ConflictRetries
	}
	// An unset notifier backend picks telegram once credentials exist.
	if cfg.Notifier.Backend == "" {
		cfg.Notifier.Backend = NotifierBackendLog
		if cfg.Notifier.Telegram.Token != "" && cfg.Notifier.Telegram.ChatID != "" {
			cfg.Notifier.Backend = NotifierBackendTelegram
		}
	}
	if cfg.Notifier.TimeoutSeconds <= 0 {
		cfg.Notifier.TimeoutSeconds = defaults.Notifier.TimeoutSeconds
	}
	for i, name := range cfg.Entities {
		cfg.Entities[i] = strings.TrimSpace(name)
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	if len(c.Entities) == 0 {
		return errors.New("configuration must define at least one entity")
	}
	seen := make(map[string]struct{}, len(c.Entities))
	for i, name := range c.Entities {
		if name == "" {
			return fmt.Errorf("entity %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("entity %s is listed twice", name)
		}
		seen[name] = struct{}{}
	}
	if c.Sweep.ThresholdSeconds <= c.Sweep.IntervalSeconds {
		return fmt.Errorf("sweep threshold (%ds) must exceed the sweep interval (%ds)",
			c.Sweep.ThresholdSeconds, c.Sweep.IntervalSeconds)
	}
	switch c.Store.Backend {
	case StoreBackendFile, StoreBackendDynamoDB:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Notifier.Backend {
	case NotifierBackendLog:
	case NotifierBackendTelegram:
		if c.Notifier.Telegram.Token == "" || c.Notifier.Telegram.ChatID == "" {
			return errors.New("telegram notifier requires token and chat_id")
		}
	default:
		return fmt.Errorf("unknown notifier backend %q", c.Notifier.Backend)
	}
	return nil
}
