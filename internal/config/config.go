package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebhookServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BotLink is the "return to bot" target on the redirect pages.
	BotLink string `yaml:"bot_link"`
}

type AdminConfig struct {
	// APIKey guards the operator API; empty leaves it unmounted.
	APIKey string `yaml:"api_key"`
}

type Best2PayConfig struct {
	Sector     string        `yaml:"sector"`
	Password   string        `yaml:"password"`
	BaseURL    string        `yaml:"base_url"` // https://pay.best2pay.net/webapi or the test stand
	SuccessURL string        `yaml:"success_url"`
	FailURL    string        `yaml:"fail_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type NOWPaymentsConfig struct {
	APIKey      string        `yaml:"api_key"`
	IPNSecret   string        `yaml:"ipn_secret"`
	BaseURL     string        `yaml:"base_url"` // https://api.nowpayments.io/v1
	CallbackURL string        `yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type PanelConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type PaymentsConfig struct {
	// RegisteredTTL is how long a registered order may wait for a terminal
	// outcome before the expiry worker moves it to expired.
	RegisteredTTL time.Duration `yaml:"registered_ttl"`
	// SweepInterval is how often the expiry worker scans.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Log         LogConfig           `yaml:"log"`
	Database    DatabaseConfig      `yaml:"database"`
	Redis       RedisConfig         `yaml:"redis"`
	Webhook     WebhookServerConfig `yaml:"webhook"`
	Admin       AdminConfig         `yaml:"admin"`
	Best2Pay    Best2PayConfig      `yaml:"best2pay"`
	NOWPayments NOWPaymentsConfig   `yaml:"nowpayments"`
	Panel       PanelConfig         `yaml:"panel"`
	Telegram    TelegramConfig      `yaml:"telegram"`
	Payments    PaymentsConfig      `yaml:"payments"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Webhook.Port == 0 {
		cfg.Webhook.Port = 8080
	}
	if cfg.Best2Pay.BaseURL == "" {
		cfg.Best2Pay.BaseURL = "https://pay.best2pay.net/webapi"
	}
	if cfg.Best2Pay.Timeout <= 0 {
		cfg.Best2Pay.Timeout = 30 * time.Second
	}
	if cfg.NOWPayments.BaseURL == "" {
		cfg.NOWPayments.BaseURL = "https://api.nowpayments.io/v1"
	}
	if cfg.NOWPayments.Timeout <= 0 {
		cfg.NOWPayments.Timeout = 30 * time.Second
	}
	if cfg.Panel.Timeout <= 0 {
		cfg.Panel.Timeout = 30 * time.Second
	}
	if cfg.Payments.RegisteredTTL <= 0 {
		cfg.Payments.RegisteredTTL = 24 * time.Hour
	}
	if cfg.Payments.SweepInterval <= 0 {
		cfg.Payments.SweepInterval = 5 * time.Minute
	}
	cfg.Runtime.Dev = dev

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required")
	}
	if c.Best2Pay.Sector != "" && c.Best2Pay.Password == "" {
		return fmt.Errorf("config: best2pay.password is required when a sector is set")
	}
	if c.NOWPayments.APIKey != "" && c.NOWPayments.IPNSecret == "" {
		return fmt.Errorf("config: nowpayments.ipn_secret is required when an api key is set")
	}
	return nil
}
