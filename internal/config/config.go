// File: internal/config/config.go
package config

import (
	"errors"
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

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Provider     string        `yaml:"provider"` // razorpay | noop
	KeyID        string        `yaml:"key_id"`
	KeySecret    string        `yaml:"key_secret"`
	Currency     string        `yaml:"currency"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`       // deadline for one gateway call
	OrphanWindow time.Duration `yaml:"orphan_window"` // pending rows younger than this are never swept
	OrderLimit   int           `yaml:"order_limit"`   // create-order calls per user per window
	OrderWindow  time.Duration `yaml:"order_window"`
}

type EngineConfig struct {
	// LenientFallback lets a payment reuse the user's newest active
	// subscription when no track-specific match exists.
	LenientFallback *bool `yaml:"lenient_fallback"`
}

func (e EngineConfig) Lenient() bool {
	return e.LenientFallback == nil || *e.LenientFallback
}

type CatalogConfig struct {
	// Path is a YAML file of track -> ordered module ids. When empty the
	// modules table is used, or the built-in demo catalog in dev mode.
	Path string `yaml:"path"`
}

type SchedulerConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

type TelegramConfig struct {
	Token    string  `yaml:"token"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

type WorkerConfig struct {
	AuditWorkers int `yaml:"audit_workers"`
	AuditQueue   int `yaml:"audit_queue"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Engine    EngineConfig    `yaml:"engine"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates.
// In dev mode the database, redis and gateway credentials are optional
// because the service falls back to in-memory stores and the noop gateway.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "razorpay"
		if cfg.Runtime.Dev {
			cfg.Payment.Provider = "noop"
		}
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.BaseURL == "" {
		cfg.Payment.BaseURL = "https://api.razorpay.com"
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Payment.OrphanWindow <= 0 {
		cfg.Payment.OrphanWindow = 15 * time.Minute
	}
	if cfg.Payment.OrderLimit <= 0 {
		cfg.Payment.OrderLimit = 10
	}
	if cfg.Payment.OrderWindow <= 0 {
		cfg.Payment.OrderWindow = time.Minute
	}

	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 10 * time.Minute
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = time.Hour
	}
	if cfg.Worker.AuditWorkers <= 0 {
		cfg.Worker.AuditWorkers = 2
	}
	if cfg.Worker.AuditQueue <= 0 {
		cfg.Worker.AuditQueue = 256
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Payment.Provider {
	case "razorpay":
		if cfg.Payment.KeyID == "" || cfg.Payment.KeySecret == "" {
			return errors.New("payment.key_id and payment.key_secret are required for razorpay")
		}
	case "noop":
		if cfg.Payment.KeySecret == "" {
			cfg.Payment.KeySecret = "dev-secret"
		}
	default:
		return fmt.Errorf("unknown payment.provider %q", cfg.Payment.Provider)
	}
	if cfg.Runtime.Dev {
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
