// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ServiceName    string        `yaml:"service_name"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded schema on startup
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // HS256 secret shared with the session issuer
	Issuer    string `yaml:"issuer"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type RedirectTargets struct {
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
}

// CheckoutConfig holds hosted-checkout settings. Development and production
// clients return to different places after checkout.
type CheckoutConfig struct {
	Environment string          `yaml:"environment"` // development | production
	ProductName string          `yaml:"product_name"`
	Development RedirectTargets `yaml:"development"`
	Production  RedirectTargets `yaml:"production"`
}

type PaymentConfig struct {
	DefaultCurrency string         `yaml:"default_currency"`
	Stripe          StripeConfig   `yaml:"stripe"`
	Checkout        CheckoutConfig `yaml:"checkout"`
}

type SubscriptionConfig struct {
	ValidityDays int `yaml:"validity_days"`
}

type ReconcilerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
	// AbandonAfter is how long a payment may stay pending at the processor
	// before it is expired there and cancelled locally.
	AbandonAfter time.Duration `yaml:"abandon_after"`
}

type RateLimitConfig struct {
	InitiationsPerWindow int           `yaml:"initiations_per_window"`
	Window               time.Duration `yaml:"window"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Reconciler   ReconcilerConfig   `yaml:"reconciler"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from
// the environment, after an optional .env next to the working directory is loaded.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(b))))
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates required settings.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Server.ServiceName == "" {
		c.Server.ServiceName = "jobboard-premium"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	c.Payment.DefaultCurrency = strings.ToLower(strings.TrimSpace(c.Payment.DefaultCurrency))
	if c.Payment.DefaultCurrency == "" {
		c.Payment.DefaultCurrency = "usd"
	}
	c.Payment.Checkout.Environment = strings.ToLower(strings.TrimSpace(c.Payment.Checkout.Environment))
	if c.Payment.Checkout.Environment == "" {
		c.Payment.Checkout.Environment = EnvProduction
	}
	if c.Payment.Checkout.ProductName == "" {
		c.Payment.Checkout.ProductName = "Premium membership"
	}

	if c.Subscription.ValidityDays <= 0 {
		c.Subscription.ValidityDays = 365
	}

	if c.Reconciler.Interval <= 0 {
		c.Reconciler.Interval = time.Minute
	}
	if c.Reconciler.StaleAfter <= 0 {
		c.Reconciler.StaleAfter = 10 * time.Minute
	}
	if c.Reconciler.BatchSize <= 0 {
		c.Reconciler.BatchSize = 200
	}
	if c.Reconciler.AbandonAfter <= 0 {
		c.Reconciler.AbandonAfter = 72 * time.Hour
	}

	if c.RateLimit.InitiationsPerWindow <= 0 {
		c.RateLimit.InitiationsPerWindow = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
}

// Minimal validation
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Payment.Stripe.SecretKey == "" {
		return errors.New("payment.stripe.secret_key is required")
	}
	if c.Payment.Stripe.WebhookSecret == "" {
		return errors.New("payment.stripe.webhook_secret is required")
	}
	for env, t := range map[string]RedirectTargets{
		EnvDevelopment: c.Payment.Checkout.Development,
		EnvProduction:  c.Payment.Checkout.Production,
	} {
		if t.SuccessURL == "" || t.CancelURL == "" {
			return fmt.Errorf("payment.checkout.%s success_url and cancel_url are required", env)
		}
	}
	return nil
}

// Redirects returns the success/cancel targets for env. Anything other than
// "development" gets the production targets.
func (c CheckoutConfig) Redirects(env string) RedirectTargets {
	if strings.EqualFold(strings.TrimSpace(env), EnvDevelopment) {
		return c.Development
	}
	return c.Production
}

// ValidityWindow is the premium validity window as a duration.
func (s SubscriptionConfig) ValidityWindow() time.Duration {
	return time.Duration(s.ValidityDays) * 24 * time.Hour
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
