package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment gateway.
	StripeSecretKey       string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency       string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentTimeoutSeconds int    `mapstructure:"PAYMENT_TIMEOUT_SECONDS"`

	// Refund reconciliation sweep.
	RefundReconcileSchedule     string `mapstructure:"REFUND_RECONCILE_SCHEDULE"`
	RefundReconcileAfterMinutes int    `mapstructure:"REFUND_RECONCILE_AFTER_MINUTES"`

	// Side effects: "queue" enqueues onto asynq, "inline" runs them in-process.
	SideEffectsMode string `mapstructure:"SIDE_EFFECTS_MODE"`

	// Email delivery.
	EmailAPIKey     string `mapstructure:"EMAIL_API_KEY"`
	EmailSender     string `mapstructure:"EMAIL_SENDER"`
	EmailSenderName string `mapstructure:"EMAIL_SENDER_NAME"`

	// Push notifications. Empty disables FCM.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
}

var AppConfig Config

var (
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrMissingStripeKey     = errors.New("STRIPE_SECRET_KEY is required")
	ErrMissingWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
	ErrInvalidEffectsMode   = errors.New("SIDE_EFFECTS_MODE must be queue or inline")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "coursebook")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_QUEUE_DB", 1)
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("PAYMENT_TIMEOUT_SECONDS", 10)
	v.SetDefault("REFUND_RECONCILE_SCHEDULE", "@every 5m")
	v.SetDefault("REFUND_RECONCILE_AFTER_MINUTES", 10)
	v.SetDefault("SIDE_EFFECTS_MODE", "queue")
	v.SetDefault("EMAIL_API_KEY", "")
	v.SetDefault("EMAIL_SENDER", "")
	v.SetDefault("EMAIL_SENDER_NAME", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
}

// Load reads config.yaml (from "." or "./config") and the environment into a Config.
func Load(v *viper.Viper) (Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	// Automatically use environment variables where available.
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig populates AppConfig and exits when a required secret is missing.
func LoadConfig() Config {
	cfg, err := Load(viper.GetViper())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	AppConfig = cfg
	return cfg
}

// Validate checks the settings authentication and the online payment and
// webhook paths cannot run without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.StripeSecretKey == "" {
		return ErrMissingStripeKey
	}
	if c.StripeWebhookSecret == "" {
		return ErrMissingWebhookSecret
	}
	if c.SideEffectsMode != "queue" && c.SideEffectsMode != "inline" {
		return ErrInvalidEffectsMode
	}
	return nil
}

// PaymentTimeout bounds every outward call to the payment gateway.
func (c Config) PaymentTimeout() time.Duration {
	if c.PaymentTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PaymentTimeoutSeconds) * time.Second
}

// RefundReconcileAfter is how old a refund claim must be before the sweep retries it.
func (c Config) RefundReconcileAfter() time.Duration {
	if c.RefundReconcileAfterMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.RefundReconcileAfterMinutes) * time.Minute
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
