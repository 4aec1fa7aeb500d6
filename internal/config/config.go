package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	HTTP               HTTPConfig
	Cart               CartConfig
	Events             EventsConfig
	Obs                ObsConfig
}

// HTTPConfig bounds what one client may send. RateLimit is a formatted rate
// such as "120-M"; empty disables limiting.
type HTTPConfig struct {
	MaxBodyBytes    int64 `validate:"gte=0"`
	RateLimit       string
	ShutdownTimeout time.Duration `validate:"gte=0"`
}

// CartConfig carries the pricing and persistence defaults of every cart.
type CartConfig struct {
	TaxRate              float64       `validate:"gte=0"`
	DiscountValue        float64       `validate:"gte=0"`
	DiscountType         string        `validate:"oneof=currency percent monetary percentage fixed"`
	Decimals             int           `validate:"gte=0,lte=10"`
	DecimalPoint         string        `validate:"required"`
	ThousandsSeparator   string
	Currency             string
	Table                string        `validate:"required"`
	Connection           string        `validate:"oneof=pgx gorm memory"`
	DestroyOnLogout      bool
	TaxOnDiscountedPrice bool
	SessionTTL           time.Duration `validate:"gte=0"`
	LockTTL              time.Duration `validate:"gte=0"`
	UseLock              bool
	AutoMigrate          bool
}

// EventsConfig selects where cart notifications go. Empty targets are skipped.
type EventsConfig struct {
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`

	// Breaker settings guard each notifier independently.
	BreakerMinRequests  int           `validate:"gte=0"`
	BreakerFailureRatio float64       `validate:"gte=0,lte=1"`
	BreakerOpenFor      time.Duration `validate:"gte=0"`
	PublishAttempts     int           `validate:"gte=0"`
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat        string `validate:"oneof=json console text"`
	LogLevel         string
	MetricsNamespace string
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64 `validate:"gte=0,lte=1"`
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		HTTP: HTTPConfig{
			MaxBodyBytes:    int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
			RateLimit:       strings.TrimSpace(k.String("HTTP_RATE_LIMIT")),
			ShutdownTimeout: parseDuration(k.String("HTTP_SHUTDOWN_TIMEOUT"), "15s"),
		},
		Cart: CartConfig{
			TaxRate:              parseFloat(k.String("CART_TAX"), 0),
			DiscountValue:        parseFloat(k.String("CART_DISCOUNT_VALUE"), 0),
			DiscountType:         strings.ToLower(valueOrDefault(k.String("CART_DISCOUNT_TYPE"), "percent")),
			Decimals:             parseInt(k.String("CART_FORMAT_DECIMALS"), 2),
			DecimalPoint:         rawOrDefault(k, "CART_FORMAT_DECIMAL_POINT", "."),
			ThousandsSeparator:   rawOrDefault(k, "CART_FORMAT_THOUSAND_SEPARATOR", ","),
			Currency:             k.String("CART_FORMAT_CURRENCY"),
			Table:                valueOrDefault(k.String("CART_DATABASE_TABLE"), "shoppingcart"),
			Connection:           strings.ToLower(valueOrDefault(k.String("CART_DATABASE_CONNECTION"), "pgx")),
			DestroyOnLogout:      parseBool(k.String("CART_DESTROY_ON_LOGOUT")),
			TaxOnDiscountedPrice: parseBool(k.String("CART_TAX_ON_DISCOUNTED_PRICE")),
			SessionTTL:           parseDuration(k.String("CART_SESSION_TTL"), "168h"),
			LockTTL:              parseDuration(k.String("CART_LOCK_TTL"), "5s"),
			UseLock:              parseBool(k.String("CART_USE_LOCK")),
			AutoMigrate:          parseBool(k.String("CART_AUTO_MIGRATE")),
		},
		Events: EventsConfig{
			RedisChannel: strings.TrimSpace(k.String("CART_EVENTS_CHANNEL")),
			KafkaBrokers: splitAndTrim(k.String("KAFKA_BROKERS")),
			KafkaTopic:   strings.TrimSpace(k.String("KAFKA_TOPIC")),

			BreakerMinRequests:  parseInt(k.String("EVENTS_BREAKER_MIN_REQUESTS"), 5),
			BreakerFailureRatio: parseFloat(k.String("EVENTS_BREAKER_FAILURE_RATIO"), 0.5),
			BreakerOpenFor:      parseDuration(k.String("EVENTS_BREAKER_OPEN_FOR"), "30s"),
			PublishAttempts:     parseInt(k.String("EVENTS_PUBLISH_ATTEMPTS"), 2),
		},
		Obs: ObsConfig{
			LogFormat:        strings.ToLower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "cartkit"),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING")),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACE_SAMPLING_RATIO"), 1),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Cart.Connection != "memory" && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required unless CART_DATABASE_CONNECTION=memory")
	}
	if cfg.Cart.DiscountType == "percent" || cfg.Cart.DiscountType == "percentage" {
		if cfg.Cart.DiscountValue > 100 {
			return nil, errors.New("CART_DISCOUNT_VALUE must not exceed 100 for percent discounts")
		}
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// rawOrDefault keeps whitespace so a blank thousands separator can be configured.
func rawOrDefault(k *koanf.Koanf, key, fallback string) string {
	if !k.Exists(key) {
		return fallback
	}
	return k.String(key)
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
