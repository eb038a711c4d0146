package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	SandboxBaseURL    = "https://sandbox.wompi.co/v1"
	ProductionBaseURL = "https://production.wompi.co/v1"
)

type Config struct {
	Port           string
	DatabaseURL    string
	DatabaseDriver string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string

	// Environment selects the sandbox or production provider.
	Environment         string
	ProviderBaseURL     string
	PublicKeySandbox    string
	PublicKeyProduction string
	IntegritySecret     string
	WebhookSecret       string
	ProviderTimeout     time.Duration

	ResendAPIKey string
	NotifyFrom   string
	NotifyTo     []string

	Currency        string
	ReconcilePolicy string
	WebhookDedupTTL time.Duration
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment are never overridden by the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		NatsURL:        os.Getenv("NATS_URL"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),

		Environment:         strings.ToLower(getEnv("WOMPI_ENVIRONMENT", EnvSandbox)),
		ProviderBaseURL:     os.Getenv("WOMPI_BASE_URL"),
		PublicKeySandbox:    os.Getenv("WOMPI_PUBLIC_KEY_SANDBOX"),
		PublicKeyProduction: os.Getenv("WOMPI_PUBLIC_KEY_PROD"),
		IntegritySecret:     os.Getenv("WOMPI_INTEGRITY_SECRET"),
		WebhookSecret:       os.Getenv("WOMPI_WEBHOOK_SECRET"),
		ProviderTimeout:     getDuration("WOMPI_TIMEOUT", 10*time.Second),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		NotifyFrom:   getEnv("NOTIFY_FROM", "Navegantes <notificaciones@navegantes.co>"),
		NotifyTo:     splitList(os.Getenv("NOTIFY_TO")),

		Currency:        getEnv("CURRENCY", "COP"),
		ReconcilePolicy: getEnv("RECONCILE_POLICY", "approved-sticky"),
		WebhookDedupTTL: getDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
	}
}

// Validate checks values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("unknown WOMPI_ENVIRONMENT %q", c.Environment)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY must not be empty")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ProviderURL returns the provider API base URL for the configured environment.
func (c *Config) ProviderURL() string {
	if c.ProviderBaseURL != "" {
		return strings.TrimRight(c.ProviderBaseURL, "/")
	}
	if c.IsProduction() {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (c *Config) PublicKey() string {
	if c.IsProduction() {
		return c.PublicKeyProduction
	}
	return c.PublicKeySandbox
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
