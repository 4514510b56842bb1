package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	ServerPort    string
	AppURL        string
	SessionSecret string

	DB        DBConfig
	Stripe    StripeConfig
	Resend    ResendConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	WorkOS    WorkOSConfig
	Gusto     GustoConfig
	OTel      OTelConfig
	Seed      SeedConfig

	SchedulerEnabled bool
}

type DBConfig struct {
	DSN        string
	Migrations bool // golang-migrate SQL files instead of AutoMigrate
	Debug      bool
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceStarter  string
	PricePro      string
}

type ResendConfig struct {
	APIKey string
	From   string
}

// AIConfig targets any OpenAI-compatible chat completion endpoint.
// The default base URL is Gemini's compatibility layer.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type RateLimitConfig struct {
	RedisURL      string
	Requests      int
	WindowSeconds int
	ChatRequests  int
}

type WorkOSConfig struct {
	APIKey      string
	ClientID    string
	RedirectURI string
}

type GustoConfig struct {
	BaseURL string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

type SeedConfig struct {
	OwnerEmail    string
	OwnerPassword string
	OrgName       string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

func (c WorkOSConfig) Enabled() bool {
	return c.APIKey != "" && c.ClientID != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		AppURL:        strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DB: DBConfig{
			DSN:        os.Getenv("DB_DSN"),
			Migrations: getEnvBool("MIGRATIONS", false),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceStarter:  os.Getenv("STRIPE_PRICE_STARTER"),
			PricePro:      os.Getenv("STRIPE_PRICE_PRO"),
		},
		Resend: ResendConfig{
			APIKey: os.Getenv("RESEND_API_KEY"),
			From:   getEnv("EMAIL_FROM", "Bizportal <billing@bizportal.local>"),
		},
		AI: AIConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:   getEnv("AI_MODEL", "gemini-1.5-flash"),
		},
		RateLimit: RateLimitConfig{
			RedisURL:      os.Getenv("REDIS_URL"),
			Requests:      getEnvInt("RATE_LIMIT_REQUESTS", 120),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			ChatRequests:  getEnvInt("RATE_LIMIT_CHAT_REQUESTS", 20),
		},
		WorkOS: WorkOSConfig{
			APIKey:      os.Getenv("WORKOS_API_KEY"),
			ClientID:    os.Getenv("WORKOS_CLIENT_ID"),
			RedirectURI: getEnv("WORKOS_REDIRECT_URI", "http://localhost:8080/auth/oauth/callback"),
		},
		Gusto: GustoConfig{
			BaseURL: getEnv("GUSTO_BASE_URL", "https://api.gusto.com"),
		},
		OTel: OTelConfig{
			Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Headers:        os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "bizportal"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Seed: SeedConfig{
			OwnerEmail:    getEnv("ADMIN_EMAIL", "owner@bizportal.local"),
			OwnerPassword: getEnv("ADMIN_PASSWORD", "Owner123!"),
			OrgName:       getEnv("ADMIN_ORG_NAME", "Demo Studio"),
		},
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 60
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}
