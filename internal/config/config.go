package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Database
	DatabaseDSN string

	// Auth (hosted auth provider issues HS256 JWTs)
	JWTSecret string

	// RapidAPI providers
	RapidAPIKey  string
	PrimaryHost  string
	FallbackHost string

	// Scrape defaults
	ProductQueries []string
	VideoQueries   []string
	ScrapeCountry  string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	// Stripe product ID -> plan name, e.g. "prod_abc:starter,prod_def:pro"
	StripePlanMap map[string]string

	// LLM gateway
	LLMGatewayURL string
	LLMAPIKey     string
	LLMModel      string

	// Azure Storage (product images)
	StorageAccount   string
	StorageContainer string

	// Alert emails
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	AlertEmail   string

	// Schedules
	RankingSnapshotSpec string
	ImageMigrationSpec  string
	ScrapeSpec          string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseDSN: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		RapidAPIKey:  getEnv("RAPIDAPI_KEY", ""),
		PrimaryHost:  getEnv("RAPIDAPI_PRIMARY_HOST", "tiktok-api23.p.rapidapi.com"),
		FallbackHost: getEnv("RAPIDAPI_FALLBACK_HOST", "tiktok-scraper7.p.rapidapi.com"),

		ProductQueries: getSliceEnv("PRODUCT_QUERIES", []string{
			"fashion haul TikTok Shop",
			"dress viral TikTok Shop",
			"outfit TikTok Shop trending",
			"sneakers TikTok Shop viral",
			"bag TikTok Shop viral",
			"makeup viral TikTok Shop",
			"skincare TikTok Shop trending",
			"gym clothes TikTok Shop",
			"kids toys TikTok Shop viral",
			"TikTok Shop best sellers",
			"viral product TikTok Shop",
			"TikTok made me buy it",
		}),
		VideoQueries: getSliceEnv("VIDEO_QUERIES", []string{
			"viral TikTok Shop review",
			"produto viral TikTok",
			"achados TikTok Shop",
			"TikTok made me buy it",
			"unboxing TikTok Shop",
		}),
		ScrapeCountry: getEnv("SCRAPE_COUNTRY", "BR"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePlanMap: getMapEnv("STRIPE_PLAN_MAP", map[string]string{
			"prod_TysnxyPY7dXqVK": "starter",
			"prod_TytgUGD2tNKYbs": "pro",
			"prod_TytgzeWLP67bjX": "business",
		}),

		LLMGatewayURL: getEnv("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "google/gemini-2.5-flash"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "product-images"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		AlertEmail:   getEnv("ALERT_EMAIL", ""),

		// Ranking snapshot daily at 03:00 UTC, image migration every 6
		// hours. Scheduled scraping is opt-in; empty disables it.
		RankingSnapshotSpec: getEnv("RANKING_SNAPSHOT_SPEC", "0 0 3 * * *"),
		ImageMigrationSpec:  getEnv("IMAGE_MIGRATION_SPEC", "0 30 */6 * * *"),
		ScrapeSpec:          getEnv("SCRAPE_SPEC", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RapidAPIKey == "" {
		return fmt.Errorf("RAPIDAPI_KEY is required")
	}

	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getMapEnv(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	if len(parsed) == 0 {
		return defaultValue
	}
	return parsed
}
