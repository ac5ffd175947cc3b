package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type appConfig struct {
	Port int

	AccessSecret       string
	RefreshSecret      string
	VerificationSecret string

	DatabaseURL string
	RedisURL    string
	RabbitMQURL string

	FrontendURL  string
	CookieDomain string
	CookieSecure bool
}

// loadConfig reads the environment, loading .env first in dev. Secrets are
// not validated here; the engine's config validation rejects missing or
// short secrets where they are actually needed.
func loadConfig() appConfig {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	cfg := appConfig{
		Port:               getEnvInt("PORT", 8080),
		AccessSecret:       os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshSecret:      os.Getenv("REFRESH_TOKEN_SECRET"),
		VerificationSecret: os.Getenv("VERIFICATION_TOKEN_SECRET"),
		DatabaseURL:        getEnv("DATABASE_URL", "postgres://localhost:5432/flashauth?sslmode=disable"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		CookieDomain:       os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
