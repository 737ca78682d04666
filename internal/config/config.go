package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Database    DatabaseConfig
	History     HistoryConfig
	Checks      CheckConfig
	JWTSecret   string
	Environment string
	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// HistoryConfig holds settings for the per-monitor history partitions
type HistoryConfig struct {
	DataDir       string
	RetentionDays int
}

// CheckConfig holds settings for downtime confirmation probes
type CheckConfig struct {
	ConfirmationDelay   int // seconds before the confirmation probe runs
	ConfirmationTimeout int // seconds for the confirmation probe itself
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("ENVIRONMENT", "production")

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		History: HistoryConfig{
			DataDir:       getEnv("HISTORY_DATA_DIR", "./data/history"),
			RetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 30),
		},
		Checks: CheckConfig{
			ConfirmationDelay:   getEnvInt("CONFIRMATION_DELAY", 30),
			ConfirmationTimeout: getEnvInt("CONFIRMATION_TIMEOUT", 5),
		},
		JWTSecret:   loadJWTSecret(env),
		Environment: env,
		CORSOrigins: loadCORSOrigins(env),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "vigil")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "vigil")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.History.DataDir == "" {
		return fmt.Errorf("HISTORY_DATA_DIR must not be empty")
	}

	if c.History.RetentionDays < 1 || c.History.RetentionDays > 365 {
		return fmt.Errorf("HISTORY_RETENTION_DAYS must be between 1 and 365, got %d", c.History.RetentionDays)
	}

	if c.Checks.ConfirmationDelay < 1 || c.Checks.ConfirmationDelay > 3600 {
		return fmt.Errorf("CONFIRMATION_DELAY must be between 1 and 3600 seconds, got %d", c.Checks.ConfirmationDelay)
	}

	if c.Checks.ConfirmationTimeout < 1 || c.Checks.ConfirmationTimeout > 60 {
		return fmt.Errorf("CONFIRMATION_TIMEOUT must be between 1 and 60 seconds, got %d", c.Checks.ConfirmationTimeout)
	}

	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	return nil
}

func loadJWTSecret(env string) string {
	secret := os.Getenv("JWT_SECRET")

	if secret == "" {
		if env == "production" {
			log.Fatal("FATAL: JWT_SECRET environment variable is required in production")
		}

		log.Println("WARNING: JWT_SECRET not set. Generating random secret for development.")
		log.Println("WARNING: This secret will change on restart. Set JWT_SECRET in production!")
		return generateRandomSecret()
	}

	if len(secret) < 16 {
		log.Fatal("FATAL: JWT_SECRET must be at least 16 characters long")
	}

	return secret
}

func loadCORSOrigins(env string) []string {
	if appURL := getAppURL(); appURL != "" {
		return []string{appURL}
	}

	if env == "development" {
		return []string{"http://localhost:3000", "http://localhost:8080"}
	}

	log.Println("WARNING: APP_URL not set. Using default localhost origins.")
	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate random secret:", err)
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
