package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	MongoURI      string
	DBName        string
	JWTSecret     string
	Port          string
	Store         string
	AdminEmail    string
	AdminPassword string
	TokenTTL      time.Duration
	JoinDebounce  time.Duration
	ResendAPIKey  string
	FromEmail     string
}

// Load reads envFile (a missing file is fine, env vars may be set directly)
// and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	joinDebounce, err := time.ParseDuration(getEnv("JOIN_DEBOUNCE", "50ms"))
	if err != nil {
		return nil, fmt.Errorf("JOIN_DEBOUNCE: %w", err)
	}

	return &Config{
		MongoURI:      getEnv("MONGODB_URI", ""),
		DBName:        getEnv("DB_NAME", "feedback"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		Port:          getEnv("PORT", "8080"),
		Store:         getEnv("STORE", StoreMongo),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin"),
		TokenTTL:      tokenTTL,
		JoinDebounce:  joinDebounce,
		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		FromEmail:     getEnv("FROM_EMAIL", "feedback@example.com"),
	}, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store {
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
