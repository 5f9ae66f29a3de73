package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisURL string

	ConnCountTTL time.Duration
	InterestTTL  time.Duration
	InviteSalt   string

	CORSOrigins []string
}

// Load reads .env when present and falls back to the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       getEnv("DB_NAME", "linkloop"),
		DBPort:       getEnv("DB_PORT", "5432"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ConnCountTTL: getDurationSec("CONN_COUNT_TTL_SEC", 300),
		InterestTTL:  getDurationSec("INTEREST_TTL_SEC", 600),
		InviteSalt:   os.Getenv("INVITE_CODE_SALT"),
		CORSOrigins:  []string{getEnv("CORS_ORIGIN", "*")},
	}
	if cfg.InviteSalt == "" {
		return nil, fmt.Errorf("INVITE_CODE_SALT is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationSec(key string, fallback int) time.Duration {
	if val := os.Getenv(key); val != "" {
		if sec, err := strconv.Atoi(val); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return time.Duration(fallback) * time.Second
}
