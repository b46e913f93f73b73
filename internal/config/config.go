package config

import (
	"log"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/strategize/legacy360/internal/utils"
)

// Config carries everything the server needs at startup. Values come
// from the environment, with a .env file loaded first when present.
type Config struct {
	Addr      string
	DBPath    string
	JWTSecret string
	BaseURL   string
	InviteTTL time.Duration
}

// Load reads the configuration from the environment. A missing .env file
// is not an error; explicit environment variables always win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded .env")
	}
	return &Config{
		Addr:      utils.SafeEnv("LEGACY360_ADDR", ":8080"),
		DBPath:    utils.SafeEnv("LEGACY360_DB_PATH", "legacy360.db"),
		JWTSecret: utils.SafeEnv("LEGACY360_JWT_SECRET", ""),
		BaseURL:   utils.SafeEnv("LEGACY360_BASE_URL", "http://localhost:8080"),
		InviteTTL: durationDays("LEGACY360_INVITE_TTL_DAYS", 14),
	}
}

func durationDays(key string, fallback int) time.Duration {
	raw := utils.SafeEnv(key, "")
	if raw == "" {
		return time.Duration(fallback) * 24 * time.Hour
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d days", key, raw, fallback)
		return time.Duration(fallback) * 24 * time.Hour
	}
	return time.Duration(n) * 24 * time.Hour
}
