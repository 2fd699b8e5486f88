package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Env holds process settings read from the environment (and an optional .env file).
type Env struct {
	Addr       string
	ConfigPath string
	Tenants    []string
	RedisURL   string
	LogLevel   string
	LogFormat  string
}

// LoadEnv reads SYNC_ADDR, SYNC_CONFIG, SYNC_TENANTS, REDIS_URL, LOG_LEVEL
// and LOG_FORMAT, filling defaults for anything unset.
func LoadEnv() Env {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	env := Env{
		Addr:       getenv("SYNC_ADDR", ":8080"),
		ConfigPath: getenv("SYNC_CONFIG", "configs/sync.yaml"),
		RedisURL:   os.Getenv("REDIS_URL"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "text"),
	}
	env.Tenants = SplitList(getenv("SYNC_TENANTS", "default"))
	return env
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
