// Package config loads application settings from environment variables,
// collecting every problem before failing so a misconfigured deployment
// reports all missing values at once.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type DBConfig struct {
	// Host selects the backend: when set the app connects to PostgreSQL,
	// otherwise it falls back to a local SQLite file at Path.
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Path     string
}

type Config struct {
	DB   DBConfig
	Port string
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]string) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("invalid value for %s: expected integer, got %q", key, v))
		return fallback
	}
	return n
}

func Load() (*Config, error) {
	var errs []string

	cfg := &Config{
		DB: DBConfig{
			Host:     getEnv("PHOTOLOG_DB_HOST", ""),
			Port:     getEnvInt("PHOTOLOG_DB_PORT", 5432, &errs),
			User:     getEnv("PHOTOLOG_DB_USER", "postgres"),
			Password: getEnv("PHOTOLOG_DB_PASSWORD", ""),
			Name:     getEnv("PHOTOLOG_DB_NAME", "photolog"),
			Path:     getEnv("PHOTOLOG_DB_PATH", "photolog.db"),
		},
		Port: getEnv("PORT", "8080"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return cfg, nil
}
