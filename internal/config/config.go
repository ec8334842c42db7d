package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AdminAddr  string `yaml:"admin_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	SessionTTLSec int `yaml:"session_ttl"`
	IDLength      int `yaml:"game_id_length"`
	IDAttempts    int `yaml:"game_id_attempts"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// with environment variables taking precedence.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":8080",
		AdminAddr:     ":9090",
		SessionTTLSec: 86400,
		IDLength:      4,
		IDAttempts:    3,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_ADDR")); v != "" {
		cfg.AdminAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_ID_LENGTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IDLength = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_ID_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IDAttempts = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}
