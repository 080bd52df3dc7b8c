package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=jewelshop port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort         string `yaml:"http_port"`
	DBDriver         string `yaml:"db_driver"` // postgres | sqlite
	DatabaseDSN      string `yaml:"database_dsn"`
	JWTSecret        string `yaml:"jwt_secret"`
	CORSOrigins      string `yaml:"cors_allowed_origins"`
	LedgerMaxRetries int    `yaml:"ledger_max_retries"`
	NumberPolicy     string `yaml:"number_policy"` // lenient | strict
	LoginRateLimit   int    `yaml:"login_rate_limit"` // login attempts per minute per IP
	LogLevel         string `yaml:"log_level"`
	Timezone         string `yaml:"shop_timezone"`

	Location *time.Location `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:         "8080",
		DBDriver:         "postgres",
		DatabaseDSN:      defaultDSN,
		CORSOrigins:      defaultCORSOrigins,
		LedgerMaxRetries: 5,
		NumberPolicy:     "lenient",
		LoginRateLimit:   10,
		LogLevel:         "info",
		Timezone:         "Local",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.NumberPolicy = getEnv("NUMBER_POLICY", cfg.NumberPolicy)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = getEnv("SHOP_TIMEZONE", cfg.Timezone)

	var err error
	if cfg.LedgerMaxRetries, err = getEnvInt("LEDGER_MAX_RETRIES", cfg.LedgerMaxRetries); err != nil {
		return nil, err
	}
	if cfg.LoginRateLimit, err = getEnvInt("LOGIN_RATE_LIMIT", cfg.LoginRateLimit); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == defaultDSN {
		slog.Warn("DATABASE_DSN is using the default value, set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		slog.Warn("CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production")
	}

	return cfg, nil
}

// Validate checks the settings and resolves the shop location.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q (postgres|sqlite)", c.DBDriver)
	}

	c.NumberPolicy = strings.ToLower(strings.TrimSpace(c.NumberPolicy))
	if c.NumberPolicy != "lenient" && c.NumberPolicy != "strict" {
		return fmt.Errorf("unsupported NUMBER_POLICY %q (lenient|strict)", c.NumberPolicy)
	}

	if c.LedgerMaxRetries < 1 {
		return errors.New("LEDGER_MAX_RETRIES must be at least 1")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid SHOP_TIMEZONE: %w", err)
	}
	c.Location = loc

	return nil
}

// SlogLevel maps LogLevel onto a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
