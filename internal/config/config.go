// Package config loads dashboard settings from defaults, an optional TOML
// file, and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full process configuration.
type Config struct {
	Addr        string `toml:"addr"`
	Version     string `toml:"version"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`

	DatabaseURL string `toml:"database_url"`
	RedisAddr   string `toml:"redis_addr"`

	RequireAuth bool   `toml:"require_auth"`
	SigningKey  string `toml:"jwt_signing_key"`

	Kubeconfig  string        `toml:"kubeconfig"`
	KubeTimeout time.Duration `toml:"kube_timeout"`

	AuthFailureThreshold int           `toml:"auth_failure_threshold"`
	AuthFailureWindow    time.Duration `toml:"auth_failure_window"`
	RequestsPerMinute    int           `toml:"requests_per_minute"`
	InviteTTL            time.Duration `toml:"invite_ttl"`
	AuditRetention       int           `toml:"audit_retention"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		Version:              "dev",
		Environment:          "development",
		LogLevel:             "info",
		KubeTimeout:          15 * time.Second,
		AuthFailureThreshold: 10,
		AuthFailureWindow:    15 * time.Minute,
		RequestsPerMinute:    600,
		InviteTTL:            7 * 24 * time.Hour,
		AuditRetention:       500,
	}
}

// Load builds the configuration. The TOML file named by LANGOP_CONFIG is
// applied over the defaults, then environment variables win.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("LANGOP_CONFIG")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LANGOP_ADDR", &cfg.Addr)
	str("LANGOP_VERSION", &cfg.Version)
	str("LANGOP_ENV", &cfg.Environment)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("JWT_SIGNING_KEY", &cfg.SigningKey)
	str("KUBECONFIG", &cfg.Kubeconfig)
	if v, ok := os.LookupEnv("LANGOP_REQUIRE_AUTH"); ok {
		cfg.RequireAuth = parseBool(v)
	}

	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	num := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	dur("LANGOP_KUBE_TIMEOUT", &cfg.KubeTimeout)
	dur("LANGOP_AUTH_FAILURE_WINDOW", &cfg.AuthFailureWindow)
	dur("LANGOP_INVITE_TTL", &cfg.InviteTTL)
	num("LANGOP_AUTH_FAILURE_THRESHOLD", &cfg.AuthFailureThreshold)
	num("LANGOP_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute)
	num("LANGOP_AUDIT_RETENTION", &cfg.AuditRetention)
	return errors.Join(errs...)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.RequireAuth && c.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required when authentication is enabled"))
	}
	if c.AuthFailureThreshold <= 0 {
		errs = append(errs, errors.New("auth_failure_threshold must be positive"))
	}
	if c.AuthFailureWindow <= 0 {
		errs = append(errs, errors.New("auth_failure_window must be positive"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("invite_ttl must be positive"))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}
