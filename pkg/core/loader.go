package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvAPIKey     = "BITTEAM_API_KEY"
	EnvSecretKey  = "BITTEAM_SECRET_KEY"
	EnvBaseURL    = "BITTEAM_BASE_URL"
	EnvHistoryURL = "BITTEAM_HISTORY_URL"
	EnvTimeout    = "BITTEAM_TIMEOUT"
	EnvLogLevel   = "BITTEAM_LOG_LEVEL"
)

// LoadConfig builds a Config for exchange from defaults, an optional TOML file and
// BITTEAM_* environment variables, in that order of precedence. A .env file in the
// working directory is loaded first when present; a malformed one is an error.
// Durations in TOML are Go duration strings ("10s"). The returned config is validated.
func LoadConfig(exchange, path string) (*Config, error) {
	cfg := DefaultConfig(exchange)

	if path != "" {
		var file fileConfig
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := file.apply(cfg); err != nil {
			return nil, fmt.Errorf("apply config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config with TOML-friendly field types.
type fileConfig struct {
	BaseURL           string `toml:"base_url"`
	HistoryURL        string `toml:"history_url"`
	Timeout           string `toml:"timeout"`
	MaxRetries        *int   `toml:"max_retries"`
	RateLimitRequests *int   `toml:"rate_limit_requests"`
	RateLimitPeriod   string `toml:"rate_limit_period"`
	LogLevel          string `toml:"log_level"`
	Credentials       struct {
		APIKey    string `toml:"api_key"`
		SecretKey string `toml:"secret_key"`
	} `toml:"credentials"`
}

func (f *fileConfig) apply(cfg *Config) error {
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if f.HistoryURL != "" {
		cfg.HistoryURL = f.HistoryURL
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if f.MaxRetries != nil {
		cfg.MaxRetries = *f.MaxRetries
	}
	if f.RateLimitRequests != nil {
		cfg.RateLimitRequests = *f.RateLimitRequests
	}
	if f.RateLimitPeriod != "" {
		d, err := time.ParseDuration(f.RateLimitPeriod)
		if err != nil {
			return fmt.Errorf("rate_limit_period: %w", err)
		}
		cfg.RateLimitPeriod = d
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Credentials.APIKey != "" || f.Credentials.SecretKey != "" {
		cfg.Credentials = &Credentials{
			APIKey:    f.Credentials.APIKey,
			SecretKey: f.Credentials.SecretKey,
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	key, secret := os.Getenv(EnvAPIKey), os.Getenv(EnvSecretKey)
	if key != "" || secret != "" {
		creds := &Credentials{}
		if cfg.Credentials != nil {
			*creds = *cfg.Credentials
		}
		if key != "" {
			creds.APIKey = key
		}
		if secret != "" {
			creds.SecretKey = secret
		}
		cfg.Credentials = creds
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvHistoryURL); v != "" {
		cfg.HistoryURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if ms, convErr := strconv.Atoi(v); convErr == nil {
				d = time.Duration(ms) * time.Millisecond
			} else {
				return fmt.Errorf("%s: %w", EnvTimeout, err)
			}
		}
		cfg.Timeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}
