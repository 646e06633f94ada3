package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port int
	Env  string

	LogLevel string

	// Room policy
	MaxSeats        int
	LogTail         int
	EmptyRoomGrace  time.Duration
	IdleRoomTimeout time.Duration
	JanitorInterval time.Duration

	// Per-connection inbound limit
	RateLimitMax    int
	RateLimitWindow time.Duration

	AllowedOrigins []string

	// Empty disables the match archive.
	DatabaseURL string
}

func Default() Config {
	return Config{
		Port:            8080,
		Env:             "development",
		LogLevel:        "info",
		MaxSeats:        8,
		LogTail:         50,
		EmptyRoomGrace:  0,
		IdleRoomTimeout: 2 * time.Hour,
		JanitorInterval: 30 * time.Second,
		RateLimitMax:    20,
		RateLimitWindow: time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// Load reads the environment (and any .env file) on top of Default.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	intVar := func(key string, dst *int) {
		if raw, ok := lookup(key); ok && raw != "" {
			v, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = v
		}
	}
	durationVar := func(key string, dst *time.Duration) {
		if raw, ok := lookup(key); ok && raw != "" {
			v, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = v
		}
	}
	stringVar := func(key string, dst *string) {
		if raw, ok := lookup(key); ok && raw != "" {
			*dst = strings.TrimSpace(raw)
		}
	}

	intVar("PORT", &cfg.Port)
	stringVar("APP_ENV", &cfg.Env)
	stringVar("LOG_LEVEL", &cfg.LogLevel)
	intVar("MAX_SEATS", &cfg.MaxSeats)
	intVar("LOG_TAIL", &cfg.LogTail)
	durationVar("EMPTY_ROOM_GRACE", &cfg.EmptyRoomGrace)
	durationVar("IDLE_ROOM_TIMEOUT", &cfg.IdleRoomTimeout)
	durationVar("JANITOR_INTERVAL", &cfg.JanitorInterval)
	intVar("RATE_LIMIT_MAX", &cfg.RateLimitMax)
	durationVar("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow)
	stringVar("DATABASE_URL", &cfg.DatabaseURL)

	if raw, ok := lookup("ALLOWED_ORIGINS"); ok && raw != "" {
		cfg.AllowedOrigins = cfg.AllowedOrigins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1-65535, got %d", c.Port))
	}
	if c.MaxSeats < 2 || c.MaxSeats > 52 {
		errs = append(errs, fmt.Errorf("MAX_SEATS must be 2-52, got %d", c.MaxSeats))
	}
	if c.LogTail < 0 {
		errs = append(errs, fmt.Errorf("LOG_TAIL cannot be negative"))
	}
	if c.EmptyRoomGrace < 0 || c.IdleRoomTimeout < 0 {
		errs = append(errs, errors.New("room timeouts cannot be negative"))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.New("JANITOR_INTERVAL must be positive"))
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}
	if len(c.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("ALLOWED_ORIGINS cannot be empty"))
	}
	return errors.Join(errs...)
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
