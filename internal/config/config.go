package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppHost string `env:"APP_HOST" envDefault:"127.0.0.1"`
	AppPort string `env:"APP_PORT" envDefault:"8080"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	KeycloakIssuer        string `env:"KEYCLOAK_ISSUER"`
	KeycloakClientID      string `env:"KEYCLOAK_CLIENT_ID"`
	KeycloakRedirectURL   string `env:"KEYCLOAK_REDIRECT_URL"`
	KeycloakPublicBaseURL string `env:"KEYCLOAK_PUBLIC_BASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"storefront:"`

	DatabaseDSN    string `env:"DATABASE_DSN,notEmpty"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	GuardWait    time.Duration `env:"GUARD_WAIT" envDefault:"3s"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
}

// GoogleEnabled reports whether all Google OAuth fields are set.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// KeycloakEnabled reports whether all Keycloak fields are set.
func (c Config) KeycloakEnabled() bool {
	return c.KeycloakIssuer != "" && c.KeycloakClientID != "" &&
		c.KeycloakRedirectURL != "" && c.KeycloakPublicBaseURL != ""
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q (valid options: postgres, pgx)", c.DatabaseDriver)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.GuardWait < 0 {
		return errors.New("GUARD_WAIT must not be negative")
	}
	return nil
}

// Load reads a .env file when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
