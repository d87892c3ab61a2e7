package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	App      App      `envPrefix:"APP_"`
	Database Database `envPrefix:"DATABASE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Session  Session  `envPrefix:"SESSION_"`
	Password Password `envPrefix:"PASSWORD_"`
	Google   Google   `envPrefix:"GOOGLE_"`
	Facebook Facebook `envPrefix:"FACEBOOK_"`
	OTel     OTel     `envPrefix:"OTEL_"`
}

// App.BaseURL is the public origin; unset OAuth redirect URLs are derived
// from it.
type App struct {
	Port    string `env:"PORT" envDefault:"3000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`
}

// Database DSN is either postgres://... or sqlite://<path>.
type Database struct {
	DSN string `env:"DSN" envDefault:"sqlite://secrets.db"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Session struct {
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"24h"`
	AbsoluteTimeout   time.Duration `env:"ABSOLUTE_TIMEOUT" envDefault:"168h"`
	CookieName        string        `env:"COOKIE_NAME" envDefault:"__Host-session"`
	CookieSecure      bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SaveUninitialized bool          `env:"SAVE_UNINITIALIZED" envDefault:"false"`
}

// Password holds the argon2id cost parameters and the length policy for new
// passwords.
type Password struct {
	Time          uint32 `env:"TIME" envDefault:"3"`
	MemoryKiB     uint32 `env:"MEMORY_KIB" envDefault:"65536"`
	Parallelism   uint8  `env:"PARALLELISM" envDefault:"2"`
	MaxConcurrent int64  `env:"MAX_CONCURRENT" envDefault:"4"`
	MinLength     int    `env:"MIN_LENGTH" envDefault:"1"`
}

type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled reports whether the Google strategy should be registered.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Facebook struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	GraphURL     string `env:"GRAPH_URL" envDefault:"https://graph.facebook.com/v19.0/me"`
}

// Enabled reports whether the Facebook strategy should be registered.
func (f Facebook) Enabled() bool {
	return f.ClientID != "" && f.ClientSecret != ""
}

type OTel struct {
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"webauthsecurity"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	base := strings.TrimRight(cfg.App.BaseURL, "/")
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = base + "/auth/google/secrets"
	}
	if cfg.Facebook.RedirectURL == "" {
		cfg.Facebook.RedirectURL = base + "/auth/facebook/secrets"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	dsn := strings.ToLower(c.Database.DSN)
	if !strings.HasPrefix(dsn, "postgres://") &&
		!strings.HasPrefix(dsn, "postgresql://") &&
		!strings.HasPrefix(dsn, "sqlite://") {
		return errors.New("config: DATABASE_DSN must use the postgres:// or sqlite:// scheme")
	}

	if c.App.Port == "" {
		return errors.New("config: APP_PORT is required")
	}

	if c.Session.IdleTimeout <= 0 {
		return errors.New("config: SESSION_IDLE_TIMEOUT must be positive")
	}

	if c.Session.AbsoluteTimeout < c.Session.IdleTimeout {
		return errors.New("config: SESSION_ABSOLUTE_TIMEOUT must not be shorter than SESSION_IDLE_TIMEOUT")
	}

	if strings.HasPrefix(c.Session.CookieName, "__Host-") && !c.Session.CookieSecure {
		return errors.New("config: __Host- cookies require SESSION_COOKIE_SECURE=true")
	}

	if c.Password.MaxConcurrent < 1 {
		return errors.New("config: PASSWORD_MAX_CONCURRENT must be at least 1")
	}

	if c.Password.MinLength < 1 {
		return errors.New("config: PASSWORD_MIN_LENGTH must be at least 1")
	}

	return nil
}
