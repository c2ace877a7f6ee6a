package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	OMDb     OMDbConfig     `koanf:"omdb"`
	YouTube  YouTubeConfig  `koanf:"youtube"`
	View     ViewConfig     `koanf:"view"`
	Security SecurityConfig `koanf:"security"`
	Admin    AdminConfig    `koanf:"admin"`
}

type ServerConfig struct {
	Port        string `koanf:"port"`
	Environment string `koanf:"environment"`
	Debug       bool   `koanf:"debug"`
}

type DatabaseConfig struct {
	// Driver selects the collection store: "postgres" or "memory".
	Driver   string `koanf:"driver"`
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

type SessionConfig struct {
	Secret string        `koanf:"secret"`
	MaxAge time.Duration `koanf:"max_age"`
}

type OMDbConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         string        `koanf:"api_key"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

type YouTubeConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         string        `koanf:"api_key"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

type ViewConfig struct {
	PageSize int `koanf:"page_size"`
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// AdminConfig seeds an initial account when Password is set.
type AdminConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Email    string `koanf:"email"`
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}
	if c.IsProduction() && (c.Session.Secret == "" || c.Session.Secret == defaultSessionSecret) {
		errs = append(errs, errors.New("session.secret must be changed in production"))
	}
	if len(c.Session.Secret) < 16 {
		errs = append(errs, errors.New("session.secret must be at least 16 characters"))
	}
	if c.View.PageSize < 1 {
		errs = append(errs, fmt.Errorf("view.page_size must be positive, got %d", c.View.PageSize))
	}
	if !strings.HasPrefix(c.OMDb.BaseURL, "http") {
		errs = append(errs, fmt.Errorf("omdb.base_url is not an http url: %q", c.OMDb.BaseURL))
	}
	if !strings.HasPrefix(c.YouTube.BaseURL, "http") {
		errs = append(errs, fmt.Errorf("youtube.base_url is not an http url: %q", c.YouTube.BaseURL))
	}

	return errors.Join(errs...)
}
