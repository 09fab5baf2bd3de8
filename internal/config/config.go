// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Prefix is prepended to every variable name.
const Prefix = "SHARECOUNTS_"

// Config holds all application configuration
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Networks lists the networks to register, in any order
	Networks     []string `env:"NETWORKS" envSeparator:"," envDefault:"facebook,twitter,googleplus"`
	UnknownCount int      `env:"UNKNOWN_COUNT" envDefault:"-1"`

	Cache CacheConfig

	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"20s"`
	HTTPCacheMaxAge time.Duration `env:"HTTP_CACHE_MAX_AGE" envDefault:"4m"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`

	Facebook   FacebookConfig   `envPrefix:"FACEBOOK_"`
	GooglePlus GooglePlusConfig `envPrefix:"GOOGLEPLUS_"`
}

// CacheConfig holds the lifetimes of cached results
type CacheConfig struct {
	GoodResultTimeout    time.Duration `env:"GOOD_RESULT_TIMEOUT" envDefault:"4m"`
	BadResultTimeout     time.Duration `env:"BAD_RESULT_TIMEOUT" envDefault:"1m"`
	TimeoutResultTimeout time.Duration `env:"TIMEOUT_RESULT_TIMEOUT" envDefault:"10s"`
}

// FacebookConfig holds Facebook-specific configuration
type FacebookConfig struct {
	BaseURL   string `env:"BASE_URL"`
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
}

// GooglePlusConfig holds Google+-specific configuration
type GooglePlusConfig struct {
	BaseURL string `env:"BASE_URL"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// HasFacebookApp returns true if Facebook app credentials are complete
func (c *Config) HasFacebookApp() bool {
	return c.Facebook.AppID != "" && c.Facebook.AppSecret != ""
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks values the environment parser cannot
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel))
	}
	if len(c.Networks) == 0 {
		errs = append(errs, errors.New("NETWORKS must name at least one network"))
	}
	if c.Cache.GoodResultTimeout <= 0 || c.Cache.BadResultTimeout <= 0 || c.Cache.TimeoutResultTimeout <= 0 {
		errs = append(errs, errors.New("cache timeouts must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.HTTPCacheMaxAge < 0 {
		errs = append(errs, errors.New("HTTP_CACHE_MAX_AGE must not be negative"))
	}
	if (c.Facebook.AppID == "") != (c.Facebook.AppSecret == "") {
		errs = append(errs, errors.New("FACEBOOK_APP_ID and FACEBOOK_APP_SECRET must be set together"))
	}

	return errors.Join(errs...)
}
