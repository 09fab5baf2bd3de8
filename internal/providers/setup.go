// Package providers builds the network registry from configuration
package providers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/sharecounts/facebook"
	"github.com/briangreenhill/sharecounts/googleplus"
	"github.com/briangreenhill/sharecounts/internal/config"
	"github.com/briangreenhill/sharecounts/networks"
	"github.com/briangreenhill/sharecounts/twitter"
)

type factory func(cfg *config.Config, httpClient *http.Client) networks.Adapter

var factories = map[string]factory{
	facebook.Name: func(cfg *config.Config, httpClient *http.Client) networks.Adapter {
		opts := []facebook.Option{facebook.WithHTTPClient(httpClient)}
		if cfg.Facebook.BaseURL != "" {
			opts = append(opts, facebook.WithBaseURL(cfg.Facebook.BaseURL))
		}
		if cfg.HasFacebookApp() {
			opts = append(opts, facebook.WithAppCredentials(cfg.Facebook.AppID, cfg.Facebook.AppSecret))
		}
		return facebook.New(opts...)
	},
	twitter.Name: func(cfg *config.Config, _ *http.Client) networks.Adapter {
		return twitter.New(cfg.UnknownCount)
	},
	googleplus.Name: func(cfg *config.Config, httpClient *http.Client) networks.Adapter {
		opts := []googleplus.Option{googleplus.WithHTTPClient(httpClient)}
		if cfg.GooglePlus.BaseURL != "" {
			opts = append(opts, googleplus.WithBaseURL(cfg.GooglePlus.BaseURL))
		}
		return googleplus.New(opts...)
	},
}

// Available returns the names of all networks Setup can register
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Setup creates a registry with the configured networks. Naming a network
// that has no adapter is an error.
func Setup(cfg *config.Config, logger zerolog.Logger) (*networks.Registry, error) {
	registry := networks.NewRegistry()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	for _, name := range cfg.Networks {
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("setup networks: %w", &networks.UnknownNetworkError{Network: name})
		}
		registry.Register(f(cfg, httpClient))
		logger.Debug().Str("network", name).Msg("registered network")
	}

	return registry, nil
}
