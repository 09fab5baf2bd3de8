// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/sharecounts/cache"
	"github.com/briangreenhill/sharecounts/counters"
	"github.com/briangreenhill/sharecounts/internal/config"
	"github.com/briangreenhill/sharecounts/internal/http/routes"
	"github.com/briangreenhill/sharecounts/internal/providers"
	"github.com/briangreenhill/sharecounts/metrics/prom"
)

func main() {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = logger.Level(cfg.Level())

	// Metrics
	var (
		gatherer prometheus.Gatherer
		cacheM   cache.Metrics    = cache.NoopMetrics{}
		fetchM   counters.Metrics = counters.NoopMetrics{}
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := prom.New(reg, "sharecounts", "")
		gatherer, cacheM, fetchM = reg, m, m
	}

	// Networks
	registry, err := providers.Setup(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup networks")
	}

	// Cache
	store := cache.NewMemory[*counters.Result](cache.Options{Metrics: cacheM})

	c := counters.New(registry,
		counters.WithMemoryCache(counters.MemoryCacheOptions{
			GoodResultTimeout:    cfg.Cache.GoodResultTimeout,
			BadResultTimeout:     cfg.Cache.BadResultTimeout,
			TimeoutResultTimeout: cfg.Cache.TimeoutResultTimeout,
		}),
		counters.WithUnknownCount(cfg.UnknownCount),
		counters.WithLogger(logger),
		counters.WithStore(store),
		counters.WithMetrics(fetchM),
	)

	// Router / server
	s := routes.New(routes.ServerOptions{
		Counters: c,
		Registry: registry,
		MaxAge:   cfg.HTTPCacheMaxAge,
		Logger:   logger,
		Metrics:  gatherer,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("networks", registry.List()).Msg("starting api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Cache.TimeoutResultTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("close cache")
	}
}
