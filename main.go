package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/sharecounts/cache"
	"github.com/briangreenhill/sharecounts/counters"
	"github.com/briangreenhill/sharecounts/internal/config"
	"github.com/briangreenhill/sharecounts/internal/providers"
)

const version = "v0.1.0"

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := runCLI(os.Args[1:], os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("sharecounts")
	}
}

func runCLI(args []string, stdout io.Writer, logger zerolog.Logger) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	case "version", "--version", "-v":
		_, _ = fmt.Fprintf(stdout, "sharecounts %s\n", version)
		return nil
	}
	if strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("unknown option: %s", args[0])
	}

	return runCounts(context.Background(), args[0], args[1:], stdout, logger)
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: sharecounts [options] <url> [network...]")
	_, _ = fmt.Fprintln(w, "Options:")
	_, _ = fmt.Fprintln(w, "  --help, -h                     Show this help message")
	_, _ = fmt.Fprintln(w, "  --version, -v                  Show the version")
	_, _ = fmt.Fprintln(w, "Environment:")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_NETWORKS           Networks to enable (default facebook,twitter,googleplus)")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_UNKNOWN_COUNT      Count reported when a network fails (default -1)")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_HTTP_TIMEOUT       Per-request timeout (default 20s)")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_FACEBOOK_APP_ID    Facebook app id (optional)")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_FACEBOOK_APP_SECRET Facebook app secret (optional)")
	_, _ = fmt.Fprintln(w, "  SHARECOUNTS_LOG_LEVEL          Log level (default info)")
}

// runCounts prints the counts for pageURL as JSON. With no networks given,
// every enabled network is queried.
func runCounts(ctx context.Context, pageURL string, names []string, stdout io.Writer, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger = logger.Level(cfg.Level())

	registry, err := providers.Setup(cfg, logger)
	if err != nil {
		return err
	}

	store := cache.NewMemory[*counters.Result](cache.Options{})
	defer func() { _ = store.Close() }()

	c := counters.New(registry,
		counters.WithMemoryCache(counters.MemoryCacheOptions{
			GoodResultTimeout:    cfg.Cache.GoodResultTimeout,
			BadResultTimeout:     cfg.Cache.BadResultTimeout,
			TimeoutResultTimeout: cfg.Cache.TimeoutResultTimeout,
		}),
		counters.WithUnknownCount(cfg.UnknownCount),
		counters.WithLogger(logger),
		counters.WithStore(store),
	)

	if len(names) == 0 {
		names = registry.List()
	}
	if invalid := c.InvalidNetworks(names); len(invalid) > 0 {
		return fmt.Errorf("unknown networks: %s (available: %s)", strings.Join(invalid, ", "), strings.Join(registry.List(), ", "))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(c.RetrieveCounts(ctx, pageURL, names))
}
