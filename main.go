package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pricefetcher/internal/alphavantage"
	"pricefetcher/internal/config"
	"pricefetcher/internal/coordinator"
	"pricefetcher/internal/fetcher"
	"pricefetcher/internal/lookup"
	"pricefetcher/internal/model"
	"pricefetcher/internal/ratelimit"
	"pricefetcher/internal/sink"
	"pricefetcher/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel).With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("received interrupt signal, shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, logger, time.Now()); err != nil {
		logger.Error("price update failed", "error", err)
		os.Exit(1)
	}
}

// run resolves instruments, fetches their series and writes the combined
// table. Any returned error is fatal; per-instrument failures are not.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, now time.Time) error {
	dates, err := model.NewDateRange(cfg.StartDate, now)
	if err != nil {
		return err
	}

	lookupProvider, err := newLookupProvider(cfg)
	if err != nil {
		return err
	}

	filter := lookup.FilterSpec{
		ExcludeTickers: cfg.ExcludeTickers,
		ListedOnly:     cfg.ListedOnly,
		DisplayName:    cfg.DisplayName,
	}
	mapping, err := lookup.NewResolver(lookupProvider, logger).Resolve(ctx, cfg.LookupLimit, filter)
	if err != nil {
		return fmt.Errorf("resolve instruments: %w", err)
	}

	quotes, err := newQuoteProvider(cfg)
	if err != nil {
		return err
	}

	logger.Info("fetching price history",
		"provider", cfg.QuoteProvider,
		"instruments", len(mapping),
		"range", dates.String(),
	)

	coord := coordinator.New(fetcher.New(quotes),
		coordinator.WithLogger(logger),
		coordinator.WithConcurrency(cfg.FetchConcurrency),
	)
	table, summary := coord.Run(ctx, mapping, dates)

	// A cancelled run only has partial data; keep the previous output.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fetch interrupted: %w", err)
	}

	if err := sink.NewCSVWriter().Write(table, cfg.OutputPath); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("data update complete",
		"output", cfg.OutputPath,
		"rows", table.Len(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return nil
}

func newLookupProvider(cfg *config.Config) (lookup.Provider, error) {
	switch cfg.LookupSource {
	case config.LookupPostgres:
		return lookup.NewPostgresProvider(cfg.DBConfig, cfg.LookupTable), nil
	case config.LookupFile:
		return lookup.NewFileProvider(cfg.LookupFile), nil
	default:
		return nil, fmt.Errorf("unknown lookup source %q", cfg.LookupSource)
	}
}

func newQuoteProvider(cfg *config.Config) (fetcher.QuoteProvider, error) {
	limiter := ratelimit.New(ratelimit.DefaultLimits)

	switch cfg.QuoteProvider {
	case config.ProviderYahoo:
		if cfg.QuoteRateLimit > 0 {
			limiter.SetLimit(ratelimit.APIYahoo, rate.Limit(cfg.QuoteRateLimit))
		}
		return yahoo.NewChartProvider(cfg.YahooBaseURL, cfg.HTTPTimeout, limiter), nil
	case config.ProviderAlphaVantage:
		if cfg.QuoteRateLimit > 0 {
			limiter.SetLimit(ratelimit.APIAlphaVantage, rate.Limit(cfg.QuoteRateLimit))
		}
		return alphavantage.NewStockProvider(cfg.AlphavantageAPIKey, cfg.AlphavantageBaseURL, cfg.HTTPTimeout, limiter), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.QuoteProvider)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
