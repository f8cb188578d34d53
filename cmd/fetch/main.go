package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"equialert/config"
	"equialert/internal/adapters/gfinance"
	"equialert/internal/adapters/logger"
	"equialert/internal/adapters/sqlite"
	"equialert/internal/adapters/structured"
	"equialert/internal/app"
	"equialert/internal/cache"
	"equialert/internal/ports"
	"equialert/internal/registry"
)

// One-shot fetch tool: pulls a quote (and optionally syncs history) for a
// single instrument and prints the result.
func main() {
	symbol := flag.String("symbol", "AAPL", "ticker symbol")
	exchange := flag.String("exchange", "NASDAQ", "exchange code")
	source := flag.String("source", registry.SourceAuto, "data source: primary, secondary or auto")
	days := flag.Int("days", 0, "sync this many days of daily history before printing the quote (0 disables)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 4. Providers and orchestrator
	reg, err := registry.New(registry.Config{
		Primary: func() (ports.QuoteProvider, error) {
			return gfinance.New(gfinance.Config{
				BaseURL:       cfg.ScraperBaseURL,
				Timeout:       cfg.ScraperTimeout,
				MaxRetries:    cfg.ScraperMaxRetries,
				BackoffFactor: cfg.ScraperBackoffFactor,
				Logger:        appLogger,
			})
		},
		Secondary: func() (ports.QuoteProvider, error) {
			return structured.New(structured.Config{
				APIKey:      cfg.MarketDataAPIKey,
				APISecret:   cfg.MarketDataAPISecret,
				DataBaseURL: cfg.MarketDataBaseURL,
				Timeout:     cfg.MarketDataTimeout,
				Logger:      appLogger,
			})
		},
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize provider registry: %v", err)
	}
	svc, err := app.NewService(app.Config{
		Logger:       appLogger,
		Registry:     reg,
		Cache:        cache.New(cache.Config{}),
		Repository:   repo,
		AutoFallback: cfg.AutoFallback,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}

	ctx := context.Background()

	if *days > 0 {
		fmt.Printf("Syncing %d days of history for %s:%s...\n", *days, *symbol, *exchange)
		appended, err := svc.SyncHistory(ctx, *symbol, *exchange, *days, *source)
		if err != nil {
			appLogger.Error(ctx, err, "Error syncing history")
			log.Fatalf("Error syncing history: %v", err)
		}
		fmt.Printf("Appended %d bars.\n", appended)
	}

	quote, err := svc.GetQuote(ctx, *symbol, *exchange, *source)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching quote")
		log.Fatalf("Error fetching quote: %v", err)
	}

	fmt.Printf("%s:%s  price=%.2f  source=%s  at=%s\n",
		quote.Symbol, quote.Exchange, quote.Price, quote.Source, quote.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if quote.Change != nil && quote.ChangePercent != nil {
		fmt.Printf("change=%+.2f (%+.2f%%)\n", *quote.Change, *quote.ChangePercent)
	}
	if quote.PreviousClose != nil {
		fmt.Printf("previous close=%.2f\n", *quote.PreviousClose)
	}
	if quote.Volume != nil {
		fmt.Printf("volume=%d\n", *quote.Volume)
	}
}
