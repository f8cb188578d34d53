package main

import (
	"context"
	"encoding/json"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"strconv"
	"time"

	"equialert/config"
	"equialert/internal/adapters/gfinance"
	"equialert/internal/adapters/logger"
	"equialert/internal/adapters/sqlite"
	"equialert/internal/adapters/structured"
	"equialert/internal/app"
	"equialert/internal/cache"
	"equialert/internal/domain"
	"equialert/internal/indicators"
	"equialert/internal/ports"
	"equialert/internal/registry"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Provider registry. Providers are built on first resolution.
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

	// 5. Cache
	dataCache := cache.New(cache.Config{
		QuoteSize:     cfg.QuoteCacheSize,
		QuoteTTL:      cfg.QuoteCacheTTL,
		HistorySize:   cfg.HistoryCacheSize,
		HistoryTTL:    cfg.HistoryCacheTTL,
		IndicatorSize: cfg.IndicatorCacheSize,
		IndicatorTTL:  cfg.IndicatorCacheTTL,
		MarketSize:    cfg.MarketCacheSize,
		MarketTTL:     cfg.MarketCacheTTL,
	})

	// 6. Orchestrator and indicator engine
	svc, err := app.NewService(app.Config{
		Logger:       appLogger,
		Registry:     reg,
		Cache:        dataCache,
		Repository:   repo,
		AutoFallback: cfg.AutoFallback,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize service: %v", err)
	}
	engine, err := indicators.New(indicators.Config{
		Repository: repo,
		Cache:      dataCache,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize indicator engine: %v", err)
	}

	// 7. HTTP relay: parse params, call the pipeline, encode the result.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/quote", func(w http.ResponseWriter, r *http.Request) {
		symbol, exchange, ok := symbolParams(w, r)
		if !ok {
			return
		}
		quote, err := svc.GetQuote(r.Context(), symbol, exchange, r.URL.Query().Get("source"))
		respond(w, quote, err)
	})
	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		symbol, exchange, ok := symbolParams(w, r)
		if !ok {
			return
		}
		profile, err := svc.GetProfile(r.Context(), symbol, exchange, r.URL.Query().Get("source"))
		respond(w, profile, err)
	})
	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		symbol, exchange, ok := symbolParams(w, r)
		if !ok {
			return
		}
		bars, err := svc.GetStoredHistory(r.Context(), symbol, exchange, intParam(r, "days", 30))
		if err != nil {
			respond(w, nil, err)
			return
		}
		respond(w, map[string]interface{}{
			"symbol": symbol, "exchange": exchange, "interval": "1d",
			"data": bars, "count": len(bars),
		}, nil)
	})
	mux.HandleFunc("/api/history/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		symbol, exchange, ok := symbolParams(w, r)
		if !ok {
			return
		}
		appended, err := svc.SyncHistory(r.Context(), symbol, exchange,
			intParam(r, "days", 30), r.URL.Query().Get("source"))
		if err != nil {
			respond(w, nil, err)
			return
		}
		respond(w, map[string]interface{}{"symbol": symbol, "exchange": exchange, "appended": appended}, nil)
	})
	mux.HandleFunc("/api/indicator", func(w http.ResponseWriter, r *http.Request) {
		symbol, exchange, ok := symbolParams(w, r)
		if !ok {
			return
		}
		series, err := engine.GetIndicator(r.Context(), indicators.Request{
			Symbol:   symbol,
			Exchange: exchange,
			Type:     domain.IndicatorType(r.URL.Query().Get("type")),
			Period:   intParam(r, "period", 14),
			Interval: r.URL.Query().Get("interval"),
		})
		respond(w, series, err)
	})
	mux.HandleFunc("/api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		respond(w, svc.CacheStats(), nil)
	})
	mux.HandleFunc("/api/cache/invalidate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}
		respond(w, map[string]interface{}{"symbol": symbol, "removed": svc.InvalidateSymbol(symbol)}, nil)
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	appLogger.Info(context.Background(), "HTTP server listening", map[string]interface{}{"addr": cfg.ListenAddr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLogger.Error(context.Background(), err, "HTTP server exited")
		log.Fatalf("FATAL: HTTP server exited: %v", err)
	}
}

func symbolParams(w http.ResponseWriter, r *http.Request) (symbol, exchange string, ok bool) {
	symbol = r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return "", "", false
	}
	exchange = r.URL.Query().Get("exchange")
	if exchange == "" {
		exchange = "NASDAQ"
	}
	return symbol, exchange, true
}

func intParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// statusFor maps pipeline error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrInvalidRequest), errors.Is(err, ports.ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrRateLimited), errors.Is(err, ports.ErrSourceUnavailable),
		errors.Is(err, ports.ErrHistoryNotSupported):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, payload interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(payload)
}
