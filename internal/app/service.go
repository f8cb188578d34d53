// Package app orchestrates the acquisition pipeline: cache in front,
// registry-resolved providers behind, cross-provider fallback on failure,
// and best-effort persistence of successful fetches.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"equialert/internal/cache"
	"equialert/internal/domain"
	"equialert/internal/ports"
	"equialert/internal/registry"
)

// Service is the fetch orchestrator consumed by the delivery layers.
type Service struct {
	logger       ports.Logger
	registry     *registry.Registry
	cache        *cache.Cache
	repo         ports.StockRepository
	autoFallback bool
}

// Config holds the service's dependencies.
type Config struct {
	Logger       ports.Logger
	Registry     *registry.Registry
	Cache        *cache.Cache
	Repository   ports.StockRepository
	AutoFallback bool // try the alternate provider when an explicit source fails
}

// NewService creates the orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil || cfg.Registry == nil || cfg.Cache == nil || cfg.Repository == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	return &Service{
		logger:       cfg.Logger,
		registry:     cfg.Registry,
		cache:        cfg.Cache,
		repo:         cfg.Repository,
		autoFallback: cfg.AutoFallback,
	}, nil
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// noFallback reports whether an error must surface immediately instead of
// triggering the alternate provider.
func noFallback(err error) bool {
	return errors.Is(err, ports.ErrNotFound) ||
		errors.Is(err, ports.ErrInvalidRequest) ||
		errors.Is(err, ports.ErrContextCanceled)
}

// fetchWithFallback resolves the requested source, invokes op against it,
// and on a recoverable failure retries once against the alternate provider.
// It returns the result and the name of the provider that produced it.
func (s *Service) fetchWithFallback(
	ctx context.Context,
	source string,
	op func(ports.QuoteProvider) (interface{}, error),
) (interface{}, string, error) {
	provider, err := s.registry.Resolve(source)
	if err != nil {
		return nil, "", err
	}

	result, primaryErr := op(provider)
	if primaryErr == nil {
		return result, provider.Name(), nil
	}
	if noFallback(primaryErr) {
		return nil, "", primaryErr
	}
	if !s.autoFallback && source != registry.SourceAuto {
		return nil, "", fmt.Errorf("%w: %s failed: %v", ports.ErrSourceUnavailable, provider.Name(), primaryErr)
	}

	alternate, err := s.registry.AlternateOf(provider.Name())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s failed: %v", ports.ErrSourceUnavailable, provider.Name(), primaryErr)
	}
	s.logger.Warn(ctx, "Primary source failed, trying alternate", map[string]interface{}{
		"failed": provider.Name(), "alternate": alternate.Name(), "error": primaryErr.Error(),
	})

	result, altErr := op(alternate)
	if altErr != nil {
		if noFallback(altErr) {
			return nil, "", altErr
		}
		return nil, "", fmt.Errorf("%w: %s failed (%v); %s failed (%v)",
			ports.ErrSourceUnavailable, provider.Name(), primaryErr, alternate.Name(), altErr)
	}
	return result, alternate.Name(), nil
}

// GetQuote returns the current quote for (symbol, exchange) from the
// requested source, serving from cache when fresh. The result's Source field
// names the provider that actually produced it.
func (s *Service) GetQuote(ctx context.Context, symbol, exchange, source string) (*domain.Quote, error) {
	if source == "" {
		source = registry.SourceAuto
	}
	key := cache.QuoteKey(symbol, exchange, source)
	v, err := s.cache.Quotes.GetOrFill(key, func() (any, error) {
		raw, usedSource, err := s.fetchWithFallback(ctx, source, func(p ports.QuoteProvider) (interface{}, error) {
			return p.FetchQuote(ctx, symbol, exchange)
		})
		if err != nil {
			return nil, err
		}
		quote := raw.(*domain.Quote)
		quote.Source = usedSource
		s.persistQuote(ctx, quote)
		return quote, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Quote), nil
}

// GetProfile returns descriptive metadata for (symbol, exchange). Profiles
// are not cached: they change rarely and each successful fetch refreshes the
// stored record.
func (s *Service) GetProfile(ctx context.Context, symbol, exchange, source string) (*domain.Profile, error) {
	if source == "" {
		source = registry.SourceAuto
	}
	raw, usedSource, err := s.fetchWithFallback(ctx, source, func(p ports.QuoteProvider) (interface{}, error) {
		return p.FetchProfile(ctx, symbol, exchange)
	})
	if err != nil {
		return nil, err
	}
	profile := raw.(*domain.Profile)
	profile.Source = usedSource
	s.persistProfile(ctx, profile)
	return profile, nil
}

// GetStoredHistory returns the instrument's accumulated price history for
// the trailing number of days, ascending. An instrument with no bars yet
// yields an empty slice; an unknown instrument is ErrNotFound.
func (s *Service) GetStoredHistory(ctx context.Context, symbol, exchange string, days int) ([]domain.PriceBar, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ports.ErrInvalidRequest, days)
	}
	key := cache.HistoryKey(symbol, "1d", strconv.Itoa(days))
	v, err := s.cache.History.GetOrFill(key, func() (any, error) {
		inst, err := s.repo.GetInstrument(ctx, normalize(symbol), normalize(exchange))
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, fmt.Errorf("%w: %s:%s is not tracked", ports.ErrNotFound, symbol, exchange)
		}
		since := time.Now().UTC().AddDate(0, 0, -days)
		bars, err := s.repo.GetPriceBars(ctx, inst.ID, since)
		if err != nil {
			return nil, err
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.PriceBar), nil
}

// SyncHistory pulls daily bars from a provider and appends them to the
// store. The scraping source has no history; with fallback enabled (or in
// auto mode) the request moves to the structured source instead of failing.
// Returns the number of bars appended.
func (s *Service) SyncHistory(ctx context.Context, symbol, exchange string, days int, source string) (int, error) {
	if source == "" {
		source = registry.SourceAuto
	}
	raw, usedSource, err := s.fetchWithFallback(ctx, source, func(p ports.QuoteProvider) (interface{}, error) {
		return p.FetchHistory(ctx, symbol, exchange, days)
	})
	if err != nil {
		return 0, err
	}
	bars := raw.([]domain.PriceBar)

	inst, err := s.getOrCreateInstrument(ctx, symbol, exchange)
	if err != nil {
		return 0, err
	}
	appended := 0
	for i := range bars {
		if err := s.repo.AppendPriceBar(ctx, inst.ID, &bars[i]); err != nil {
			return appended, fmt.Errorf("appending bar %d for %s:%s: %w", i, symbol, exchange, err)
		}
		appended++
	}
	s.logger.Info(ctx, "Synced price history", map[string]interface{}{
		"symbol": inst.Symbol, "exchange": inst.Exchange, "bars": appended, "source": usedSource,
	})
	return appended, nil
}

// InvalidateSymbol drops every cached entry for the symbol across all
// namespaces and returns the number removed.
func (s *Service) InvalidateSymbol(symbol string) int {
	return s.cache.InvalidateSymbol(symbol)
}

// CacheStats reports per-namespace cache diagnostics.
func (s *Service) CacheStats() map[string]cache.Stats {
	return s.cache.AllStats()
}

// --- Persistence ---

// Store writes after a successful fetch are best-effort: a failure is
// logged and the fetched data still goes back to the caller.

func (s *Service) persistQuote(ctx context.Context, quote *domain.Quote) {
	inst, err := s.getOrCreateInstrument(ctx, quote.Symbol, quote.Exchange)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to persist quote", map[string]interface{}{
			"symbol": quote.Symbol, "exchange": quote.Exchange,
		})
		return
	}
	// Intraday samples are stored as degenerate bars: one price for all of
	// open, high, low, close.
	bar := &domain.PriceBar{
		Timestamp:     quote.Timestamp,
		Open:          quote.Price,
		High:          quote.Price,
		Low:           quote.Price,
		Close:         quote.Price,
		Volume:        quote.Volume,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		PreviousClose: quote.PreviousClose,
		Source:        quote.Source,
	}
	if err := s.repo.AppendPriceBar(ctx, inst.ID, bar); err != nil {
		s.logger.Error(ctx, err, "Failed to persist quote", map[string]interface{}{
			"symbol": quote.Symbol, "exchange": quote.Exchange,
		})
	}
}

func (s *Service) persistProfile(ctx context.Context, profile *domain.Profile) {
	inst, err := s.getOrCreateInstrument(ctx, profile.Symbol, profile.Exchange)
	if err == nil {
		err = s.repo.UpdateProfile(ctx, inst, profile)
	}
	if err != nil {
		s.logger.Error(ctx, err, "Failed to persist profile", map[string]interface{}{
			"symbol": profile.Symbol, "exchange": profile.Exchange,
		})
	}
}

func (s *Service) getOrCreateInstrument(ctx context.Context, symbol, exchange string) (*ports.Instrument, error) {
	symbol, exchange = normalize(symbol), normalize(exchange)
	inst, err := s.repo.GetInstrument(ctx, symbol, exchange)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		return inst, nil
	}
	return s.repo.CreateInstrument(ctx, symbol, exchange)
}
