package ports

import (
	"context"

	"equialert/internal/domain"
)

// QuoteProvider defines the capability set every upstream data source exposes.
// Implementations own their request, retry and extraction logic; they report
// failures through the standard ports errors (ErrNotFound, ErrRateLimited,
// ErrParseFailure, ErrSourceUnavailable, ErrHistoryNotSupported).
type QuoteProvider interface {
	// Name returns the provider identity attached to every record it produces.
	Name() string

	// FetchQuote retrieves the current quote for the canonical (symbol, exchange).
	FetchQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error)

	// FetchProfile retrieves descriptive metadata for the instrument.
	FetchProfile(ctx context.Context, symbol, exchange string) (*domain.Profile, error)

	// FetchHistory retrieves up to `days` daily OHLCV bars, ascending by
	// timestamp. Sources without historical access return ErrHistoryNotSupported.
	FetchHistory(ctx context.Context, symbol, exchange string, days int) ([]domain.PriceBar, error)
}
