package ports

import (
	"context"
	"time"

	"equialert/internal/domain"
)

// Instrument is the stored identity of a tracked stock. Profile fields are
// filled in lazily as provider fetches succeed.
type Instrument struct {
	ID         int64
	Symbol     string
	Exchange   string
	Name       string
	Sector     string
	Industry   string
	MarketCap  *int64
	Currency   string
	LastSource string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StockRepository defines the persistence contract consumed by the pipeline:
// a key-value-by-(symbol, exchange) instrument store plus an append-only
// time-series store for price bars.
type StockRepository interface {
	// GetInstrument retrieves an instrument by canonical identity.
	// Returns nil, nil when not found.
	GetInstrument(ctx context.Context, symbol, exchange string) (*Instrument, error)

	// CreateInstrument registers a new instrument and returns it with its ID set.
	CreateInstrument(ctx context.Context, symbol, exchange string) (*Instrument, error)

	// UpdateProfile overwrites the instrument's descriptive fields.
	UpdateProfile(ctx context.Context, inst *Instrument, profile *domain.Profile) error

	// AppendPriceBar appends one observation to the instrument's price history.
	AppendPriceBar(ctx context.Context, instrumentID int64, bar *domain.PriceBar) error

	// GetPriceBars returns the instrument's bars since the given time,
	// ascending by timestamp.
	GetPriceBars(ctx context.Context, instrumentID int64, since time.Time) ([]domain.PriceBar, error)
}
