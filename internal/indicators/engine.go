// Package indicators derives technical-indicator series from stored price
// history. The engine reads ascending bars from the repository (never from
// providers) and owns the population of the cache's indicator namespace.
package indicators

import (
	"context"
	"fmt"
	"time"

	"equialert/internal/cache"
	"equialert/internal/domain"
	"equialert/internal/ports"
)

// MACD parameters are fixed to the conventional values.
const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

const bollingerMultiplier = 2.0

// defaultLookback bounds how much history is loaded for a computation.
const defaultLookback = 365 * 24 * time.Hour

// Request identifies one indicator computation.
type Request struct {
	Symbol   string
	Exchange string
	Type     domain.IndicatorType
	Period   int
	Interval string // data interval, e.g. "1d"
}

// Engine computes indicator series from persisted price history.
type Engine struct {
	repo     ports.StockRepository
	cache    *cache.Cache
	logger   ports.Logger
	lookback time.Duration
}

// Config holds the engine's dependencies.
type Config struct {
	Repository ports.StockRepository
	Cache      *cache.Cache
	Logger     ports.Logger
	Lookback   time.Duration // optional, defaults to one year
}

// New creates an indicator engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository is required for the indicator engine")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required for the indicator engine")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the indicator engine")
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}
	return &Engine{
		repo:     cfg.Repository,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		lookback: lookback,
	}, nil
}

// GetIndicator returns the requested series, computing and caching it when
// absent. Concurrent requests for the same key share one computation.
func (e *Engine) GetIndicator(ctx context.Context, req Request) (*domain.IndicatorSeries, error) {
	if req.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %d", ports.ErrInvalidRequest, req.Period)
	}
	if req.Interval == "" {
		req.Interval = "1d"
	}

	key := cache.IndicatorKey(req.Symbol, string(req.Type), req.Period, req.Interval)
	v, err := e.cache.Indicators.GetOrFill(key, func() (any, error) {
		return e.compute(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	series, ok := v.(*domain.IndicatorSeries)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cached indicator payload", ports.ErrUnknown)
	}
	return series, nil
}

func (e *Engine) compute(ctx context.Context, req Request) (*domain.IndicatorSeries, error) {
	bars, err := e.loadBars(ctx, req.Symbol, req.Exchange)
	if err != nil {
		return nil, err
	}
	if len(bars) < req.Period {
		return nil, fmt.Errorf("%w: %s needs at least %d points, have %d",
			ports.ErrInsufficientData, req.Type, req.Period, len(bars))
	}

	series := &domain.IndicatorSeries{
		Symbol:   req.Symbol,
		Exchange: req.Exchange,
		Type:     req.Type,
		Period:   req.Period,
		Interval: req.Interval,
	}

	switch req.Type {
	case domain.IndicatorSMA:
		series.Data = SMA(bars, req.Period)
	case domain.IndicatorEMA:
		series.Data = EMA(bars, req.Period)
	case domain.IndicatorRSI:
		series.Data = RSI(bars, req.Period)
	case domain.IndicatorMACD:
		series.Lines = MACD(bars, macdFast, macdSlow, macdSignal)
	case domain.IndicatorBollinger:
		if req.Period < 2 {
			return nil, fmt.Errorf("%w: bollinger period must be at least 2", ports.ErrInvalidRequest)
		}
		series.Lines = Bollinger(bars, req.Period, bollingerMultiplier)
	default:
		return nil, fmt.Errorf("%w: unknown indicator type %q", ports.ErrInvalidRequest, req.Type)
	}

	e.logger.Debug(ctx, "computed indicator series", map[string]interface{}{
		"symbol": req.Symbol, "exchange": req.Exchange,
		"type": string(req.Type), "period": req.Period, "bars": len(bars),
	})
	return series, nil
}

// loadBars reads the instrument's history from the store, ascending by
// timestamp, bounded by the engine lookback.
func (e *Engine) loadBars(ctx context.Context, symbol, exchange string) ([]domain.PriceBar, error) {
	inst, err := e.repo.GetInstrument(ctx, symbol, exchange)
	if err != nil {
		return nil, fmt.Errorf("loading instrument %s:%s: %w", symbol, exchange, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %s:%s has no stored history", ports.ErrNotFound, symbol, exchange)
	}
	bars, err := e.repo.GetPriceBars(ctx, inst.ID, time.Now().UTC().Add(-e.lookback))
	if err != nil {
		return nil, fmt.Errorf("loading price history for %s:%s: %w", symbol, exchange, err)
	}
	return bars, nil
}
