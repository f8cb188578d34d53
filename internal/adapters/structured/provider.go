// Package structured serves quotes, profiles, and history from a market-data
// API through its official client. The underlying clients are built lazily on
// first use; retries are delegated to the client library.
package structured

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"equialert/internal/domain"
	"equialert/internal/ports"
	"equialert/internal/symbols"
)

// SourceName identifies this provider in quote provenance and registry
// resolution.
const SourceName = "secondary"

// assetNotFoundCode is the API's error code for an unknown symbol.
const assetNotFoundCode = 40410000

// barClient is the slice of the vendor market-data client we consume.
// marketdata.Client satisfies it structurally.
type barClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// assetClient is the slice of the vendor trading client we consume.
type assetClient interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
}

// Config holds configuration for the structured-data provider.
type Config struct {
	APIKey       string
	APISecret    string
	DataBaseURL  string // optional, client default when empty
	TradeBaseURL string // optional, client default when empty
	Timeout      time.Duration
	Logger       ports.Logger
}

// Provider implements ports.QuoteProvider on top of the vendor clients.
type Provider struct {
	cfg    Config
	logger ports.Logger

	initOnce   sync.Once
	newClients func() (barClient, assetClient)
	data       barClient
	assets     assetClient
}

// New creates the structured-data provider. The vendor clients are not built
// until the first fetch.
func New(cfg Config) (*Provider, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the structured-data provider")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	p := &Provider{cfg: cfg, logger: cfg.Logger}
	p.newClients = func() (barClient, assetClient) {
		data := marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.DataBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
		assets := alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.TradeBaseURL,
		})
		return data, assets
	}
	return p, nil
}

// Name returns the provider's source identity.
func (p *Provider) Name() string { return SourceName }

func (p *Provider) clients() (barClient, assetClient) {
	p.initOnce.Do(func() {
		p.data, p.assets = p.newClients()
	})
	return p.data, p.assets
}

// classify maps vendor client errors onto the ports error kinds.
func classify(err error, symbol string) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == assetNotFoundCode {
			return fmt.Errorf("%w: %s", ports.ErrNotFound, symbol)
		}
		return fmt.Errorf("%w: api error %d for %s: %s", ports.ErrSourceUnavailable, apiErr.Code, symbol, apiErr.Message)
	}
	return fmt.Errorf("%w: %s: %v", ports.ErrSourceUnavailable, symbol, err)
}

// usable reports whether v is a real observed value. The API uses zero and
// NaN as absent-value sentinels.
func usable(v float64) bool {
	return v > 0 && !math.IsNaN(v)
}

// FetchQuote reads the instrument's snapshot. The price comes from the
// latest trade when present, else the daily bar close; neither usable is a
// parse failure.
func (p *Provider) FetchQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error) {
	data, _ := p.clients()
	providerSymbol := symbols.ToProviderSymbol(symbol, exchange)

	snap, err := data.GetSnapshot(providerSymbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, classify(err, providerSymbol)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot for %s", ports.ErrNotFound, providerSymbol)
	}

	var price float64
	switch {
	case snap.LatestTrade != nil && usable(snap.LatestTrade.Price):
		price = snap.LatestTrade.Price
	case snap.DailyBar != nil && usable(snap.DailyBar.Close):
		price = snap.DailyBar.Close
	default:
		return nil, fmt.Errorf("%w: no usable price in snapshot for %s", ports.ErrParseFailure, providerSymbol)
	}

	quote := &domain.Quote{
		Symbol:    strings.ToUpper(symbol),
		Exchange:  strings.ToUpper(exchange),
		Price:     price,
		Timestamp: time.Now().UTC(),
		Source:    SourceName,
	}
	if snap.DailyBar != nil && snap.DailyBar.Volume > 0 {
		v := int64(snap.DailyBar.Volume)
		quote.Volume = &v
	}
	if snap.PrevDailyBar != nil && usable(snap.PrevDailyBar.Close) {
		prev := snap.PrevDailyBar.Close
		change := price - prev
		pct := change / prev * 100
		quote.PreviousClose = &prev
		quote.Change = &change
		quote.ChangePercent = &pct
	}
	p.logger.Debug(ctx, "Fetched snapshot quote", map[string]interface{}{
		"symbol": quote.Symbol, "exchange": quote.Exchange, "price": quote.Price,
	})
	return quote, nil
}

// FetchProfile reads the instrument's asset record. Sector and industry are
// not exposed by the API and stay empty.
func (p *Provider) FetchProfile(ctx context.Context, symbol, exchange string) (*domain.Profile, error) {
	_, assets := p.clients()
	providerSymbol := symbols.ToProviderSymbol(symbol, exchange)

	asset, err := assets.GetAsset(providerSymbol)
	if err != nil {
		return nil, classify(err, providerSymbol)
	}

	symbol = strings.ToUpper(symbol)
	exchange = strings.ToUpper(exchange)
	name := asset.Name
	if name == "" {
		name = fmt.Sprintf("%s (%s)", symbol, exchange)
	}
	return &domain.Profile{
		Symbol:   symbol,
		Exchange: exchange,
		Name:     name,
		Currency: symbols.CurrencyFor(exchange),
		Source:   SourceName,
	}, nil
}

// FetchHistory loads daily bars. The request window is padded by five days
// of non-trading slack and the result trimmed to the requested count.
func (p *Provider) FetchHistory(ctx context.Context, symbol, exchange string, days int) ([]domain.PriceBar, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ports.ErrInvalidRequest, days)
	}
	data, _ := p.clients()
	providerSymbol := symbols.ToProviderSymbol(symbol, exchange)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(days + 5))
	raw, err := data.GetBars(providerSymbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return nil, classify(err, providerSymbol)
	}
	if len(raw) > days {
		raw = raw[len(raw)-days:]
	}

	bars := make([]domain.PriceBar, 0, len(raw))
	var prevClose *float64
	for _, b := range raw {
		bar := domain.PriceBar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Source:    SourceName,
		}
		if b.Volume > 0 {
			v := int64(b.Volume)
			bar.Volume = &v
		}
		if prevClose != nil && *prevClose > 0 {
			change := b.Close - *prevClose
			pct := change / *prevClose * 100
			prev := *prevClose
			bar.PreviousClose = &prev
			bar.Change = &change
			bar.ChangePercent = &pct
		}
		c := b.Close
		prevClose = &c
		bars = append(bars, bar)
	}
	p.logger.Debug(ctx, "Fetched bar history", map[string]interface{}{
		"symbol": providerSymbol, "days": days, "bars": len(bars),
	})
	return bars, nil
}
