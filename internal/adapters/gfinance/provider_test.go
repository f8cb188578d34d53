package gfinance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equialert/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const quotePage = `<html><body>
<h1>Apple Inc</h1>
<div class="zzDege">Apple Inc</div>
<div class="YMlKec fxKbKc">$1,234.56</div>
<span class="JwB6zf">-$12.34</span>
<span class="JwB6zf">(-0.99%)</span>
<div class="row"><div class="P6K39c">Previous close</div><div class="YMlKec fxKbKc">$1,246.90</div></div>
<div class="row"><div class="P6K39c">Avg Volume</div><div class="YMlKec fxKbKc">99.9M</div></div>
<div class="row"><div class="P6K39c">Volume</div><div class="YMlKec fxKbKc">1.2M</div></div>
<div class="row"><div class="P6K39c">Market cap</div><div class="YMlKec fxKbKc">2.95B</div></div>
<div class="row"><div class="P6K39c">Industry</div><div class="YMlKec fxKbKc">Consumer Electronics</div></div>
<div class="bLLb2d">Apple designs Technology products.</div>
</body></html>`

func newTestProvider(t *testing.T, handler http.Handler, maxRetries int) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		MaxRetries:    maxRetries,
		BackoffFactor: 2.0,
		Logger:        noopLogger{},
	})
	require.NoError(t, err)
	p.sleepUnit = time.Millisecond
	return p
}

func TestFetchQuoteExtractsFields(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/AAPL:NASDAQ", r.URL.Path)
		w.Write([]byte(quotePage))
	}), 0)

	quote, err := p.FetchQuote(context.Background(), "aapl", "nasdaq")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "NASDAQ", quote.Exchange)
	assert.InDelta(t, 1234.56, quote.Price, 1e-9)
	require.NotNil(t, quote.Change)
	assert.InDelta(t, -12.34, *quote.Change, 1e-9)
	require.NotNil(t, quote.ChangePercent)
	assert.InDelta(t, -0.99, *quote.ChangePercent, 1e-9)
	require.NotNil(t, quote.PreviousClose)
	assert.InDelta(t, 1246.90, *quote.PreviousClose, 1e-9)
	require.NotNil(t, quote.Volume)
	assert.Equal(t, int64(1_200_000), *quote.Volume, "avg volume row must be skipped")
	assert.Equal(t, SourceName, quote.Source)
}

func TestFetchQuotePreviousCloseDerivedFromChange(t *testing.T) {
	// No previous-close row on the page: it must be derived as price-change.
	const page = `<html><body>
	<div class="YMlKec fxKbKc">$100.00</div>
	<span class="JwB6zf">$2.50</span>
	</body></html>`
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}), 0)

	quote, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	require.NoError(t, err)
	require.NotNil(t, quote.PreviousClose)
	assert.InDelta(t, 97.50, *quote.PreviousClose, 1e-9)
}

func TestFetchQuoteDiscardsImplausibleChange(t *testing.T) {
	// A "change" of 90 against a price of 100 is a mis-extracted number.
	const page = `<html><body>
	<div class="YMlKec fxKbKc">$100.00</div>
	<span class="JwB6zf">$90.00</span>
	</body></html>`
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}), 0)

	quote, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	require.NoError(t, err)
	assert.Nil(t, quote.Change)
}

func TestFetchQuoteMissingPrice(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>nothing here</h1></body></html>`))
	}), 0)

	_, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	assert.ErrorIs(t, err, ports.ErrParseFailure)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var requests int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}), 3)

	_, err := p.FetchQuote(context.Background(), "ZZZZ", "NASDAQ")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "404 must fail with zero retries")
}

func TestTransientFailuresAreRetried(t *testing.T) {
	var requests int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 3)

	_, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	assert.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&requests), "initial attempt plus three retries")
}

func TestRetryWaitsGrowExponentially(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), 3)

	var waits []time.Duration
	p.sleepUnit = time.Second
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	assert.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits,
		"each retry must wait factor^(attempt-1) units")
}

func TestRateLimitRetriedThenSurfaced(t *testing.T) {
	var requests int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}), 2)

	_, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestRecoveryAfterTransientFailure(t *testing.T) {
	var requests int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(quotePage))
	}), 3)

	quote, err := p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, quote.Price, 1e-9)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestUserAgentRotates(t *testing.T) {
	seen := make(map[string]bool)
	var requests int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = true
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	p.FetchQuote(context.Background(), "AAPL", "NASDAQ")
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Len(t, seen, 3, "each attempt must use the next agent in rotation")
}

func TestFetchProfile(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quotePage))
	}), 0)

	profile, err := p.FetchProfile(context.Background(), "AAPL", "NASDAQ")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", profile.Name)
	assert.Equal(t, "Consumer Electronics", profile.Industry)
	assert.Equal(t, "Technology", profile.Sector, "sector falls back to the about-section scan")
	require.NotNil(t, profile.MarketCap)
	assert.Equal(t, int64(2_950_000_000), *profile.MarketCap)
	assert.Equal(t, "USD", profile.Currency)
}

func TestFetchProfileNameFallback(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="YMlKec fxKbKc">$10.00</div></body></html>`))
	}), 0)

	profile, err := p.FetchProfile(context.Background(), "TCS", "NSE")
	require.NoError(t, err)
	assert.Equal(t, "TCS (NSE)", profile.Name)
	assert.Equal(t, "INR", profile.Currency)
}

func TestFetchHistoryNotSupported(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quotePage))
	}), 0)

	_, err := p.FetchHistory(context.Background(), "AAPL", "NASDAQ", 30)
	assert.ErrorIs(t, err, ports.ErrHistoryNotSupported)
}
