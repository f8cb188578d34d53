package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceSetGet(t *testing.T) {
	c := New(Config{})

	c.Quotes.Set(QuoteKey("AAPL", "NASDAQ", "primary"), "payload")
	got, ok := c.Quotes.Get(QuoteKey("AAPL", "NASDAQ", "primary"))
	require.True(t, ok)
	assert.Equal(t, "payload", got)

	_, ok = c.Quotes.Get(QuoteKey("MSFT", "NASDAQ", "primary"))
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	c := New(Config{QuoteTTL: 50 * time.Millisecond})

	c.Quotes.Set("AAPL:NASDAQ:primary", 1)
	_, ok := c.Quotes.Get("AAPL:NASDAQ:primary")
	require.True(t, ok, "entry must be present before TTL elapses")

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Quotes.Get("AAPL:NASDAQ:primary")
	assert.False(t, ok, "entry must be absent after TTL elapses")
}

func TestCapacityEvictsLRU(t *testing.T) {
	c := New(Config{QuoteSize: 2})

	c.Quotes.Set("A:X:s", 1)
	c.Quotes.Set("B:X:s", 2)
	c.Quotes.Get("A:X:s") // touch A so B becomes least recently used
	c.Quotes.Set("C:X:s", 3)

	_, okA := c.Quotes.Get("A:X:s")
	_, okB := c.Quotes.Get("B:X:s")
	_, okC := c.Quotes.Get("C:X:s")
	assert.True(t, okA)
	assert.False(t, okB, "least-recently-used entry should have been evicted")
	assert.True(t, okC)
}

func TestInvalidateSymbol(t *testing.T) {
	c := New(Config{})

	c.Quotes.Set(QuoteKey("AAPL", "NASDAQ", "primary"), 1)
	c.Quotes.Set(QuoteKey("AAPL", "NASDAQ", "secondary"), 2)
	c.History.Set(HistoryKey("AAPL", "1d", "30"), 3)
	c.Indicators.Set(IndicatorKey("AAPL", "sma", 14, "1d"), 4)
	c.Quotes.Set(QuoteKey("MSFT", "NASDAQ", "primary"), 5)
	c.Indicators.Set(IndicatorKey("MSFT", "rsi", 14, "1d"), 6)

	removed := c.InvalidateSymbol("aapl")
	assert.Equal(t, 4, removed)

	_, ok := c.Quotes.Get(QuoteKey("AAPL", "NASDAQ", "primary"))
	assert.False(t, ok)
	_, ok = c.Indicators.Get(IndicatorKey("AAPL", "sma", 14, "1d"))
	assert.False(t, ok)

	// Unrelated symbols stay intact.
	_, ok = c.Quotes.Get(QuoteKey("MSFT", "NASDAQ", "primary"))
	assert.True(t, ok)
	_, ok = c.Indicators.Get(IndicatorKey("MSFT", "rsi", 14, "1d"))
	assert.True(t, ok)
}

func TestGetOrFillCollapsesConcurrentCalls(t *testing.T) {
	c := New(Config{})
	var fills int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Quotes.GetOrFill("AAPL:NASDAQ:auto", func() (any, error) {
				atomic.AddInt32(&fills, 1)
				<-release
				return "filled", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "filled", v)
		}()
	}

	// Give the goroutines time to pile up on the same key, then release.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fills),
		"concurrent identical requests must share a single fill")
}

func TestGetOrFillDoesNotCacheErrors(t *testing.T) {
	c := New(Config{})
	calls := 0
	fill := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, assert.AnError
		}
		return "ok", nil
	}

	_, err := c.Quotes.GetOrFill("k", fill)
	require.Error(t, err)

	v, err := c.Quotes.GetOrFill("k", fill)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestAllStats(t *testing.T) {
	c := New(Config{QuoteSize: 10, QuoteTTL: time.Minute})
	c.Quotes.Set("A:X:s", 1)

	stats := c.AllStats()
	require.Contains(t, stats, "current_price")
	assert.Equal(t, 1, stats["current_price"].Size)
	assert.Equal(t, 10, stats["current_price"].MaxSize)
	assert.Equal(t, 60.0, stats["current_price"].TTLSecs)
}
