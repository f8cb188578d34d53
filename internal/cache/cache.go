// Package cache provides the TTL-bounded, size-bounded namespaces that sit in
// front of data acquisition and derivation. Each namespace has its own
// capacity and TTL; capacity overflow evicts the least-recently-used entry.
package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Defaults mirror the historical production settings.
const (
	DefaultQuoteTTL      = 5 * time.Minute
	DefaultQuoteSize     = 1000
	DefaultHistoryTTL    = time.Hour
	DefaultHistorySize   = 500
	DefaultIndicatorTTL  = time.Hour
	DefaultIndicatorSize = 500
	DefaultMarketTTL     = 5 * time.Minute
	DefaultMarketSize    = 100
)

// Namespace is one independent TTL+LRU keyed store. Entries expire a fixed
// duration after insertion regardless of access. Concurrent population of the
// same key is collapsed into a single fill via GetOrFill.
type Namespace[V any] struct {
	name   string
	ttl    time.Duration
	size   int
	lru    *expirable.LRU[string, V]
	flight singleflight.Group
}

func newNamespace[V any](name string, size int, ttl time.Duration) *Namespace[V] {
	return &Namespace[V]{
		name: name,
		ttl:  ttl,
		size: size,
		lru:  expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the cached value for key if present and not expired.
func (n *Namespace[V]) Get(key string) (V, bool) {
	return n.lru.Get(key)
}

// Set stores value under key with the namespace TTL, overwriting any
// previous entry.
func (n *Namespace[V]) Set(key string, value V) {
	n.lru.Add(key, value)
}

// GetOrFill returns the cached value for key, or invokes fill to produce it.
// Concurrent callers for the same uncached key share a single fill; the
// result is cached only on success.
func (n *Namespace[V]) GetOrFill(key string, fill func() (V, error)) (V, error) {
	if v, ok := n.lru.Get(key); ok {
		return v, nil
	}
	v, err, _ := n.flight.Do(key, func() (interface{}, error) {
		if v, ok := n.lru.Get(key); ok {
			return v, nil
		}
		v, err := fill()
		if err != nil {
			return v, err
		}
		n.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Remove deletes key from the namespace.
func (n *Namespace[V]) Remove(key string) {
	n.lru.Remove(key)
}

// removePrefix deletes every entry whose key starts with prefix.
// Linear in the namespace size, which is bounded by its capacity.
func (n *Namespace[V]) removePrefix(prefix string) int {
	removed := 0
	for _, key := range n.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			n.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Purge drops all entries.
func (n *Namespace[V]) Purge() {
	n.lru.Purge()
}

// Stats describes one namespace for diagnostics.
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxsize"`
	TTLSecs float64 `json:"ttl"`
}

func (n *Namespace[V]) stats() Stats {
	return Stats{Size: n.lru.Len(), MaxSize: n.size, TTLSecs: n.ttl.Seconds()}
}

// Config holds per-namespace capacities and TTLs. Zero values fall back to
// the package defaults.
type Config struct {
	QuoteTTL      time.Duration
	QuoteSize     int
	HistoryTTL    time.Duration
	HistorySize   int
	IndicatorTTL  time.Duration
	IndicatorSize int
	MarketTTL     time.Duration
	MarketSize    int
}

func (c *Config) applyDefaults() {
	if c.QuoteTTL <= 0 {
		c.QuoteTTL = DefaultQuoteTTL
	}
	if c.QuoteSize <= 0 {
		c.QuoteSize = DefaultQuoteSize
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = DefaultHistoryTTL
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.IndicatorTTL <= 0 {
		c.IndicatorTTL = DefaultIndicatorTTL
	}
	if c.IndicatorSize <= 0 {
		c.IndicatorSize = DefaultIndicatorSize
	}
	if c.MarketTTL <= 0 {
		c.MarketTTL = DefaultMarketTTL
	}
	if c.MarketSize <= 0 {
		c.MarketSize = DefaultMarketSize
	}
}

// Cache bundles the four independent namespaces used by the pipeline.
// Values are stored as opaque interface{} payloads; each producing component
// owns the concrete type it stores in its namespace.
type Cache struct {
	Quotes     *Namespace[any]
	History    *Namespace[any]
	Indicators *Namespace[any]
	Market     *Namespace[any]
}

// New creates a cache with the given per-namespace settings.
func New(cfg Config) *Cache {
	cfg.applyDefaults()
	return &Cache{
		Quotes:     newNamespace[any]("current_price", cfg.QuoteSize, cfg.QuoteTTL),
		History:    newNamespace[any]("historical", cfg.HistorySize, cfg.HistoryTTL),
		Indicators: newNamespace[any]("indicator", cfg.IndicatorSize, cfg.IndicatorTTL),
		Market:     newNamespace[any]("market", cfg.MarketSize, cfg.MarketTTL),
	}
}

// QuoteKey builds the quote namespace key from the identifying parameters.
func QuoteKey(symbol, exchange, source string) string {
	return strings.ToUpper(symbol) + ":" + strings.ToUpper(exchange) + ":" + source
}

// HistoryKey builds the history namespace key.
func HistoryKey(symbol, interval, rng string) string {
	return strings.ToUpper(symbol) + ":" + interval + ":" + rng
}

// IndicatorKey builds the indicator namespace key.
func IndicatorKey(symbol, indicatorType string, period int, interval string) string {
	return strings.ToUpper(symbol) + ":" + indicatorType + ":" + strconv.Itoa(period) + ":" + interval
}

// InvalidateSymbol removes every entry across all namespaces whose key is
// prefixed by the symbol. Returns the number of entries removed.
func (c *Cache) InvalidateSymbol(symbol string) int {
	prefix := strings.ToUpper(symbol) + ":"
	removed := 0
	removed += c.Quotes.removePrefix(prefix)
	removed += c.History.removePrefix(prefix)
	removed += c.Indicators.removePrefix(prefix)
	removed += c.Market.removePrefix(prefix)
	return removed
}

// Clear drops every entry in every namespace.
func (c *Cache) Clear() {
	c.Quotes.Purge()
	c.History.Purge()
	c.Indicators.Purge()
	c.Market.Purge()
}

// AllStats reports size/capacity/TTL per namespace for diagnostics.
func (c *Cache) AllStats() map[string]Stats {
	return map[string]Stats{
		"current_price": c.Quotes.stats(),
		"historical":    c.History.stats(),
		"indicator":     c.Indicators.stats(),
		"market":        c.Market.stats(),
	}
}
