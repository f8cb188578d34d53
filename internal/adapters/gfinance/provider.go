// Package gfinance fetches quotes and profiles by scraping a finance site's
// quote pages. Markup classes change without notice, so every field is
// located by an ordered list of extractors tried in sequence; the first one
// producing a value wins.
package gfinance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"equialert/internal/domain"
	"equialert/internal/parse"
	"equialert/internal/ports"
	"equialert/internal/symbols"
)

// SourceName identifies this provider in quote provenance and registry
// resolution.
const SourceName = "primary"

const defaultBaseURL = "https://www.google.com/finance"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Config holds configuration for the scraping provider.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	BackoffFactor float64
	HTTPClient    *http.Client // optional, a client with cfg.Timeout is built when nil
	Logger        ports.Logger
}

// Provider implements ports.QuoteProvider against semi-structured quote
// pages. It has no history support.
type Provider struct {
	baseURL       string
	client        *http.Client
	maxRetries    int
	backoffFactor float64
	sleepUnit     time.Duration // scaled by backoff^attempt between retries
	sleep         func(ctx context.Context, d time.Duration) error
	logger        ports.Logger
	agentIdx      atomic.Uint32
}

// New creates the scraping provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the scraping provider")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.BackoffFactor
	if backoff <= 0 {
		backoff = 2.0
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Provider{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        client,
		maxRetries:    maxRetries,
		backoffFactor: backoff,
		sleepUnit:     time.Second,
		sleep:         waitOrCancel,
		logger:        cfg.Logger,
	}, nil
}

func waitOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
	}
}

// Name returns the provider's source identity.
func (p *Provider) Name() string { return SourceName }

func (p *Provider) quoteURL(symbol, exchange string) string {
	return p.baseURL + "/quote/" + strings.ToUpper(symbol) + ":" + strings.ToUpper(exchange)
}

func (p *Provider) nextUserAgent() string {
	idx := p.agentIdx.Add(1) - 1
	return userAgents[int(idx)%len(userAgents)]
}

// fetchDocument GETs url with browser-like headers, retrying transient
// failures with exponential backoff. A 404 fails immediately with no retry.
func (p *Provider) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(p.backoffFactor, float64(attempt-1)) * float64(p.sleepUnit))
			p.logger.Debug(ctx, "Retrying request", map[string]interface{}{
				"url": url, "attempt": attempt, "wait": wait.String(),
			})
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		doc, err := p.doRequest(ctx, url)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrContextCanceled) {
			return nil, err
		}
		lastErr = err
		p.logger.Warn(ctx, "Request failed", map[string]interface{}{
			"url": url, "attempt": attempt + 1, "error": err.Error(),
		})
	}
	return nil, fmt.Errorf("retries exhausted for %s: %w", url, lastErr)
}

func (p *Provider) doRequest(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ports.ErrUnknown, err)
	}
	req.Header.Set("User-Agent", p.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrTimeout, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ports.ErrRateLimited, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ports.ErrSourceUnavailable, resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ports.ErrParseFailure, err)
	}
	return doc, nil
}

// FetchQuote scrapes the quote page for a point-in-time price snapshot.
func (p *Provider) FetchQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error) {
	url := p.quoteURL(symbol, exchange)
	doc, err := p.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	price, ok := firstValue(doc, priceExtractors)
	if !ok {
		return nil, fmt.Errorf("%w: no price found for %s:%s", ports.ErrParseFailure, symbol, exchange)
	}

	change, changePercent := extractChange(doc)
	// Guard against a mis-extracted unrelated number: a one-day move of half
	// the price is not believable.
	if change != nil && math.Abs(*change) >= price*0.5 {
		change = nil
	}

	quote := &domain.Quote{
		Symbol:        strings.ToUpper(symbol),
		Exchange:      strings.ToUpper(exchange),
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		PreviousClose: previousClose(doc, price, change, changePercent),
		Volume:        extractVolume(doc),
		Timestamp:     time.Now().UTC(),
		Source:        SourceName,
	}
	p.logger.Debug(ctx, "Scraped quote", map[string]interface{}{
		"symbol": quote.Symbol, "exchange": quote.Exchange, "price": quote.Price,
	})
	return quote, nil
}

// FetchProfile scrapes the quote page for descriptive metadata.
func (p *Provider) FetchProfile(ctx context.Context, symbol, exchange string) (*domain.Profile, error) {
	url := p.quoteURL(symbol, exchange)
	doc, err := p.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	exchange = strings.ToUpper(exchange)

	name := extractName(doc)
	if name == "" {
		name = fmt.Sprintf("%s (%s)", symbol, exchange)
	}

	profile := &domain.Profile{
		Symbol:   symbol,
		Exchange: exchange,
		Name:     name,
		Sector:   extractSector(doc),
		Industry: labeledText(doc, "industry"),
		Currency: symbols.CurrencyFor(exchange),
		Source:   SourceName,
	}
	if raw, ok := labeledValue(doc, "market cap"); ok {
		if mc, ok := parse.Magnitude(raw); ok {
			profile.MarketCap = &mc
		}
	}
	return profile, nil
}

// FetchHistory is not supported by the scraping source.
func (p *Provider) FetchHistory(ctx context.Context, symbol, exchange string, days int) ([]domain.PriceBar, error) {
	return nil, fmt.Errorf("%w: %s has no historical data", ports.ErrHistoryNotSupported, SourceName)
}

// --- Extraction ---

// An extractor locates one candidate string in the document.
type extractor func(doc *goquery.Document) (string, bool)

// firstValue runs extractors in order and parses the first hit as a price.
func firstValue(doc *goquery.Document, extractors []valueExtractor) (float64, bool) {
	for _, ex := range extractors {
		raw, ok := ex.locate(doc)
		if !ok {
			continue
		}
		if v, ok := ex.parse(raw); ok {
			return v, true
		}
	}
	return 0, false
}

type valueExtractor struct {
	locate extractor
	parse  func(string) (float64, bool)
}

func selectorText(selector string) extractor {
	return func(doc *goquery.Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		text := strings.TrimSpace(sel.Text())
		return text, text != ""
	}
}

var priceExtractors = []valueExtractor{
	{locate: selectorText("div.YMlKec.fxKbKc"), parse: parse.Price},
	{locate: selectorText("div.YMlKec"), parse: parse.Price},
}

// nameExtractors locate the company name, most specific class first.
var nameExtractors = []extractor{
	selectorText("div.zzDege"),
	selectorText("h1"),
}

func extractName(doc *goquery.Document) string {
	for _, ex := range nameExtractors {
		if text, ok := ex(doc); ok {
			return text
		}
	}
	return ""
}

// extractChange scans the movement badges for the day change and percent
// change. A badge containing "%" is the percent; one carrying a currency
// symbol is the absolute change; a bare number is accepted as the absolute
// change only when it is plausibly small relative to nothing being found yet.
func extractChange(doc *goquery.Document) (change, changePercent *float64) {
	doc.Find(".JwB6zf").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		switch {
		case strings.Contains(text, "%"):
			if v, ok := parse.Percent(text); ok && changePercent == nil {
				changePercent = &v
			}
		case strings.ContainsAny(text, "$₹€£"):
			if v, ok := parse.Price(text); ok && change == nil {
				change = &v
			}
		case change == nil && strings.ContainsAny(text, "0123456789"):
			if v, ok := parse.Price(text); ok {
				change = &v
			}
		}
	})
	return change, changePercent
}

// previousClose picks exactly one derivation: the page's own value when
// present, otherwise price-change, otherwise price/(1+pct/100).
func previousClose(doc *goquery.Document, price float64, change, changePercent *float64) *float64 {
	if raw, ok := labeledValue(doc, "previous close"); ok {
		if v, ok := parse.Price(raw); ok {
			return &v
		}
	}
	if change != nil {
		v := price - *change
		return &v
	}
	if changePercent != nil && *changePercent > -100 {
		v := price / (1 + *changePercent/100)
		return &v
	}
	return nil
}

func extractVolume(doc *goquery.Document) *int64 {
	var volume *int64
	doc.Find("div.P6K39c").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(s.Text())
		if !strings.Contains(label, "volume") || strings.Contains(label, "avg") {
			return true
		}
		if raw, ok := siblingValue(s); ok {
			if v, ok := parse.Magnitude(raw); ok {
				volume = &v
				return false
			}
		}
		return true
	})
	return volume
}

// labeledValue finds the stats row whose label contains the given text and
// returns the adjacent value cell.
func labeledValue(doc *goquery.Document, label string) (string, bool) {
	var value string
	found := false
	doc.Find("div.P6K39c").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(s.Text()), label) {
			return true
		}
		if raw, ok := siblingValue(s); ok {
			value, found = raw, true
			return false
		}
		return true
	})
	return value, found
}

// siblingValue locates a row's value cell: the next matching sibling first,
// then anywhere under the shared parent.
func siblingValue(label *goquery.Selection) (string, bool) {
	for _, sel := range []*goquery.Selection{
		label.NextFiltered("div.YMlKec.fxKbKc"),
		label.Parent().Find("div.YMlKec.fxKbKc").First(),
		label.Parent().Find("div.P6K39c + div").First(),
	} {
		if sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

func labeledText(doc *goquery.Document, label string) string {
	if raw, ok := labeledValue(doc, label); ok {
		return raw
	}
	return ""
}

var sectorPattern = regexp.MustCompile(`(?i)(Technology|Healthcare|Finance|Energy|Consumer|Industrial|Materials|Utilities|Real Estate|Communication)`)

// extractSector reads the labeled stats row, falling back to a keyword scan
// of the about section.
func extractSector(doc *goquery.Document) string {
	if sector := labeledText(doc, "sector"); sector != "" {
		return sector
	}
	about := doc.Find("div.bLLb2d").First()
	if about.Length() == 0 {
		return ""
	}
	if m := sectorPattern.FindString(about.Text()); m != "" {
		return m
	}
	return ""
}
