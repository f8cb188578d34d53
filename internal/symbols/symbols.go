// Package symbols translates between the canonical (ticker, exchange) identity
// used throughout the pipeline and the suffix-qualified symbol strings the
// structured data feed expects (e.g. RELIANCE + NSE -> RELIANCE.NS).
package symbols

import "strings"

// DefaultExchange is assumed when a provider symbol carries no suffix.
// US listings (NASDAQ, NYSE, AMEX) all map to the empty suffix, so the
// inverse conversion is lossy for them by design: a bare symbol cannot be
// disambiguated and resolves to DefaultExchange.
const DefaultExchange = "NASDAQ"

type suffixMapping struct {
	exchange string
	suffix   string
}

// suffixTable maps exchange codes to the feed's symbol suffixes. Order
// matters: when several exchanges share a suffix, the inverse conversion
// resolves to the first one listed.
var suffixTable = []suffixMapping{
	// Indian exchanges
	{"NSE", ".NS"},
	{"BSE", ".BO"},

	// US exchanges (no suffix)
	{"NASDAQ", ""},
	{"NYSE", ""},
	{"AMEX", ""},
	{"NYSEAMERICAN", ""},

	// European exchanges
	{"LON", ".L"},
	{"LSE", ".L"},
	{"FRA", ".DE"},
	{"PAR", ".PA"},
	{"AMS", ".AS"},
	{"BME", ".MC"},
	{"MIL", ".MI"},
	{"SWX", ".SW"},

	// Asian exchanges
	{"JPX", ".T"},
	{"TSE", ".T"},
	{"HKG", ".HK"},
	{"HKEX", ".HK"},
	{"SHA", ".SS"},
	{"SHE", ".SZ"},
	{"KRX", ".KS"},
	{"KSE", ".KS"},

	// Other major exchanges
	{"TSX", ".TO"},
	{"TSXV", ".V"},
	{"ASX", ".AX"},
	{"NZX", ".NZ"},
	{"JSE", ".JO"},
	{"BSP", ".SA"},
	{"BMV", ".MX"},
}

var exchangeSuffixes = make(map[string]string, len(suffixTable))

func init() {
	for _, m := range suffixTable {
		exchangeSuffixes[m.exchange] = m.suffix
	}
}

// currencyByExchange maps an exchange code to its trading currency.
var currencyByExchange = map[string]string{
	"NSE": "INR",
	"BSE": "INR",
	"LON": "GBP",
	"LSE": "GBP",
	"FRA": "EUR",
	"PAR": "EUR",
	"AMS": "EUR",
	"JPX": "JPY",
	"TSE": "JPY",
}

// ToProviderSymbol converts a canonical (ticker, exchange) pair to the feed's
// symbol format. The conversion is total: unknown exchanges map to the empty
// suffix and the ticker passes through unchanged (upper-cased).
func ToProviderSymbol(ticker, exchange string) string {
	return strings.ToUpper(ticker) + exchangeSuffixes[strings.ToUpper(exchange)]
}

// FromProviderSymbol parses a feed symbol back into (ticker, exchange) by
// matching the longest known suffix. Ties between exchanges sharing a suffix
// go to the first table entry. Symbols without a recognised suffix are
// assumed to be listed on DefaultExchange.
func FromProviderSymbol(providerSymbol string) (ticker, exchange string) {
	best := ""
	for _, m := range suffixTable {
		if m.suffix == "" || !strings.HasSuffix(providerSymbol, m.suffix) {
			continue
		}
		if len(m.suffix) > len(best) {
			best = m.suffix
			exchange = m.exchange
		}
	}
	if best == "" {
		return providerSymbol, DefaultExchange
	}
	return strings.TrimSuffix(providerSymbol, best), exchange
}

// IsKnownExchange reports whether the exchange code is in the suffix table.
func IsKnownExchange(exchange string) bool {
	_, ok := exchangeSuffixes[strings.ToUpper(exchange)]
	return ok
}

// CurrencyFor returns the trading currency for an exchange code, defaulting
// to USD for exchanges without an entry.
func CurrencyFor(exchange string) string {
	if c, ok := currencyByExchange[strings.ToUpper(exchange)]; ok {
		return c
	}
	return "USD"
}
