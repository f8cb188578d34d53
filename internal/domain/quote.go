package domain

import "time"

// Quote is a point-in-time snapshot of a traded instrument.
// Optional fields use pointers: a nil Change means the source did not supply one,
// which is different from a change of zero.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Exchange      string    `json:"exchange"`
	Price         float64   `json:"price"`
	Change        *float64  `json:"change"`
	ChangePercent *float64  `json:"change_percent"`
	PreviousClose *float64  `json:"previous_close"`
	Volume        *int64    `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"` // provider that actually produced the data
}

// Profile holds descriptive metadata for an instrument. Fields other than
// Symbol/Exchange/Name are best-effort and may be empty.
type Profile struct {
	Symbol    string  `json:"symbol"`
	Exchange  string  `json:"exchange"`
	Name      string  `json:"name"`
	Sector    string  `json:"sector,omitempty"`
	Industry  string  `json:"industry,omitempty"`
	MarketCap *int64  `json:"market_cap"`
	Currency  string  `json:"currency"`
	Source    string  `json:"source"`
}
