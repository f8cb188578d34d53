package domain

import "time"

// PriceBar is a single OHLCV observation. Bars for one instrument are ordered
// ascending by timestamp and are never mutated once stored.
type PriceBar struct {
	Timestamp     time.Time `json:"t"`
	Open          float64   `json:"o"`
	High          float64   `json:"h"`
	Low           float64   `json:"l"`
	Close         float64   `json:"c"`
	Volume        *int64    `json:"v"`
	Change        *float64  `json:"change,omitempty"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	PreviousClose *float64  `json:"previous_close,omitempty"`
	Source        string    `json:"source,omitempty"`
}
