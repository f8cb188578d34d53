package domain

import "time"

// IndicatorType identifies a derived series computed from price history.
type IndicatorType string

const (
	IndicatorSMA       IndicatorType = "sma"
	IndicatorEMA       IndicatorType = "ema"
	IndicatorRSI       IndicatorType = "rsi"
	IndicatorMACD      IndicatorType = "macd"
	IndicatorBollinger IndicatorType = "bollinger"
)

// IndicatorPoint is one (timestamp, value) sample of a derived series.
type IndicatorPoint struct {
	Timestamp time.Time `json:"t"`
	Value     float64   `json:"value"`
}

// IndicatorSeries is the result of one indicator computation. Single-line
// indicators (SMA, EMA, RSI) populate Data; bundled indicators (MACD,
// Bollinger) populate Lines keyed by line name and leave Data nil.
//
// A series never contains more points than its source bar sequence minus the
// indicator's warm-up window.
type IndicatorSeries struct {
	Symbol   string                      `json:"symbol"`
	Exchange string                      `json:"exchange"`
	Type     IndicatorType               `json:"indicator_type"`
	Period   int                         `json:"period"`
	Interval string                      `json:"interval"`
	Data     []IndicatorPoint            `json:"data,omitempty"`
	Lines    map[string][]IndicatorPoint `json:"lines,omitempty"`
}
