package indicators

import (
	"math"

	"equialert/internal/domain"
)

// SMA computes the simple moving average of the closing prices: the
// arithmetic mean of the trailing `period` closes. The series is undefined
// for the first period-1 bars, so the result has len(bars)-period+1 points.
func SMA(bars []domain.PriceBar, period int) []domain.IndicatorPoint {
	if len(bars) < period || period <= 0 {
		return nil
	}
	points := make([]domain.IndicatorPoint, 0, len(bars)-period+1)
	sum := 0.0
	for i, b := range bars {
		sum += b.Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			points = append(points, domain.IndicatorPoint{
				Timestamp: b.Timestamp,
				Value:     sum / float64(period),
			})
		}
	}
	return points
}

// emaValues applies exponential smoothing with factor 2/(period+1), seeded
// by the first observed value. Every input position produces an output
// value, so there is no warm-up window.
func emaValues(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// EMA computes the exponential moving average of the closing prices, seeded
// by the first observed close.
func EMA(bars []domain.PriceBar, period int) []domain.IndicatorPoint {
	if len(bars) == 0 || period <= 0 {
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema := emaValues(closes, period)
	points := make([]domain.IndicatorPoint, len(bars))
	for i, b := range bars {
		points[i] = domain.IndicatorPoint{Timestamp: b.Timestamp, Value: ema[i]}
	}
	return points
}

// RSI computes the Relative Strength Index over a rolling window: the mean
// positive close delta over `period` divided by the mean negative delta (as
// a positive magnitude), scaled as 100 - 100/(1+RS).
//
// A window whose average loss is zero has no defined RSI (the ratio divides
// by zero); such points are omitted from the series rather than clamped to
// 100, so callers must not assume one point per bar.
func RSI(bars []domain.PriceBar, period int) []domain.IndicatorPoint {
	if len(bars) <= period || period <= 0 {
		return nil
	}
	points := make([]domain.IndicatorPoint, 0, len(bars)-period)
	for i := period; i < len(bars); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			delta := bars[j].Close - bars[j-1].Close
			if delta > 0 {
				gains += delta
			} else {
				losses -= delta
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)
		if avgLoss == 0 {
			continue
		}
		rs := avgGain / avgLoss
		points = append(points, domain.IndicatorPoint{
			Timestamp: bars[i].Timestamp,
			Value:     100 - (100 / (1 + rs)),
		})
	}
	return points
}

// MACD line names in the returned bundle.
const (
	LineMACD      = "macd"
	LineSignal    = "signal"
	LineHistogram = "histogram"
)

// MACD computes the Moving Average Convergence Divergence bundle: the
// difference of the fast and slow EMAs as the MACD line, an EMA of the MACD
// line as the signal line, and their difference as the histogram. All three
// series cover every input bar.
func MACD(bars []domain.PriceBar, fast, slow, signal int) map[string][]domain.IndicatorPoint {
	if len(bars) == 0 {
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	emaFast := emaValues(closes, fast)
	emaSlow := emaValues(closes, slow)

	macdLine := make([]float64, len(bars))
	for i := range bars {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := emaValues(macdLine, signal)

	out := map[string][]domain.IndicatorPoint{
		LineMACD:      make([]domain.IndicatorPoint, len(bars)),
		LineSignal:    make([]domain.IndicatorPoint, len(bars)),
		LineHistogram: make([]domain.IndicatorPoint, len(bars)),
	}
	for i, b := range bars {
		out[LineMACD][i] = domain.IndicatorPoint{Timestamp: b.Timestamp, Value: macdLine[i]}
		out[LineSignal][i] = domain.IndicatorPoint{Timestamp: b.Timestamp, Value: signalLine[i]}
		out[LineHistogram][i] = domain.IndicatorPoint{Timestamp: b.Timestamp, Value: macdLine[i] - signalLine[i]}
	}
	return out
}

// Bollinger band line names in the returned bundle.
const (
	LineUpper  = "upper"
	LineMiddle = "middle"
	LineLower  = "lower"
)

// Bollinger computes Bollinger Bands: middle = SMA(period), upper/lower =
// middle +/- multiplier * rolling sample standard deviation over the same
// window. Shares SMA's warm-up window of period-1 bars.
func Bollinger(bars []domain.PriceBar, period int, multiplier float64) map[string][]domain.IndicatorPoint {
	if len(bars) < period || period < 2 {
		return nil
	}
	n := len(bars) - period + 1
	out := map[string][]domain.IndicatorPoint{
		LineUpper:  make([]domain.IndicatorPoint, 0, n),
		LineMiddle: make([]domain.IndicatorPoint, 0, n),
		LineLower:  make([]domain.IndicatorPoint, 0, n),
	}
	for i := period - 1; i < len(bars); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += bars[j].Close
		}
		mean /= float64(period)

		// Sample standard deviation (divisor period-1).
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := bars[j].Close - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period-1))

		ts := bars[i].Timestamp
		out[LineMiddle] = append(out[LineMiddle], domain.IndicatorPoint{Timestamp: ts, Value: mean})
		out[LineUpper] = append(out[LineUpper], domain.IndicatorPoint{Timestamp: ts, Value: mean + multiplier*sd})
		out[LineLower] = append(out[LineLower], domain.IndicatorPoint{Timestamp: ts, Value: mean - multiplier*sd})
	}
	return out
}
