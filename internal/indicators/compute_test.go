package indicators

import (
	"math"
	"testing"
	"time"

	"equialert/internal/domain"
)

func barsFromCloses(closes []float64) []domain.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Timestamp: base.AddDate(0, 0, i), Close: c}
	}
	return bars
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5})
	points := SMA(bars, 3)

	// The first period-1 positions are undefined, so only three points remain.
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(points[i].Value, w) {
			t.Errorf("point %d: got %v, want %v", i, points[i].Value, w)
		}
		if !points[i].Timestamp.Equal(bars[i+2].Timestamp) {
			t.Errorf("point %d: timestamp %v, want %v", i, points[i].Timestamp, bars[i+2].Timestamp)
		}
	}
}

func TestSMAInsufficientData(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2})
	if points := SMA(bars, 3); points != nil {
		t.Errorf("expected nil for insufficient data, got %d points", len(points))
	}
}

func TestEMASeededByFirstClose(t *testing.T) {
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5})
	points := EMA(bars, 3)

	// Smoothing factor 2/(3+1) = 0.5, seeded at the first close: every bar
	// produces a point.
	if len(points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(points))
	}
	want := []float64{1, 1.5, 2.25, 3.125, 4.0625}
	for i, w := range want {
		if !almostEqual(points[i].Value, w) {
			t.Errorf("point %d: got %v, want %v", i, points[i].Value, w)
		}
	}
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.5,
		45.0, 44.6, 44.7, 45.2, 45.7, 46.5, 46.2, 45.6}
	bars := barsFromCloses(closes)
	points := RSI(bars, 14)

	if len(points) == 0 {
		t.Fatal("expected RSI points for a non-constant series")
	}
	for _, p := range points {
		if p.Value < 0 || p.Value > 100 {
			t.Errorf("RSI value %v outside [0, 100]", p.Value)
		}
	}
}

func TestRSIUndefinedWhenNoLosses(t *testing.T) {
	// A strictly rising series has zero average loss in every window: RSI is
	// undefined for all of them, never clamped to 100.
	bars := barsFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	points := RSI(bars, 3)
	if len(points) != 0 {
		t.Errorf("expected no defined points, got %d", len(points))
	}
}

func TestRSIOmitsOnlyZeroLossWindows(t *testing.T) {
	// One early loss, rising afterwards: the window containing the loss is
	// defined, the later all-gain windows are not.
	bars := barsFromCloses([]float64{5, 4, 5, 6, 7, 8, 9})
	points := RSI(bars, 3)

	if len(points) != 1 {
		t.Fatalf("expected 1 defined point, got %d", len(points))
	}
	for _, p := range points {
		if p.Value <= 0 || p.Value >= 100 {
			t.Errorf("RSI value %v outside (0, 100)", p.Value)
		}
	}
}

func TestMACDHistogramIdentity(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		// Deterministic but non-trivial shape.
		closes[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i%7)
	}
	bars := barsFromCloses(closes)
	lines := MACD(bars, 12, 26, 9)

	macd := lines[LineMACD]
	signal := lines[LineSignal]
	hist := lines[LineHistogram]
	if len(macd) != len(bars) || len(signal) != len(bars) || len(hist) != len(bars) {
		t.Fatalf("line lengths %d/%d/%d, want %d", len(macd), len(signal), len(hist), len(bars))
	}
	for i := range bars {
		if !almostEqual(hist[i].Value, macd[i].Value-signal[i].Value) {
			t.Errorf("bar %d: histogram %v != macd-signal %v",
				i, hist[i].Value, macd[i].Value-signal[i].Value)
		}
	}
}

func TestBollinger(t *testing.T) {
	bars := barsFromCloses([]float64{2, 4, 6, 8, 10})
	lines := Bollinger(bars, 3, 2)

	middle := lines[LineMiddle]
	upper := lines[LineUpper]
	lower := lines[LineLower]
	if len(middle) != 3 {
		t.Fatalf("expected 3 points, got %d", len(middle))
	}

	// Window [2 4 6]: mean 4, sample std 2 -> bands at 4 +/- 4.
	if !almostEqual(middle[0].Value, 4) {
		t.Errorf("middle[0] = %v, want 4", middle[0].Value)
	}
	if !almostEqual(upper[0].Value, 8) {
		t.Errorf("upper[0] = %v, want 8", upper[0].Value)
	}
	if !almostEqual(lower[0].Value, 0) {
		t.Errorf("lower[0] = %v, want 0", lower[0].Value)
	}

	// Bands are symmetric around the middle everywhere.
	for i := range middle {
		if !almostEqual(upper[i].Value-middle[i].Value, middle[i].Value-lower[i].Value) {
			t.Errorf("point %d: bands not symmetric", i)
		}
	}
}
