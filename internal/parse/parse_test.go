package parse

import "testing"

func TestPrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"plain", "123.45", 123.45, true},
		{"dollar with commas", "$1,234.56", 1234.56, true},
		{"rupee", "₹2,456.10", 2456.10, true},
		{"euro", "€98.20", 98.20, true},
		{"pound", "£54.00", 54.00, true},
		{"surrounding whitespace", "  42.0  ", 42.0, true},
		{"negative", "-1.25", -1.25, true},
		{"empty", "", 0, false},
		{"garbage", "n/a", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.input)
			if ok != tt.ok {
				t.Fatalf("Price(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Price(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"plain percent", "1.25%", 1.25, true},
		{"parenthesised", "(0.85%)", 0.85, true},
		{"negative", "-2.4%", -2.4, true},
		{"no sign", "3.5", 3.5, true},
		{"empty", "", 0, false},
		{"garbage", "abc%", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percent(tt.input)
			if ok != tt.ok {
				t.Fatalf("Percent(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Percent(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
		ok    bool
	}{
		{"millions", "1.2M", 1_200_000, true},
		{"thousands", "500K", 500_000, true},
		{"billions", "2.97B", 2_970_000_000, true},
		{"lowercase suffix", "3.5m", 3_500_000, true},
		{"plain with commas", "1,234,567", 1_234_567, true},
		{"plain digits", "42000", 42_000, true},
		{"empty", "", 0, false},
		{"garbage", "bad", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Magnitude(tt.input)
			if ok != tt.ok {
				t.Fatalf("Magnitude(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Magnitude(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
