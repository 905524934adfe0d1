package indicators

import (
	"math"
	"testing"
)

func seriesFloats(t *testing.T, s Series) []float64 {
	t.Helper()
	out := make([]float64, len(s))
	for i, v := range s {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

func assertUndefined(t *testing.T, s Series, indices ...int) {
	t.Helper()
	for _, i := range indices {
		if s[i] != nil {
			t.Errorf("expected index %d to be undefined, got %v", i, *s[i])
		}
	}
}

func assertDefined(t *testing.T, s Series, indices ...int) {
	t.Helper()
	for _, i := range indices {
		if s[i] == nil {
			t.Errorf("expected index %d to be defined", i)
		}
	}
}

func TestEMAReferenceScenario(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ema := EMA(prices, 3)

	assertUndefined(t, ema, 0, 1)
	want := []float64{2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0}
	for i, w := range want {
		idx := i + 2
		if ema[idx] == nil {
			t.Fatalf("expected defined value at %d", idx)
		}
		if math.Abs(*ema[idx]-w) > 1e-9 {
			t.Errorf("ema[%d] = %v, want %v", idx, *ema[idx], w)
		}
	}
}

func TestEMASeedingIdentity(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	sma := SMA(prices, 3)
	ema := EMA(prices, 3)
	if *sma[2] != *ema[2] {
		t.Errorf("ema[k-1] = %v, want sma[k-1] = %v", *ema[2], *sma[2])
	}
}

func TestRSIAllUpScenario(t *testing.T) {
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = float64(i + 1)
	}
	rsi := RSI(prices, 14)

	assertUndefined(t, rsi, 0, 13)
	if *rsi[14] != 100 {
		t.Errorf("rsi[14] = %v, want 100", *rsi[14])
	}
	if *rsi[15] != 100 {
		t.Errorf("rsi[15] = %v, want 100", *rsi[15])
	}
}

func TestRSIBounds(t *testing.T) {
	prices := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.85,
		46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	rsi := RSI(prices, 14)
	for i, v := range rsi {
		if v == nil {
			continue
		}
		if *v < 0 || *v > 100 {
			t.Errorf("rsi[%d] = %v out of bounds", i, *v)
		}
	}
}

func TestBollingerFlatScenario(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 10
	}
	bb := Bollinger(prices, 20, 2.0)

	assertUndefined(t, bb.Middle, 0, 18)
	for i := 19; i < 25; i++ {
		if *bb.Middle[i] != 10 {
			t.Errorf("middle[%d] = %v, want 10", i, *bb.Middle[i])
		}
		if *bb.Upper[i] != 10 {
			t.Errorf("upper[%d] = %v, want 10", i, *bb.Upper[i])
		}
		if *bb.Lower[i] != 10 {
			t.Errorf("lower[%d] = %v, want 10", i, *bb.Lower[i])
		}
	}
}

func TestIndicatorTotality(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	n := len(prices)

	if len(SMA(prices, 3)) != n {
		t.Error("SMA length mismatch")
	}
	if len(EMA(prices, 3)) != n {
		t.Error("EMA length mismatch")
	}
	macd := MACD(prices, 3, 5, 2)
	if len(macd.MACD) != n || len(macd.Signal) != n || len(macd.Histogram) != n {
		t.Error("MACD length mismatch")
	}
	if len(RSI(prices, 5)) != n {
		t.Error("RSI length mismatch")
	}
	bb := Bollinger(prices, 5, 2.0)
	if len(bb.Upper) != n || len(bb.Middle) != n || len(bb.Lower) != n {
		t.Error("Bollinger length mismatch")
	}
	if len(Volatility(prices, 5)) != n {
		t.Error("Volatility length mismatch")
	}
	dual := DualEMA(prices, 3, 5)
	if len(dual.EMA50) != n || len(dual.EMA200) != n {
		t.Error("DualEMA length mismatch")
	}
}

func TestMACDHistogramIdentity(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20,
		21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40}
	result := MACD(prices, 12, 26, 9)

	for i := range prices {
		if result.MACD[i] != nil && result.Signal[i] != nil {
			want := *result.MACD[i] - *result.Signal[i]
			if result.Histogram[i] == nil {
				t.Fatalf("histogram[%d] undefined but macd/signal both defined", i)
			}
			if math.Abs(*result.Histogram[i]-want) > 1e-9 {
				t.Errorf("histogram[%d] = %v, want %v", i, *result.Histogram[i], want)
			}
		}
	}
}

func TestShortInputUndefined(t *testing.T) {
	prices := []float64{1, 2}
	sma := SMA(prices, 5)
	assertUndefined(t, sma, 0, 1)

	ema := EMA(prices, 5)
	assertUndefined(t, ema, 0, 1)

	rsi := RSI(prices, 14)
	assertUndefined(t, rsi, 0, 1)
}

func TestVolatilityWarmup(t *testing.T) {
	prices := make([]float64, 210)
	for i := range prices {
		prices[i] = 100 + float64(i%3)
	}
	vol := Volatility(prices, 200)
	assertUndefined(t, vol, 0, 199)
	assertDefined(t, vol, 200, 209)
}
