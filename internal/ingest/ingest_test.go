package ingest

import (
	"testing"

	"smartchart-ingest/internal/bybit"

	"github.com/shopspring/decimal"
)

func TestToCandlesFormatsOpenDatetimeAndTurnover(t *testing.T) {
	rows := []bybit.Kline{
		{
			OpenTime: 1700000000000,
			Open:     decimal.RequireFromString("100.5"),
			High:     decimal.RequireFromString("101.2"),
			Low:      decimal.RequireFromString("99.8"),
			Close:    decimal.RequireFromString("100.9"),
			Volume:   decimal.RequireFromString("1234.5"),
			Turnover: decimal.RequireFromString("123999"),
		},
	}

	candles := toCandles("BTCUSDT", rows)

	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	c := candles[0]
	if c.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", c.Symbol)
	}
	if c.OpenDatetime != "2023-11-14 22:13:20" {
		t.Errorf("OpenDatetime = %q, want 2023-11-14 22:13:20", c.OpenDatetime)
	}
	if c.Turnover != 123999 {
		t.Errorf("Turnover = %d, want 123999", c.Turnover)
	}
	if !c.Open.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Open = %v, want 100.5", c.Open)
	}
}

func TestToCandlesEmptyInput(t *testing.T) {
	candles := toCandles("BTCUSDT", nil)
	if len(candles) != 0 {
		t.Errorf("expected 0 candles, got %d", len(candles))
	}
}
