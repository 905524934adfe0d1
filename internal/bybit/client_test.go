package bybit

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseKline(t *testing.T) {
	row := []string{"1700000000000", "100.5", "101.2", "99.8", "100.9", "1234.5", "123999.789"}

	k, err := parseKline(row)
	if err != nil {
		t.Fatalf("parseKline: %v", err)
	}

	if k.OpenTime != 1700000000000 {
		t.Errorf("OpenTime = %d, want 1700000000000", k.OpenTime)
	}
	if !k.Open.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Open = %v, want 100.5", k.Open)
	}
	if !k.Turnover.Equal(decimal.RequireFromString("123999.789").Round(0)) {
		t.Errorf("Turnover = %v, want rounded 123999.789", k.Turnover)
	}
}

func TestParseKlineRejectsShortRow(t *testing.T) {
	_, err := parseKline([]string{"1", "2", "3"})
	if err == nil {
		t.Error("expected error for short kline row")
	}
}

func TestParseTickerNullableFields(t *testing.T) {
	raw := map[string]json.RawMessage{
		"symbol":      json.RawMessage(`"BTCUSDT"`),
		"lastPrice":   json.RawMessage(`"65000.5"`),
		"fundingRate": json.RawMessage(`""`),
		"basis":       json.RawMessage(`""`),
	}

	ticker := parseTicker(raw)

	if ticker.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", ticker.Symbol)
	}
	if ticker.LastPrice == nil {
		t.Fatal("expected LastPrice to be defined")
	}
	if ticker.FundingRate != nil {
		t.Error("expected empty-string fundingRate to decode as nil")
	}
	if ticker.Basis != nil {
		t.Error("expected empty-string basis to decode as nil")
	}
	if ticker.MarkPrice != nil {
		t.Error("expected missing markPrice to decode as nil")
	}
}
