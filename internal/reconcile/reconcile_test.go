package reconcile

import (
	"testing"

	"smartchart-ingest/internal/bybit"

	"github.com/shopspring/decimal"
)

func TestFilterUSDT(t *testing.T) {
	in := []bybit.Ticker{
		{Symbol: "BTCUSDT"},
		{Symbol: "ETHUSDC"},
		{Symbol: "SOLUSDT"},
	}

	out := filterUSDT(in)

	if len(out) != 2 {
		t.Fatalf("expected 2 USDT symbols, got %d", len(out))
	}
	if out[0].Symbol != "BTCUSDT" || out[1].Symbol != "SOLUSDT" {
		t.Errorf("unexpected filtered symbols: %+v", out)
	}
}

func TestToDBTickerPreservesNullability(t *testing.T) {
	price := decimal.RequireFromString("65000.5")
	in := bybit.Ticker{Symbol: "BTCUSDT", LastPrice: &price, FundingRate: nil}

	out := toDBTicker(in)

	if out.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", out.Symbol)
	}
	if out.LastPrice == nil || !out.LastPrice.Equal(price) {
		t.Errorf("LastPrice = %v, want %v", out.LastPrice, price)
	}
	if out.FundingRate != nil {
		t.Error("expected nil FundingRate to stay nil")
	}
}
