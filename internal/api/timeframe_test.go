package api

import (
	"testing"

	"smartchart-ingest/internal/database"
)

func TestParseTimeframeDefaultsTo60(t *testing.T) {
	tf, ok := parseTimeframe("")
	if !ok || tf != database.Timeframe1h {
		t.Fatalf("parseTimeframe(\"\") = (%v, %v), want (60, true)", tf, ok)
	}
}

func TestParseTimeframeRejectsUnknown(t *testing.T) {
	if _, ok := parseTimeframe("3"); ok {
		t.Error("expected unknown timeframe to be rejected")
	}
}

func TestHumanizeTimeframe(t *testing.T) {
	cases := map[database.Timeframe]string{
		database.Timeframe1h: "60m",
		database.Timeframe1d: "1D",
		database.Timeframe1w: "1W",
	}
	for tf, want := range cases {
		if got := humanizeTimeframe(tf); got != want {
			t.Errorf("humanizeTimeframe(%v) = %q, want %q", tf, got, want)
		}
	}
}
