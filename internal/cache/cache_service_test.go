package cache

import (
	"context"
	"testing"

	"smartchart-ingest/config"
	"smartchart-ingest/internal/logging"
)

func TestKeyFormat(t *testing.T) {
	got := Key("60", "BTCUSDT", "macd", 500)
	want := "indicator:60:BTCUSDT:macd:500"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestPassThroughModeWhenRedisDisabled(t *testing.T) {
	logger := logging.New(&logging.Config{Level: "error", Output: "stderr", Component: "test"})
	ic := NewIndicatorCache(config.RedisConfig{Enabled: false}, logger)
	defer ic.Close()

	if ic.IsHealthy() {
		t.Error("pass-through cache should not report healthy")
	}

	var dest map[string]int
	if ic.Get(context.Background(), Key("60", "BTCUSDT", "rsi", 100), &dest) {
		t.Error("Get should always miss in pass-through mode")
	}

	// Set must be a no-op, not a panic, when there is no backing client.
	ic.Set(context.Background(), Key("60", "BTCUSDT", "rsi", 100), map[string]int{"a": 1})
}
