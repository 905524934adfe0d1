package api

import (
	"encoding/json"
	"testing"
)

func TestComputeIndicatorRSIIsFlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	times := make([]int64, len(closes))

	data := computeIndicator("rsi", times, closes)

	encoded, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var arr []interface{}
	if err := json.Unmarshal(encoded, &arr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(arr) != len(closes) {
		t.Fatalf("len(arr) = %d, want %d", len(arr), len(closes))
	}
}

func TestComputeIndicatorMACDIsPerTimeObjects(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	times := []int64{10, 20, 30, 40, 50}

	data := computeIndicator("macd", times, closes)

	encoded, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var arr []map[string]interface{}
	if err := json.Unmarshal(encoded, &arr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(arr) != len(times) {
		t.Fatalf("len(arr) = %d, want %d", len(arr), len(times))
	}
	if _, ok := arr[0]["macd"]; !ok {
		t.Error("expected macd field in per-time object")
	}
	if int64(arr[0]["time"].(float64)) != times[0] {
		t.Errorf("time = %v, want %d", arr[0]["time"], times[0])
	}
}

func TestIndicatorCount(t *testing.T) {
	raw := json.RawMessage(`[1, null, 3]`)
	if got := indicatorCount(raw); got != 3 {
		t.Errorf("indicatorCount = %d, want 3", got)
	}
}
