package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"smartchart-ingest/internal/cache"
	"smartchart-ingest/internal/indicators"

	"github.com/gin-gonic/gin"
)

var supportedIndicators = map[string]bool{
	"macd":       true,
	"rsi":        true,
	"volatility": true,
	"dual_ema":   true,
}

// handleGetIndicator serves GET /api/indicators/:indicator/:symbol,
// consulting the indicator cache (§4.H) before falling back to a
// live computation on a miss.
func (s *Server) handleGetIndicator(c *gin.Context) {
	name := c.Param("indicator")
	symbol := c.Param("symbol")

	if !supportedIndicators[name] {
		errorResponse(c, http.StatusBadRequest, "unknown indicator")
		return
	}

	tf, ok := parseTimeframe(c.Query("timeframe"))
	if !ok {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe")
		return
	}

	limit := 20000
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ctx := c.Request.Context()
	key := cache.Key(string(tf), symbol, name, limit)

	var raw json.RawMessage
	if s.cache.Get(ctx, key, &raw) {
		s.respondIndicator(c, name, raw)
		return
	}

	candles, err := s.repo.RecentCandles(ctx, symbol, tf, limit)
	if err != nil {
		s.requestLogger(c).Error("reading candles for indicator failed", "symbol", symbol, "indicator", name, "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to read candles")
		return
	}

	times := make([]int64, 0, len(candles))
	closes := make([]float64, 0, len(candles))
	for _, candle := range candles {
		times = append(times, candle.OpenTime/1000)
		closes = append(closes, candle.Close.InexactFloat64())
	}

	data := computeIndicator(name, times, closes)
	s.cache.Set(ctx, key, data)

	encoded, err := json.Marshal(data)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to encode indicator data")
		return
	}
	s.respondIndicator(c, name, encoded)
}

func (s *Server) respondIndicator(c *gin.Context, name string, data json.RawMessage) {
	count := indicatorCount(data)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"indicator": name,
		"data":      data,
		"count":     count,
	})
}

func indicatorCount(data json.RawMessage) int {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return 0
	}
	return len(arr)
}

// computeIndicator shapes one indicator family's output for the
// single-indicator endpoint: macd/volatility/dual_ema as per-time
// objects, rsi as a flat value series.
func computeIndicator(name string, times []int64, closes []float64) interface{} {
	switch name {
	case "macd":
		r := indicators.MACD(closes, indicators.DefaultMACDFast, indicators.DefaultMACDSlow, indicators.DefaultMACDSignal)
		out := make([]gin.H, len(times))
		for i, t := range times {
			out[i] = gin.H{"time": t, "macd": r.MACD[i], "signal": r.Signal[i], "histogram": r.Histogram[i]}
		}
		return out
	case "dual_ema":
		r := indicators.DualEMA(closes, indicators.DefaultDualEMAFast, indicators.DefaultDualEMASlow)
		out := make([]gin.H, len(times))
		for i, t := range times {
			out[i] = gin.H{"time": t, "ema50": r.EMA50[i], "ema200": r.EMA200[i]}
		}
		return out
	case "volatility":
		r := indicators.Volatility(closes, indicators.DefaultVolatility)
		out := make([]gin.H, len(times))
		for i, t := range times {
			out[i] = gin.H{"time": t, "volatility": r[i]}
		}
		return out
	case "rsi":
		return indicators.RSI(closes, indicators.DefaultRSIPeriod)
	default:
		return []interface{}{}
	}
}
