package api

import (
	"net/http"
	"strconv"

	"smartchart-ingest/internal/indicators"

	"github.com/gin-gonic/gin"
)

type candlePoint struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// handleGetCandles serves GET /api/candles/:symbol.
func (s *Server) handleGetCandles(c *gin.Context) {
	symbol := c.Param("symbol")

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

	includeIndicators := true
	if raw := c.Query("include_indicators"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			includeIndicators = b
		}
	}

	candles, err := s.repo.RecentCandles(c.Request.Context(), symbol, tf, limit)
	if err != nil {
		s.requestLogger(c).Error("reading candles failed", "symbol", symbol, "timeframe", string(tf), "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to read candles")
		return
	}

	points := make([]candlePoint, 0, len(candles))
	closes := make([]float64, 0, len(candles))
	for _, candle := range candles {
		points = append(points, candlePoint{
			Time:   candle.OpenTime / 1000,
			Open:   candle.Open.InexactFloat64(),
			High:   candle.High.InexactFloat64(),
			Low:    candle.Low.InexactFloat64(),
			Close:  candle.Close.InexactFloat64(),
			Volume: candle.Volume.InexactFloat64(),
		})
		closes = append(closes, candle.Close.InexactFloat64())
	}

	resp := gin.H{
		"success":   true,
		"data":      points,
		"count":     len(points),
		"symbol":    symbol,
		"timeframe": humanizeTimeframe(tf),
	}
	if includeIndicators {
		resp["indicators"] = allIndicators(closes)
	}

	c.JSON(http.StatusOK, resp)
}

// allIndicators computes every indicator family with its default
// parameters, matching the candles response's embedded "indicators" block.
func allIndicators(closes []float64) gin.H {
	macd := indicators.MACD(closes, indicators.DefaultMACDFast, indicators.DefaultMACDSlow, indicators.DefaultMACDSignal)
	dualEMA := indicators.DualEMA(closes, indicators.DefaultDualEMAFast, indicators.DefaultDualEMASlow)
	rsi := indicators.RSI(closes, indicators.DefaultRSIPeriod)
	volatility := indicators.Volatility(closes, indicators.DefaultVolatility)

	return gin.H{
		"macd": gin.H{
			"macd":      macd.MACD,
			"signal":    macd.Signal,
			"histogram": macd.Histogram,
		},
		"volatility": volatility,
		"dual_ema": gin.H{
			"ema50":  dualEMA.EMA50,
			"ema200": dualEMA.EMA200,
		},
		"rsi": rsi,
	}
}
