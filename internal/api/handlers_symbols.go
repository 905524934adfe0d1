package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type symbolSummary struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change24h     float64 `json:"change_24h"`
	Volume24hUSDT float64 `json:"volume_24h_usdt"`
}

// handleGetSymbols serves GET /api/symbols.
func (s *Server) handleGetSymbols(c *gin.Context) {
	tickers, err := s.repo.ListTickerSummaries(c.Request.Context())
	if err != nil {
		s.requestLogger(c).Error("listing ticker summaries failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to list symbols")
		return
	}

	out := make([]symbolSummary, 0, len(tickers))
	for _, t := range tickers {
		summary := symbolSummary{Symbol: t.Symbol}
		if t.LastPrice != nil {
			summary.Price = t.LastPrice.InexactFloat64()
		}
		if t.Price24hPcnt != nil {
			summary.Change24h = t.Price24hPcnt.InexactFloat64() * 100
		}
		if t.Volume24hUSDT != nil {
			summary.Volume24hUSDT = t.Volume24hUSDT.InexactFloat64()
		}
		out = append(out, summary)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "symbols": out})
}
