package api

import "smartchart-ingest/internal/database"

// parseTimeframe maps the query-string tf value onto a
// database.Timeframe, defaulting to the 60-minute bar.
func parseTimeframe(raw string) (database.Timeframe, bool) {
	if raw == "" {
		raw = "60"
	}
	tf := database.Timeframe(raw)
	return tf, tf.Valid()
}

// humanizeTimeframe renders tf the way the candles response's
// "timeframe" field expects: minute-denominated intervals as "<n>m",
// day/week as "1D"/"1W".
func humanizeTimeframe(tf database.Timeframe) string {
	switch tf {
	case database.Timeframe1d:
		return "1D"
	case database.Timeframe1w:
		return "1W"
	default:
		return string(tf) + "m"
	}
}
