package api

import (
	"strconv"

	"smartchart-ingest/internal/metrics"
)

func recordAPIRequest(route string, status int) {
	metrics.IncAPIRequest(route, strconv.Itoa(status))
}
