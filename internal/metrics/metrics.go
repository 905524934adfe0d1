// Package metrics exposes Prometheus counters, gauges, and a
// histogram for the ingestion pipeline and read API, registered in
// init() and served at /metrics by internal/api.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	candlesUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_candles_upserted_total",
			Help: "Candles upserted, by timeframe",
		},
		[]string{"timeframe"},
	)

	fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_fetch_errors_total",
			Help: "Kline fetches that exhausted retries, by timeframe",
		},
		[]string{"timeframe"},
	)

	symbolsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_symbols_total",
			Help: "Symbols present in the ticker snapshot after the last reconciliation",
		},
	)

	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_pass_duration_seconds",
			Help:    "Duration of one timeframe's ingestion pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"timeframe"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Read API requests, by route and status",
		},
		[]string{"route", "status"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Circuit breaker state per endpoint: 0=closed,1=half-open,2=open",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(candlesUpserted, fetchErrors, symbolsTotal, passDuration, apiRequests, breakerState)
}

// IncCandlesUpserted adds n to the upserted-candle counter for timeframe.
func IncCandlesUpserted(timeframe string, n int) {
	candlesUpserted.WithLabelValues(timeframe).Add(float64(n))
}

// IncFetchErrors records one exhausted-retries fetch for timeframe.
func IncFetchErrors(timeframe string) {
	fetchErrors.WithLabelValues(timeframe).Inc()
}

// SetIngestSymbolsTotal records the symbol count from the latest reconciliation.
func SetIngestSymbolsTotal(n float64) {
	symbolsTotal.Set(n)
}

// ObservePassDuration records how long one timeframe's ingestion pass took.
func ObservePassDuration(timeframe string, d time.Duration) {
	passDuration.WithLabelValues(timeframe).Observe(d.Seconds())
}

// IncAPIRequest records one read-API request outcome.
func IncAPIRequest(route, status string) {
	apiRequests.WithLabelValues(route, status).Inc()
}

// SetBreakerState records a breaker's current mode (0=closed,1=half-open,2=open).
func SetBreakerState(endpoint string, state int) {
	breakerState.WithLabelValues(endpoint).Set(float64(state))
}
