// Package bybit implements a read-only client for the Bybit v5 public
// market-data REST API: the tickers snapshot and kline (candle)
// backfill endpoints the ingestion pipeline depends on.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"smartchart-ingest/internal/logging"
	"smartchart-ingest/internal/metrics"
	"smartchart-ingest/internal/ratelimit"

	"github.com/shopspring/decimal"
)

// Kline is one closed (or still-forming) OHLCV bar as returned by
// the exchange, already parsed and sorted ascending by OpenTime.
type Kline struct {
	OpenTime int64
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	Turnover decimal.Decimal
}

// Ticker is the 24h snapshot for one symbol. All numeric fields are
// nullable because the exchange omits them for some instrument types.
type Ticker struct {
	Symbol                 string
	LastPrice              *decimal.Decimal
	IndexPrice             *decimal.Decimal
	MarkPrice              *decimal.Decimal
	PrevPrice24h           *decimal.Decimal
	Price24hPcnt           *decimal.Decimal
	HighPrice24h           *decimal.Decimal
	LowPrice24h            *decimal.Decimal
	PrevPrice1h            *decimal.Decimal
	OpenInterest           *decimal.Decimal
	OpenInterestValue      *decimal.Decimal
	Turnover24h            *decimal.Decimal
	Volume24h              *decimal.Decimal
	FundingRate            *decimal.Decimal
	NextFundingTime        *decimal.Decimal
	PredictedDeliveryPrice *decimal.Decimal
	BasisRate              *decimal.Decimal
	DeliveryFeeRate        *decimal.Decimal
	DeliveryTime           *decimal.Decimal
	Ask1Size               *decimal.Decimal
	Bid1Price              *decimal.Decimal
	Ask1Price              *decimal.Decimal
	Bid1Size               *decimal.Decimal
	Basis                  *string
}

type envelope struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List json.RawMessage `json:"list"`
	} `json:"result"`
}

// Client talks to Bybit's public v5 market-data endpoints, gating
// every request on a shared ratelimit.Limiter and a single Breaker.
// The tickers and kline endpoints share that one Breaker: failures on
// either count toward the same trip threshold.
type Client struct {
	baseURL    string
	category   string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *Breaker
	maxRetries int
	retryDelay time.Duration
	logger     *logging.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Category   string
	MaxRetries int
	RetryDelay time.Duration
	Breaker    BreakerConfig
}

// NewClient builds a Client sharing the given limiter across all
// requests it issues.
func NewClient(cfg Config, limiter *ratelimit.Limiter, logger *logging.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		category: cfg.Category,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 60 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
		limiter:    limiter,
		breaker:    NewBreaker(cfg.Breaker),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger.WithComponent("bybit"),
	}
}

// GetTickers fetches the full linear-perpetual ticker snapshot.
func (c *Client) GetTickers(ctx context.Context) ([]Ticker, error) {
	endpoint := fmt.Sprintf("%s/v5/market/tickers?category=%s", c.baseURL, c.category)

	raw, err := c.fetchWithRetry(ctx, endpoint, "tickers", "")
	if err != nil || raw == nil {
		return nil, err
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parsing tickers list: %w", err)
	}

	tickers := make([]Ticker, 0, len(rows))
	for _, row := range rows {
		tickers = append(tickers, parseTicker(row))
	}
	return tickers, nil
}

// GetKlines fetches up to 1000 candles for symbol/interval, at or
// after startMs, sorted ascending by OpenTime (the exchange returns
// them descending). An empty result means either genuine end of
// backlog or exhausted retries — the pipeline treats both as "stop
// fetching this symbol this pass".
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startMs int64) ([]Kline, error) {
	endpoint := fmt.Sprintf("%s/v5/market/kline?category=%s&symbol=%s&interval=%s&limit=1000",
		c.baseURL, c.category, symbol, interval)
	if startMs > 0 {
		endpoint = fmt.Sprintf("%s&start=%d", endpoint, startMs)
	}

	raw, err := c.fetchWithRetry(ctx, endpoint, "kline:"+symbol, interval)
	if err != nil || raw == nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parsing kline list for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(rows))
	for _, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			c.logger.Warn("skipping malformed kline row", "symbol", symbol, "error", err)
			continue
		}
		klines = append(klines, k)
	}

	sort.Slice(klines, func(i, j int) bool { return klines[i].OpenTime < klines[j].OpenTime })
	return klines, nil
}

// fetchWithRetry issues one GET, honoring the circuit breaker and the
// per-request exponential-backoff retry policy (1,2,4,8,16s across up
// to maxRetries attempts). It returns (nil, nil) on soft failure —
// the exhausted-retries case the caller treats as "nothing more".
//
// label identifies the call for logging (may carry a per-symbol
// suffix); timeframe is the kline interval for fetch-error accounting
// and is empty for the tickers endpoint, which has none.
func (c *Client) fetchWithRetry(ctx context.Context, endpoint, label, timeframe string) ([]byte, error) {
	endpointClass := "tickers"
	if timeframe != "" {
		endpointClass = "kline"
	}

	if !c.breaker.Allow() {
		c.logger.Debug("circuit breaker open, short-circuiting request", "label", label)
		return nil, nil
	}

	wait := time.Second
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		list, ok := c.doRequest(ctx, endpoint)
		if ok {
			c.breaker.RecordSuccess()
			metrics.SetBreakerState(endpointClass, c.breaker.MetricValue())
			return list, nil
		}

		c.logger.Debug("request attempt failed, backing off", "label", label, "attempt", attempt+1, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		wait *= 2
	}

	c.breaker.RecordFailure()
	metrics.SetBreakerState(endpointClass, c.breaker.MetricValue())
	if timeframe != "" {
		metrics.IncFetchErrors(timeframe)
	}
	c.logger.Warn("exhausted retries, soft failure", "label", label, "attempts", c.maxRetries)
	return nil, nil
}

// doRequest performs a single HTTP round trip. ok is false for any
// condition the retry loop should treat as a failed attempt: non-200,
// transport error, malformed JSON, or a non-zero retCode.
func (c *Client) doRequest(ctx context.Context, endpoint string) (list []byte, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.RetCode != 0 {
		return nil, false
	}

	return env.Result.List, true
}

func parseKline(row []string) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, fmt.Errorf("expected 7 fields, got %d", len(row))
	}

	openTime, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parsing open_time: %w", err)
	}

	open, err := decimal.NewFromString(row[1])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing open: %w", err)
	}
	high, err := decimal.NewFromString(row[2])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing high: %w", err)
	}
	low, err := decimal.NewFromString(row[3])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing low: %w", err)
	}
	closePrice, err := decimal.NewFromString(row[4])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing close: %w", err)
	}
	volume, err := decimal.NewFromString(row[5])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing volume: %w", err)
	}
	turnover, err := decimal.NewFromString(row[6])
	if err != nil {
		return Kline{}, fmt.Errorf("parsing turnover: %w", err)
	}

	return Kline{
		OpenTime: openTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Turnover: turnover.Round(0),
	}, nil
}

func parseTicker(row map[string]json.RawMessage) Ticker {
	t := Ticker{Symbol: decodeString(row["symbol"])}

	t.LastPrice = decodeDecimal(row["lastPrice"])
	t.IndexPrice = decodeDecimal(row["indexPrice"])
	t.MarkPrice = decodeDecimal(row["markPrice"])
	t.PrevPrice24h = decodeDecimal(row["prevPrice24h"])
	t.Price24hPcnt = decodeDecimal(row["price24hPcnt"])
	t.HighPrice24h = decodeDecimal(row["highPrice24h"])
	t.LowPrice24h = decodeDecimal(row["lowPrice24h"])
	t.PrevPrice1h = decodeDecimal(row["prevPrice1h"])
	t.OpenInterest = decodeDecimal(row["openInterest"])
	t.OpenInterestValue = decodeDecimal(row["openInterestValue"])
	t.Turnover24h = decodeDecimal(row["turnover24h"])
	t.Volume24h = decodeDecimal(row["volume24h"])
	t.FundingRate = decodeDecimal(row["fundingRate"])
	t.NextFundingTime = decodeDecimal(row["nextFundingTime"])
	t.PredictedDeliveryPrice = decodeDecimal(row["predictedDeliveryPrice"])
	t.BasisRate = decodeDecimal(row["basisRate"])
	t.DeliveryFeeRate = decodeDecimal(row["deliveryFeeRate"])
	t.DeliveryTime = decodeDecimal(row["deliveryTime"])
	t.Ask1Size = decodeDecimal(row["ask1Size"])
	t.Bid1Price = decodeDecimal(row["bid1Price"])
	t.Ask1Price = decodeDecimal(row["ask1Price"])
	t.Bid1Size = decodeDecimal(row["bid1Size"])

	if basis := decodeString(row["basis"]); basis != "" {
		t.Basis = &basis
	}

	return t
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

// decodeDecimal returns nil for a missing field or an empty string,
// matching the exchange's "null when missing" numeric convention.
func decodeDecimal(raw json.RawMessage) *decimal.Decimal {
	s := decodeString(raw)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
