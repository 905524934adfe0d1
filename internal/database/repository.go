package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smartchart-ingest/internal/logging"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Repository provides data access methods for candles and tickers.
type Repository struct {
	db         *DB
	maxRetries int
	retryDelay time.Duration
}

// NewRepository creates a new repository. maxRetries/retryDelay
// govern the deadlock/serialization-failure retry policy of
// UpsertCandles.
func NewRepository(db *DB, maxRetries int, retryDelay time.Duration) *Repository {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &Repository{db: db, maxRetries: maxRetries, retryDelay: retryDelay}
}

// HealthCheck performs a trivial liveness query against the store.
func (r *Repository) HealthCheck(ctx context.Context) error {
	var one int
	return r.db.Pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// ListSymbols returns every symbol present in the ticker snapshot,
// ordered by turnover24h descending.
func (r *Repository) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT symbol FROM tickers ORDER BY turnover_24h DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// LastOpenTime returns the max open_time stored for symbol in the
// given timeframe's table, or (0, false) if no rows exist.
func (r *Repository) LastOpenTime(ctx context.Context, symbol string, tf Timeframe) (int64, bool, error) {
	table := tf.TableName()
	if table == "" {
		return 0, false, fmt.Errorf("unknown timeframe %q", tf)
	}

	query := fmt.Sprintf(`SELECT MAX(open_time) FROM %s WHERE symbol = $1`, table)

	var openTime *int64
	if err := r.db.Pool.QueryRow(ctx, query, symbol).Scan(&openTime); err != nil {
		return 0, false, fmt.Errorf("reading watermark for %s/%s: %w", symbol, tf, err)
	}
	if openTime == nil {
		return 0, false, nil
	}
	return *openTime, true, nil
}

// UpsertCandles atomically inserts rows for symbol into the given
// timeframe's table, overwriting all non-key columns on a
// primary-key conflict. Retries on Postgres deadlock (40P01) or
// serialization failure (40001), the Postgres equivalents of MySQL's
// error 1213.
func (r *Repository) UpsertCandles(ctx context.Context, symbol string, tf Timeframe, rows []Candle) error {
	table := tf.TableName()
	if table == "" {
		return fmt.Errorf("unknown timeframe %q", tf)
	}
	if len(rows) == 0 {
		return nil
	}

	query, args := buildUpsertQuery(table, rows)

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		_, err := r.db.Pool.Exec(ctx, query, args...)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return fmt.Errorf("upserting %d candles for %s/%s: %w", len(rows), symbol, tf, err)
		}

		lastErr = err
		logging.WithComponent("database").Warn("retrying upsert after transient failure",
			"symbol", symbol, "timeframe", string(tf), "attempt", attempt+1, "error", err)

		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("upserting %d candles for %s/%s after %d retries: %w", len(rows), symbol, tf, r.maxRetries, lastErr)
}

func buildUpsertQuery(table string, rows []Candle) (string, []interface{}) {
	const columnsPerRow = 9

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (symbol, open_time, open_datetime, open, high, low, close, volume, turnover) VALUES ",
		table,
	))

	args := make([]interface{}, 0, len(rows)*columnsPerRow)
	for i, c := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnsPerRow
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args, c.Symbol, c.OpenTime, c.OpenDatetime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Turnover)
	}

	sb.WriteString(` ON CONFLICT (symbol, open_time) DO UPDATE SET
		open_datetime = EXCLUDED.open_datetime,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		turnover = EXCLUDED.turnover`)

	return sb.String(), args
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !asPgError(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40P01" || pgErr.Code == "40001"
}

func asPgError(err error, target **pgconn.PgError) bool {
	pgErr, ok := err.(*pgconn.PgError)
	if ok {
		*target = pgErr
		return true
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return asPgError(u.Unwrap(), target)
	}
	return false
}

// TruncateTickers empties the tickers table ahead of a full rewrite.
func (r *Repository) TruncateTickers(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, "TRUNCATE TABLE tickers")
	if err != nil {
		return fmt.Errorf("truncating tickers: %w", err)
	}
	return nil
}

// InsertTicker inserts one ticker row. Called once per symbol after
// TruncateTickers as part of the reconciliation cycle.
func (r *Repository) InsertTicker(ctx context.Context, t Ticker) error {
	query := `
		INSERT INTO tickers (
			symbol, last_price, index_price, mark_price, prev_price_24h, price_24h_pcnt,
			high_price_24h, low_price_24h, prev_price_1h, open_interest, open_interest_value,
			turnover_24h, volume_24h, funding_rate, next_funding_time, predicted_delivery_price,
			basis_rate, delivery_fee_rate, delivery_time, ask1_size, bid1_price, ask1_price,
			bid1_size, basis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		t.Symbol, t.LastPrice, t.IndexPrice, t.MarkPrice, t.PrevPrice24h, t.Price24hPcnt,
		t.HighPrice24h, t.LowPrice24h, t.PrevPrice1h, t.OpenInterest, t.OpenInterestValue,
		t.Turnover24h, t.Volume24h, t.FundingRate, t.NextFundingTime, t.PredictedDeliveryPrice,
		t.BasisRate, t.DeliveryFeeRate, t.DeliveryTime, t.Ask1Size, t.Bid1Price, t.Ask1Price,
		t.Bid1Size, t.Basis,
	)
	if err != nil {
		return fmt.Errorf("inserting ticker %s: %w", t.Symbol, err)
	}
	return nil
}

// DeleteSymbolEverywhere removes every row for the given symbols
// from the tickers table and all seven candle tables. Delistings
// are rare enough that a row-by-row delete per table is acceptable.
func (r *Repository) DeleteSymbolEverywhere(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delisting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM tickers WHERE symbol = ANY($1)", symbols); err != nil {
		return fmt.Errorf("deleting delisted tickers: %w", err)
	}

	for _, tf := range Timeframes {
		table := tf.TableName()
		query := fmt.Sprintf("DELETE FROM %s WHERE symbol = ANY($1)", table)
		if _, err := tx.Exec(ctx, query, symbols); err != nil {
			return fmt.Errorf("deleting delisted candles from %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delisting transaction: %w", err)
	}

	logging.WithComponent("database").Info("deleted delisted symbols", "symbols", symbols)
	return nil
}

// TickerSummary is the subset of ticker fields the symbols listing
// endpoint exposes.
type TickerSummary struct {
	Symbol        string
	LastPrice     *decimal.Decimal
	Price24hPcnt  *decimal.Decimal
	Volume24hUSDT *decimal.Decimal
}

// ListTickerSummaries returns tickers with turnover_24h > 0, ordered
// by turnover_24h descending, for the /api/symbols endpoint.
func (r *Repository) ListTickerSummaries(ctx context.Context) ([]TickerSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT symbol, last_price, price_24h_pcnt, volume_24h
		FROM tickers
		WHERE turnover_24h > 0
		ORDER BY turnover_24h DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing ticker summaries: %w", err)
	}
	defer rows.Close()

	var out []TickerSummary
	for rows.Next() {
		var s TickerSummary
		if err := rows.Scan(&s.Symbol, &s.LastPrice, &s.Price24hPcnt, &s.Volume24hUSDT); err != nil {
			return nil, fmt.Errorf("scanning ticker summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentCandles returns up to limit candles for symbol/tf, ascending
// by open_time (the table is scanned newest-first then reversed, so
// "the last limit candles" is well-defined regardless of history depth).
func (r *Repository) RecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error) {
	table := tf.TableName()
	if table == "" {
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}
	if limit <= 0 {
		limit = 20000
	}

	query := fmt.Sprintf(`
		SELECT symbol, open_time, open_datetime, open, high, low, close, volume, turnover
		FROM %s
		WHERE symbol = $1
		ORDER BY open_time DESC
		LIMIT $2`, table)

	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("reading candles for %s/%s: %w", symbol, tf, err)
	}
	defer rows.Close()

	var out []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.Symbol, &c.OpenTime, &c.OpenDatetime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Turnover); err != nil {
			return nil, fmt.Errorf("scanning candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
