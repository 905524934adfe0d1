// Tests for the pure helper logic in repository.go (timeframe table
// names/validity, upsert query building, deadlock classification) plus
// the query methods themselves, mocked against pgxmock's fake pool —
// the pgx analog of the pack's go-sqlmock precedent (see
// Funky1981-jax-trading-assistant/internal/infra/utcp/storage_postgres_test.go)
// — so ListSymbols/UpsertCandles/RecentCandles/etc. get real coverage
// without a live Postgres instance.
package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
)

func TestTimeframeTableName(t *testing.T) {
	cases := map[Timeframe]string{
		Timeframe1m:  "candles1",
		Timeframe5m:  "candles5",
		Timeframe15m: "candles15",
		Timeframe1h:  "candles60",
		Timeframe4h:  "candles240",
		Timeframe1d:  "candlesd",
		Timeframe1w:  "candlesw",
		Timeframe("bogus"): "",
	}
	for tf, want := range cases {
		if got := tf.TableName(); got != want {
			t.Errorf("TableName(%q) = %q, want %q", tf, got, want)
		}
	}
}

func TestTimeframeValid(t *testing.T) {
	if !Timeframe1h.Valid() {
		t.Error("expected Timeframe1h to be valid")
	}
	if Timeframe("3").Valid() {
		t.Error("expected unsupported timeframe to be invalid")
	}
}

func TestBuildUpsertQuery(t *testing.T) {
	rows := []Candle{
		{Symbol: "BTCUSDT", OpenTime: 1000, OpenDatetime: "2026-01-01 00:00:00",
			Open: decimal.NewFromInt(1), High: decimal.NewFromInt(2),
			Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(2),
			Volume: decimal.NewFromInt(10), Turnover: 20},
		{Symbol: "BTCUSDT", OpenTime: 2000, OpenDatetime: "2026-01-01 00:01:00",
			Open: decimal.NewFromInt(2), High: decimal.NewFromInt(3),
			Low: decimal.NewFromInt(2), Close: decimal.NewFromInt(3),
			Volume: decimal.NewFromInt(11), Turnover: 33},
	}

	query, args := buildUpsertQuery("candles60", rows)

	if len(args) != len(rows)*9 {
		t.Fatalf("expected %d args, got %d", len(rows)*9, len(args))
	}
	if !strings.Contains(query, "INSERT INTO candles60") {
		t.Error("expected query to target candles60")
	}
	if !strings.Contains(query, "ON CONFLICT (symbol, open_time) DO UPDATE SET") {
		t.Error("expected upsert clause")
	}
	if !strings.Contains(query, "($1, $2, $3, $4, $5, $6, $7, $8, $9)") {
		t.Error("expected first row's placeholders")
	}
	if !strings.Contains(query, "($10, $11, $12, $13, $14, $15, $16, $17, $18)") {
		t.Error("expected second row's placeholders")
	}
}

func TestIsRetryableDeadlock(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01"}
	serialization := &pgconn.PgError{Code: "40001"}
	other := &pgconn.PgError{Code: "23505"}

	if !isRetryable(deadlock) {
		t.Error("expected deadlock (40P01) to be retryable")
	}
	if !isRetryable(serialization) {
		t.Error("expected serialization failure (40001) to be retryable")
	}
	if isRetryable(other) {
		t.Error("expected unique-violation (23505) to not be retryable")
	}
	if isRetryable(errors.New("plain error")) {
		t.Error("expected non-pg error to not be retryable")
	}
}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	repo := NewRepository(&DB{Pool: mock}, 3, time.Millisecond)
	return repo, mock
}

func TestListSymbolsOrdersByTurnoverDesc(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT symbol FROM tickers ORDER BY turnover_24h DESC NULLS LAST")).
		WillReturnRows(pgxmock.NewRows([]string{"symbol"}).AddRow("BTCUSDT").AddRow("ETHUSDT"))

	symbols, err := repo.ListSymbols(context.Background())
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if want := []string{"BTCUSDT", "ETHUSDT"}; len(symbols) != len(want) || symbols[0] != want[0] || symbols[1] != want[1] {
		t.Errorf("ListSymbols = %v, want %v", symbols, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLastOpenTimeNoRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(open_time) FROM candles60 WHERE symbol = $1")).
		WithArgs("BTCUSDT").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	_, ok, err := repo.LastOpenTime(context.Background(), "BTCUSDT", Timeframe1h)
	if err != nil {
		t.Fatalf("LastOpenTime: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a symbol with no stored candles")
	}
}

func TestUpsertCandlesRetriesOnDeadlockThenSucceeds(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := []Candle{{Symbol: "BTCUSDT", OpenTime: 1000, OpenDatetime: "2026-01-01 00:00:00",
		Open: decimal.NewFromInt(1), High: decimal.NewFromInt(1), Low: decimal.NewFromInt(1),
		Close: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1), Turnover: 1}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO candles60")).
		WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO candles60")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.UpsertCandles(context.Background(), "BTCUSDT", Timeframe1h, rows); err != nil {
		t.Fatalf("UpsertCandles: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertCandlesGivesUpOnNonRetryableError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := []Candle{{Symbol: "BTCUSDT", OpenTime: 1000, OpenDatetime: "2026-01-01 00:00:00",
		Open: decimal.NewFromInt(1), High: decimal.NewFromInt(1), Low: decimal.NewFromInt(1),
		Close: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1), Turnover: 1}}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO candles60")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.UpsertCandles(context.Background(), "BTCUSDT", Timeframe1h, rows); err == nil {
		t.Fatal("expected UpsertCandles to surface a non-retryable error immediately")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecentCandlesReturnsAscendingOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	cols := []string{"symbol", "open_time", "open_datetime", "open", "high", "low", "close", "volume", "turnover"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM candles60")).
		WithArgs("BTCUSDT", 2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("BTCUSDT", int64(2000), "2026-01-01 00:01:00", decimal.NewFromInt(2), decimal.NewFromInt(2), decimal.NewFromInt(2), decimal.NewFromInt(2), decimal.NewFromInt(2), int64(2)).
			AddRow("BTCUSDT", int64(1000), "2026-01-01 00:00:00", decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1), int64(1)))

	candles, err := repo.RecentCandles(context.Background(), "BTCUSDT", Timeframe1h, 2)
	if err != nil {
		t.Fatalf("RecentCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}
	if candles[0].OpenTime != 1000 || candles[1].OpenTime != 2000 {
		t.Errorf("RecentCandles did not reverse the descending query result into ascending order: %+v", candles)
	}
}

func TestDeleteSymbolEverywhereCommitsAcrossAllTables(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tickers WHERE symbol = ANY($1)")).
		WithArgs([]string{"DELISTEDUSDT"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	for _, tf := range Timeframes {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + tf.TableName() + " WHERE symbol = ANY($1)")).
			WithArgs([]string{"DELISTEDUSDT"}).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	mock.ExpectCommit()

	if err := repo.DeleteSymbolEverywhere(context.Background(), []string{"DELISTEDUSDT"}); err != nil {
		t.Fatalf("DeleteSymbolEverywhere: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
