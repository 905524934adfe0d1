// Package reconcile synchronizes the local symbol universe (and its
// ticker snapshot) with the exchange's current set of USDT perpetual
// symbols, run once at the top of every ingestion cycle.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"smartchart-ingest/internal/bybit"
	"smartchart-ingest/internal/database"
	"smartchart-ingest/internal/logging"
	"smartchart-ingest/internal/metrics"
)

// Reconciler fetches the exchange's ticker snapshot, diffs it
// against the stored symbol set, removes delisted symbols, and
// rewrites the tickers table.
type Reconciler struct {
	client *bybit.Client
	repo   *database.Repository
	logger *logging.Logger
}

// New builds a Reconciler.
func New(client *bybit.Client, repo *database.Repository, logger *logging.Logger) *Reconciler {
	return &Reconciler{client: client, repo: repo, logger: logger.WithComponent("reconcile")}
}

// Run performs one reconciliation cycle. On API failure (empty
// ticker list) it logs and returns nil, leaving tables untouched —
// a non-fatal condition per SPEC_FULL.md §4.E.
func (r *Reconciler) Run(ctx context.Context) error {
	apiTickers, err := r.client.GetTickers(ctx)
	if err != nil {
		return fmt.Errorf("fetching tickers: %w", err)
	}
	if len(apiTickers) == 0 {
		r.logger.Warn("no tickers received from exchange, skipping reconciliation cycle")
		return nil
	}

	usdtTickers := filterUSDT(apiTickers)
	apiSymbols := make(map[string]struct{}, len(usdtTickers))
	for _, t := range usdtTickers {
		apiSymbols[t.Symbol] = struct{}{}
	}

	dbSymbols, err := r.repo.ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("listing existing symbols: %w", err)
	}

	var toRemove []string
	for _, s := range dbSymbols {
		if _, ok := apiSymbols[s]; !ok {
			toRemove = append(toRemove, s)
		}
	}

	if len(toRemove) > 0 {
		r.logger.Info("removing delisted symbols", "count", len(toRemove), "symbols", toRemove)
		if err := r.repo.DeleteSymbolEverywhere(ctx, toRemove); err != nil {
			return fmt.Errorf("deleting delisted symbols: %w", err)
		}
	}

	if err := r.repo.TruncateTickers(ctx); err != nil {
		return fmt.Errorf("truncating tickers: %w", err)
	}

	for _, t := range usdtTickers {
		if err := r.repo.InsertTicker(ctx, toDBTicker(t)); err != nil {
			return fmt.Errorf("inserting ticker %s: %w", t.Symbol, err)
		}
	}

	metrics.SetIngestSymbolsTotal(float64(len(usdtTickers)))
	r.logger.Info("reconciliation complete", "symbols", len(usdtTickers), "removed", len(toRemove))
	return nil
}

func filterUSDT(tickers []bybit.Ticker) []bybit.Ticker {
	out := make([]bybit.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if strings.HasSuffix(t.Symbol, "USDT") {
			out = append(out, t)
		}
	}
	return out
}

func toDBTicker(t bybit.Ticker) database.Ticker {
	return database.Ticker{
		Symbol:                 t.Symbol,
		LastPrice:              t.LastPrice,
		IndexPrice:             t.IndexPrice,
		MarkPrice:              t.MarkPrice,
		PrevPrice24h:           t.PrevPrice24h,
		Price24hPcnt:           t.Price24hPcnt,
		HighPrice24h:           t.HighPrice24h,
		LowPrice24h:            t.LowPrice24h,
		PrevPrice1h:            t.PrevPrice1h,
		OpenInterest:           t.OpenInterest,
		OpenInterestValue:      t.OpenInterestValue,
		Turnover24h:            t.Turnover24h,
		Volume24h:              t.Volume24h,
		FundingRate:            t.FundingRate,
		NextFundingTime:        t.NextFundingTime,
		PredictedDeliveryPrice: t.PredictedDeliveryPrice,
		BasisRate:              t.BasisRate,
		DeliveryFeeRate:        t.DeliveryFeeRate,
		DeliveryTime:           t.DeliveryTime,
		Ask1Size:               t.Ask1Size,
		Bid1Price:              t.Bid1Price,
		Ask1Price:              t.Ask1Price,
		Bid1Size:               t.Bid1Size,
		Basis:                  t.Basis,
	}
}
