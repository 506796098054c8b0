// Package engine composes the full P&L pass:
// classify → aggregate → reconcile → borrow costs.
// The pass is a pure function of its inputs; identical inputs produce
// byte-identical results.
package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/aggregate"
	"blend-pnl-lab/internal/classify"
	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/idhash"
	"blend-pnl-lab/internal/reconcile"
	"blend-pnl-lab/internal/valuation"
)

// ErrNotReady is returned when the live snapshot has not loaded yet.
// Running against an empty snapshot would flash an incorrect P&L, so this
// is a precondition, not a recoverable failure.
var ErrNotReady = errors.New("live position snapshot not loaded")

// Inputs is everything one engine pass consumes. No ambient state: the
// preference flags travel with the call.
type Inputs struct {
	Account          string
	Events           []*domain.RawEvent
	Snapshot         *domain.LivePositionSnapshot
	HistoricalPrices []*domain.PricePoint
	PeggedAssets     []string
	Prefs            domain.Preferences
}

// Compute runs one full P&L pass and returns a freshly built result.
// The result is never partially mutated afterwards; callers rerun Compute
// on any input change.
func Compute(in Inputs) (*domain.PnlResult, error) {
	if in.Snapshot == nil {
		return nil, ErrNotReady
	}

	resolver := valuation.NewResolver(in.HistoricalPrices, livePrices(in), in.PeggedAssets)
	classified := classify.New(resolver, in.Prefs).Run(in.Events)
	agg := aggregate.Run(classified.Transactions)
	summary := reconcile.Run(&agg.Totals, in.Snapshot, in.Prefs)
	borrowCosts, borrowTotal := reconcile.BorrowCosts(classified.BorrowEvents, in.Snapshot, in.Prefs)

	res := &domain.PnlResult{
		Account: in.Account,

		TotalDepositedUsd: agg.Totals.TotalDepositedUsd(),
		TotalWithdrawnUsd: agg.Totals.TotalWithdrawnUsd(),
		RealizedPnlUsd:    agg.Totals.Emissions.UsdValue,

		Pools:    summary.Pools,
		Backstop: summary.Backstop,

		Emissions: agg.Totals.Emissions,
		PerPool:   agg.PerPool,

		CumulativeRealized: agg.Cumulative,
		CumulativeBySource: agg.BySource,
		CumulativeByPool:   agg.ByPool,

		Transactions:  agg.Transactions,
		SkippedEvents: classified.Skipped,

		UnrealizedPnlUsd: summary.UnrealizedUsd,
		TotalPnlUsd:      summary.TotalPnlUsd,

		BorrowCosts: borrowCosts,
		BorrowTotal: borrowTotal,

		InputFingerprint: idhash.InputFingerprint(in.Events, in.Snapshot, in.HistoricalPrices, in.PeggedAssets, in.Prefs),
	}

	if agg.Totals.FirstActivity != 0 {
		res.FirstActivityDate = valuation.Day(agg.Totals.FirstActivity)
		res.DaysActive = daysBetween(agg.Totals.FirstActivity, in.Snapshot.TakenAt)
	}

	// Net P&L only exists while a borrow is open; otherwise the headline
	// stays plain total P&L.
	if borrowTotal != nil {
		res.Headline = domain.HeadlineNet
		res.NetPnlUsd = res.TotalPnlUsd.Sub(borrowTotal.TotalCostUsd)
	} else {
		res.Headline = domain.HeadlineTotal
		res.NetPnlUsd = res.TotalPnlUsd
	}

	return res, nil
}

// livePrices collects current prices keyed by asset address: snapshot
// positions first, then the emission assets (BLND, backstop LP token)
// resolved through the event log's symbol metadata.
func livePrices(in Inputs) map[string]decimal.Decimal {
	live := make(map[string]decimal.Decimal)
	for _, p := range in.Snapshot.Positions {
		live[p.AssetID] = p.PriceUsd
	}
	for _, e := range in.Events {
		switch {
		case e.AssetSymbol == classify.BlndSymbol:
			live[e.AssetAddress] = in.Snapshot.BlndPrice
		case e.Action == domain.ActionBackstopDeposit || e.Action == domain.ActionBackstopWithdraw:
			live[e.AssetAddress] = in.Snapshot.LpTokenPrice
		}
	}
	return live
}

// daysBetween counts calendar days from first activity through the
// snapshot time, inclusive. Anchored to the snapshot so reruns over
// unchanged inputs stay identical.
func daysBetween(fromMs, toMs int64) int {
	if toMs < fromMs {
		return 1
	}
	from := time.UnixMilli(fromMs).UTC().Truncate(24 * time.Hour)
	to := time.UnixMilli(toMs).UTC().Truncate(24 * time.Hour)
	return int(to.Sub(from).Hours()/24) + 1
}
