// Package aggregate folds the normalized transaction stream into running
// totals and cumulative chart series.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/classify"
	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/valuation"
)

// Totals are the whole-history running sums split by source.
type Totals struct {
	PoolDepositedUsd     decimal.Decimal
	PoolWithdrawnUsd     decimal.Decimal
	BackstopDepositedUsd decimal.Decimal
	BackstopWithdrawnUsd decimal.Decimal

	Emissions domain.EmissionTotals

	FirstActivity int64 // ms, zero when no transactions
	LastActivity  int64 // ms, zero when no transactions
}

// TotalDepositedUsd sums deposits across sources.
func (t *Totals) TotalDepositedUsd() decimal.Decimal {
	return t.PoolDepositedUsd.Add(t.BackstopDepositedUsd)
}

// TotalWithdrawnUsd sums withdrawals across sources.
func (t *Totals) TotalWithdrawnUsd() decimal.Decimal {
	return t.PoolWithdrawnUsd.Add(t.BackstopWithdrawnUsd)
}

// Result is one aggregation pass's output.
type Result struct {
	Totals  Totals
	PerPool map[string]*domain.PoolBreakdown

	Cumulative []*domain.CumulativePoint
	BySource   map[domain.Source][]*domain.CumulativePoint
	ByPool     map[string][]*domain.CumulativePoint

	// Transactions in the ascending date order the pass used.
	Transactions []*domain.NormalizedTransaction
}

// Run aggregates a transaction batch. Input order does not matter: the
// pass sorts ascending by date first, since every running sum below is
// only correct under ascending order.
func Run(transactions []*domain.NormalizedTransaction) *Result {
	sorted := make([]*domain.NormalizedTransaction, len(transactions))
	copy(sorted, transactions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].TxHash < sorted[j].TxHash
	})

	res := &Result{
		PerPool:      make(map[string]*domain.PoolBreakdown),
		BySource:     make(map[domain.Source][]*domain.CumulativePoint),
		ByPool:       make(map[string][]*domain.CumulativePoint),
		Transactions: sorted,
	}

	total := newSeriesBuilder()
	bySource := map[domain.Source]*seriesBuilder{
		domain.SourcePool:     newSeriesBuilder(),
		domain.SourceBackstop: newSeriesBuilder(),
	}
	byPool := make(map[string]*seriesBuilder)

	for _, tx := range sorted {
		if res.Totals.FirstActivity == 0 {
			res.Totals.FirstActivity = tx.Date
		}
		res.Totals.LastActivity = tx.Date

		res.applyTotals(tx)
		res.applyPool(tx)

		day := valuation.Day(tx.Date)
		total.apply(day, tx)
		bySource[tx.Source].apply(day, tx)

		pb, ok := byPool[tx.PoolID]
		if !ok {
			pb = newSeriesBuilder()
			byPool[tx.PoolID] = pb
		}
		pb.apply(day, tx)
	}

	res.Cumulative = total.points()
	for source, b := range bySource {
		if pts := b.points(); len(pts) > 0 {
			res.BySource[source] = pts
		}
	}
	for poolID, b := range byPool {
		res.ByPool[poolID] = b.points()
	}

	return res
}

func (r *Result) applyTotals(tx *domain.NormalizedTransaction) {
	switch tx.Type {
	case domain.TxDeposit:
		if tx.Source == domain.SourceBackstop {
			r.Totals.BackstopDepositedUsd = r.Totals.BackstopDepositedUsd.Add(tx.ValueUsd)
		} else {
			r.Totals.PoolDepositedUsd = r.Totals.PoolDepositedUsd.Add(tx.ValueUsd)
		}
	case domain.TxWithdraw:
		if tx.Source == domain.SourceBackstop {
			r.Totals.BackstopWithdrawnUsd = r.Totals.BackstopWithdrawnUsd.Add(tx.ValueUsd)
		} else {
			r.Totals.PoolWithdrawnUsd = r.Totals.PoolWithdrawnUsd.Add(tx.ValueUsd)
		}
	case domain.TxClaim:
		if tx.Asset == classify.BlndSymbol {
			r.Totals.Emissions.BlndClaimed = r.Totals.Emissions.BlndClaimed.Add(tx.Amount)
		} else {
			r.Totals.Emissions.LpClaimed = r.Totals.Emissions.LpClaimed.Add(tx.Amount)
		}
		r.Totals.Emissions.UsdValue = r.Totals.Emissions.UsdValue.Add(tx.ValueUsd)
	}
}

func (r *Result) applyPool(tx *domain.NormalizedTransaction) {
	pb, ok := r.PerPool[tx.PoolID]
	if !ok {
		// First-seen pool name wins.
		pb = &domain.PoolBreakdown{PoolID: tx.PoolID, PoolName: tx.PoolName}
		r.PerPool[tx.PoolID] = pb
	}

	totals := &pb.Lending
	if tx.Source == domain.SourceBackstop {
		totals = &pb.Backstop
	}

	switch tx.Type {
	case domain.TxDeposit:
		totals.DepositedUsd = totals.DepositedUsd.Add(tx.ValueUsd)
	case domain.TxWithdraw:
		totals.WithdrawnUsd = totals.WithdrawnUsd.Add(tx.ValueUsd)
	case domain.TxClaim:
		totals.EmissionsUsd = totals.EmissionsUsd.Add(tx.ValueUsd)
	}
}
