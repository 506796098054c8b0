// Package reconcile combines aggregated history with the live position
// snapshot into cost basis, unrealized and total P&L figures.
package reconcile

import (
	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/aggregate"
	"blend-pnl-lab/internal/domain"
)

// Summary is the supply-side reconciliation output.
type Summary struct {
	Pools    domain.SourcePnl
	Backstop domain.SourcePnl

	// Headline sums across both sources, respecting the price-change
	// toggle for the unrealized figure.
	UnrealizedUsd decimal.Decimal
	TotalPnlUsd   decimal.Decimal
}

// Run reconciles aggregated totals against the snapshot. The snapshot is
// the truth source for current balances; history supplies cost basis.
func Run(totals *aggregate.Totals, snapshot *domain.LivePositionSnapshot, prefs domain.Preferences) *Summary {
	var poolCurrent, poolPriceChange decimal.Decimal
	for _, p := range snapshot.Positions {
		poolCurrent = poolCurrent.Add(p.SupplyUsdValue)
		poolPriceChange = poolPriceChange.Add(p.PriceChangeUsd)
	}

	var backstopCurrent, backstopPriceChange decimal.Decimal
	for _, b := range snapshot.BackstopPositions {
		backstopCurrent = backstopCurrent.Add(b.LpTokensUsd)
		backstopPriceChange = backstopPriceChange.Add(b.PriceChangeUsd)
	}

	s := &Summary{
		Pools: sourcePnl(
			totals.PoolDepositedUsd, totals.PoolWithdrawnUsd,
			poolCurrent, poolPriceChange, prefs,
		),
		Backstop: sourcePnl(
			totals.BackstopDepositedUsd, totals.BackstopWithdrawnUsd,
			backstopCurrent, backstopPriceChange, prefs,
		),
	}
	s.UnrealizedUsd = s.Pools.UnrealizedUsd.Add(s.Backstop.UnrealizedUsd)
	s.TotalPnlUsd = s.Pools.TotalPnlUsd.Add(s.Backstop.TotalPnlUsd)
	return s
}

// sourcePnl reconciles one source. Cost basis excludes emissions: claims
// are yield, not principal.
func sourcePnl(deposited, withdrawn, current, priceChange decimal.Decimal, prefs domain.Preferences) domain.SourcePnl {
	costBasis := deposited.Sub(withdrawn)
	unrealizedTotal := current.Sub(costBasis)
	unrealizedYield := unrealizedTotal.Sub(priceChange)

	unrealized := unrealizedYield
	if prefs.ShowPriceChanges {
		unrealized = unrealizedTotal
	}

	p := domain.SourcePnl{
		DepositedUsd:       deposited,
		WithdrawnUsd:       withdrawn,
		CurrentUsd:         current,
		CostBasisUsd:       costBasis,
		UnrealizedTotalUsd: unrealizedTotal,
		UnrealizedYieldUsd: unrealizedYield,
		UnrealizedUsd:      unrealized,
		TotalPnlUsd:        current.Add(withdrawn).Sub(deposited),
	}

	// A fully exited source shows realized yield from the exit, capped at
	// zero: a net loss on an exited position is absorbed into the overall
	// net cash-flow figure, never displayed as negative yield.
	if current.IsZero() {
		exit := withdrawn.Sub(deposited)
		if exit.IsNegative() {
			exit = decimal.Zero
		}
		p.ExitRealizedUsd = exit
	}

	return p
}
