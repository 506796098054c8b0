package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
)

// borrowKey identifies one debt position. A proper composite key, not a
// concatenated string: pool ids could contain any separator.
type borrowKey struct {
	poolID  string
	assetID string
}

// borrowHistory accumulates the borrow/repay legs for one position.
type borrowHistory struct {
	poolName     string
	netUnits     decimal.Decimal // borrowed - repaid, human units
	principalUsd decimal.Decimal // net borrowed valued at event time
}

// BorrowCosts computes the debt-side cost per pool plus the aggregate.
// Only positions with nonzero current debt contribute; without any, both
// returns are empty and the headline stays plain total P&L.
func BorrowCosts(events []*domain.BorrowEvent, snapshot *domain.LivePositionSnapshot, prefs domain.Preferences) ([]*domain.BorrowCost, *domain.BorrowCost) {
	history := make(map[borrowKey]*borrowHistory)
	for _, e := range events {
		k := borrowKey{poolID: e.PoolID, assetID: e.AssetAddress}
		h, ok := history[k]
		if !ok {
			h = &borrowHistory{poolName: e.PoolName}
			history[k] = h
		}
		switch e.Action {
		case domain.ActionBorrow:
			h.netUnits = h.netUnits.Add(e.Amount)
			h.principalUsd = h.principalUsd.Add(e.ValueUsd)
		case domain.ActionRepay:
			h.netUnits = h.netUnits.Sub(e.Amount)
			h.principalUsd = h.principalUsd.Sub(e.ValueUsd)
		}
	}

	var costs []*domain.BorrowCost
	for _, p := range snapshot.Positions {
		if !p.BorrowAmount.IsPositive() {
			continue
		}
		h := history[borrowKey{poolID: p.PoolID, assetID: p.AssetID}]
		costs = append(costs, positionCost(p, h, prefs))
	}
	if len(costs) == 0 {
		return nil, nil
	}

	sort.Slice(costs, func(i, j int) bool { return costs[i].PoolID < costs[j].PoolID })

	total := &domain.BorrowCost{}
	for _, c := range costs {
		total.PrincipalUsd = total.PrincipalUsd.Add(c.PrincipalUsd)
		total.CurrentDebtUsd = total.CurrentDebtUsd.Add(c.CurrentDebtUsd)
		total.InterestAccruedUsd = total.InterestAccruedUsd.Add(c.InterestAccruedUsd)
		total.PriceChangeOnDebtUsd = total.PriceChangeOnDebtUsd.Add(c.PriceChangeOnDebtUsd)
		total.TotalCostUsd = total.TotalCostUsd.Add(c.TotalCostUsd)
	}
	return costs, total
}

// positionCost reconciles one open debt position against its history.
// Principal and current debt share the borrow-time price basis so that
// interest accrued is isolated from market movement; the movement itself
// lands in PriceChangeOnDebtUsd (positive = repaying got more expensive).
func positionCost(p *domain.PoolPosition, h *borrowHistory, prefs domain.Preferences) *domain.BorrowCost {
	c := &domain.BorrowCost{PoolID: p.PoolID}

	basis := p.PriceUsd
	if h != nil && h.netUnits.IsPositive() && h.principalUsd.IsPositive() {
		c.PoolName = h.poolName
		c.PrincipalUsd = h.principalUsd
		basis = h.principalUsd.Div(h.netUnits)
		c.PriceChangeOnDebtUsd = h.netUnits.Mul(p.PriceUsd.Sub(basis))
	} else {
		// No usable borrow history for this debt (events predate the log
		// window, or the position was fully repaid and re-reported).
		// Treat current debt at the live price as principal: zero accrual.
		c.PrincipalUsd = p.BorrowAmount.Mul(p.PriceUsd)
	}

	c.CurrentDebtUsd = p.BorrowAmount.Mul(basis)
	c.InterestAccruedUsd = c.CurrentDebtUsd.Sub(c.PrincipalUsd)

	c.TotalCostUsd = c.InterestAccruedUsd
	if prefs.ShowPriceChanges {
		c.TotalCostUsd = c.TotalCostUsd.Add(c.PriceChangeOnDebtUsd)
	}
	return c
}
