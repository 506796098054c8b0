// Package classify converts raw ledger events into normalized transactions
// ready for aggregation.
package classify

import (
	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/valuation"
)

// BlndSymbol is the emission token's display symbol.
const BlndSymbol = "BLND"

// Result is the classifier's output for one event batch.
type Result struct {
	Transactions []*domain.NormalizedTransaction
	BorrowEvents []*domain.BorrowEvent
	// Skipped counts events dropped for a missing required amount field.
	// Excluded-by-design actions (queue legs, liquidations, auctions) are
	// not counted here.
	Skipped int
}

// Classifier maps raw events to normalized transactions.
type Classifier struct {
	resolver *valuation.Resolver
	prefs    domain.Preferences
}

// New creates a classifier bound to one valuation resolver and one set of
// preference flags. Classification is a pure transform; a new classifier
// is built per engine pass.
func New(resolver *valuation.Resolver, prefs domain.Preferences) *Classifier {
	return &Classifier{resolver: resolver, prefs: prefs}
}

// Run classifies a batch. Malformed events are skipped, never fatal.
func (c *Classifier) Run(events []*domain.RawEvent) *Result {
	res := &Result{}
	for _, e := range events {
		switch e.Action {
		case domain.ActionBorrow, domain.ActionRepay:
			be, ok := c.borrowEvent(e)
			if !ok {
				res.Skipped++
				continue
			}
			res.BorrowEvents = append(res.BorrowEvents, be)
		default:
			tx, ok, malformed := c.Classify(e)
			if malformed {
				res.Skipped++
			}
			if ok {
				res.Transactions = append(res.Transactions, tx)
			}
		}
	}
	return res
}

// Classify converts one raw event. The second return reports whether the
// event produced a transaction; the third whether it was malformed (as
// opposed to excluded by design).
func (c *Classifier) Classify(e *domain.RawEvent) (*domain.NormalizedTransaction, bool, bool) {
	var (
		txType domain.TxType
		source domain.Source
	)

	switch e.Action {
	case domain.ActionSupply, domain.ActionSupplyCollateral:
		txType, source = domain.TxDeposit, domain.SourcePool
	case domain.ActionWithdraw, domain.ActionWithdrawCollateral:
		txType, source = domain.TxWithdraw, domain.SourcePool
	case domain.ActionClaim:
		txType, source = domain.TxClaim, domain.SourcePool
	case domain.ActionBackstopDeposit:
		txType, source = domain.TxDeposit, domain.SourceBackstop
	case domain.ActionBackstopWithdraw:
		txType, source = domain.TxWithdraw, domain.SourceBackstop
	case domain.ActionBackstopClaim:
		txType, source = domain.TxClaim, domain.SourceBackstop
	default:
		// Queue/dequeue legs are not executed transfers; liquidation and
		// auction legs are multi-asset and excluded from this P&L model.
		return nil, false, false
	}

	raw, ok := amountFor(e)
	if !ok {
		return nil, false, true
	}

	mode := valuation.ModeHistorical
	if txType == domain.TxClaim && e.AssetSymbol == BlndSymbol && !c.prefs.UseHistoricalBlndPrices {
		// BLND claims have their own historical-vs-live toggle.
		mode = valuation.ModeLive
	}

	amount := valuation.HumanAmount(raw, e.AssetDecimals)
	value, priced := c.resolver.ResolveUsdValue(raw, e.AssetAddress, e.AssetDecimals, e.LedgerClosedAt, mode)

	tx := &domain.NormalizedTransaction{
		Date:         e.LedgerClosedAt,
		Type:         txType,
		Source:       source,
		Asset:        e.AssetSymbol,
		AssetAddress: e.AssetAddress,
		Amount:       amount,
		PoolID:       e.PoolID,
		PoolName:     e.PoolName,
		TxHash:       e.TxHash,
	}
	if priced && !amount.IsZero() {
		tx.ValueUsd = value
		tx.PriceUsd = value.Div(amount)
	}
	return tx, true, false
}

// borrowEvent converts a borrow or repay leg for the borrow-cost engine.
func (c *Classifier) borrowEvent(e *domain.RawEvent) (*domain.BorrowEvent, bool) {
	if e.AmountUnderlying == nil {
		return nil, false
	}
	raw := *e.AmountUnderlying

	amount := valuation.HumanAmount(raw, e.AssetDecimals)
	be := &domain.BorrowEvent{
		Date:         e.LedgerClosedAt,
		Action:       e.Action,
		Asset:        e.AssetSymbol,
		AssetAddress: e.AssetAddress,
		Amount:       amount,
		PoolID:       e.PoolID,
		PoolName:     e.PoolName,
		TxHash:       e.TxHash,
	}
	if value, ok := c.resolver.ResolveUsdValue(raw, e.AssetAddress, e.AssetDecimals, e.LedgerClosedAt, valuation.ModeHistorical); ok && !amount.IsZero() {
		be.ValueUsd = value
		be.PriceUsd = value.Div(amount)
	}
	return be, true
}

// amountFor selects the amount field a transaction type requires:
// claim_amount for claims, lp_tokens for backstop deposit/withdraw legs,
// amount_underlying otherwise.
func amountFor(e *domain.RawEvent) (int64, bool) {
	switch e.Action {
	case domain.ActionClaim, domain.ActionBackstopClaim:
		if e.ClaimAmount == nil {
			return 0, false
		}
		return *e.ClaimAmount, true
	case domain.ActionBackstopDeposit, domain.ActionBackstopWithdraw:
		if e.LPTokens == nil {
			return 0, false
		}
		return *e.LPTokens, true
	default:
		if e.AmountUnderlying == nil {
			return 0, false
		}
		return *e.AmountUnderlying, true
	}
}
