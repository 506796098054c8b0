package domain

import "github.com/shopspring/decimal"

// Preferences are the externally persisted display toggles. They are
// threaded into every engine call explicitly; the engine never reads
// ambient state.
type Preferences struct {
	// ShowPriceChanges selects total earned (protocol yield + market
	// movement) as the headline unrealized figure; off means protocol
	// yield only.
	ShowPriceChanges bool
	// UseHistoricalBlndPrices values BLND emission claims at the price in
	// effect when they were claimed; off revalues them at the live price.
	UseHistoricalBlndPrices bool
}

// SourceTotals are running deposit/withdraw/emission sums for one side of
// the protocol within a single pool.
type SourceTotals struct {
	DepositedUsd decimal.Decimal
	WithdrawnUsd decimal.Decimal
	EmissionsUsd decimal.Decimal
}

// PoolBreakdown splits one pool's history by source.
// Built in a single aggregation pass, read-only afterward.
type PoolBreakdown struct {
	PoolID   string
	PoolName string // first-seen name wins
	Lending  SourceTotals
	Backstop SourceTotals
}

// CumulativePoint is one chart point: running sums up to and including Day.
// Realized here is strictly cumulative emissions claimed; withdrawal
// proceeds are not chart-realized profit.
type CumulativePoint struct {
	Day           string // YYYY-MM-DD (UTC)
	DepositedUsd  decimal.Decimal
	WithdrawnUsd  decimal.Decimal
	RealizedUsd   decimal.Decimal
}

// EmissionTotals summarize claimed emissions by asset kind.
type EmissionTotals struct {
	BlndClaimed decimal.Decimal // BLND token units
	LpClaimed   decimal.Decimal // backstop LP token units
	UsdValue    decimal.Decimal
}

// SourcePnl is the reconciled P&L for one source (pool lending or backstop).
type SourcePnl struct {
	DepositedUsd decimal.Decimal
	WithdrawnUsd decimal.Decimal
	CurrentUsd   decimal.Decimal // from the live snapshot
	CostBasisUsd decimal.Decimal // DepositedUsd - WithdrawnUsd

	// Both unrealized figures are always populated so presentation can
	// flip the price-change toggle without recomputing.
	UnrealizedTotalUsd decimal.Decimal // CurrentUsd - CostBasisUsd
	UnrealizedYieldUsd decimal.Decimal // total minus market movement
	UnrealizedUsd      decimal.Decimal // the one selected by Preferences

	TotalPnlUsd decimal.Decimal // (CurrentUsd + WithdrawnUsd) - DepositedUsd
	// ExitRealizedUsd is max(0, withdrawn - deposited) when the source is
	// fully exited, zero otherwise. Losses on exited positions are not
	// shown as negative realized yield.
	ExitRealizedUsd decimal.Decimal
}

// BorrowCost is the debt-side mirror of SourcePnl for one pool.
type BorrowCost struct {
	PoolID   string
	PoolName string

	PrincipalUsd         decimal.Decimal // net borrowed, valued at borrow time
	CurrentDebtUsd       decimal.Decimal // current debt at the principal's price basis
	InterestAccruedUsd   decimal.Decimal // CurrentDebtUsd - PrincipalUsd
	PriceChangeOnDebtUsd decimal.Decimal // positive when repaying got more expensive
	TotalCostUsd         decimal.Decimal // per Preferences.ShowPriceChanges
}

// HeadlineKind names which headline formula a result carries.
type HeadlineKind string

const (
	// HeadlineTotal is shown when the wallet has no open borrows.
	HeadlineTotal HeadlineKind = "total_pnl"
	// HeadlineNet is shown when any open borrow has nonzero current debt.
	HeadlineNet HeadlineKind = "net_pnl"
)

// PnlResult is the engine's output: the complete reconciled P&L for one
// wallet. Always rebuilt from scratch on any input change, never mutated.
type PnlResult struct {
	Account string

	TotalDepositedUsd decimal.Decimal
	TotalWithdrawnUsd decimal.Decimal
	// RealizedPnlUsd is the cumulative-series definition of realized
	// profit: emissions claimed, in USD.
	RealizedPnlUsd decimal.Decimal

	Pools    SourcePnl // all lending pools combined
	Backstop SourcePnl

	Emissions EmissionTotals

	PerPool map[string]*PoolBreakdown // keyed by pool id

	CumulativeRealized []*CumulativePoint
	CumulativeBySource map[Source][]*CumulativePoint
	CumulativeByPool   map[string][]*CumulativePoint

	FirstActivityDate string // YYYY-MM-DD, empty when no activity
	DaysActive        int

	Transactions []*NormalizedTransaction
	// SkippedEvents counts raw events excluded from accounting: auction
	// and liquidation actions plus events missing a required amount.
	SkippedEvents int

	// Headline figures. UnrealizedPnlUsd and TotalPnlUsd respect the
	// price-change toggle; NetPnlUsd subtracts borrow costs and is only
	// meaningful when Headline == HeadlineNet.
	UnrealizedPnlUsd decimal.Decimal
	TotalPnlUsd      decimal.Decimal
	BorrowCosts      []*BorrowCost // per pool, empty when no open borrows
	BorrowTotal      *BorrowCost   // aggregate, nil when no open borrows
	NetPnlUsd        decimal.Decimal
	Headline         HeadlineKind

	// InputFingerprint is the hex SHA-256 of the inputs that produced this
	// result, usable as a memoization key.
	InputFingerprint string
}
