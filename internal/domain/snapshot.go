package domain

import "github.com/shopspring/decimal"

// PoolPosition is one current supply/borrow position inside a lending pool.
// Values come from the protocol's yield-breakdown collaborator and are
// treated as point-in-time truth.
type PoolPosition struct {
	PoolID  string
	AssetID string

	SupplyUsdValue decimal.Decimal // current USD value of the supplied balance
	// PriceChangeUsd is the market-movement component of the position's
	// unrealized P&L, as reported by the yield breakdown. Subtracting it
	// from (current value - cost basis) leaves protocol yield only.
	PriceChangeUsd decimal.Decimal

	BorrowAmount decimal.Decimal // current debt in asset units, zero if none
	PriceUsd     decimal.Decimal // current asset price
}

// BackstopPosition is one current backstop (insurance fund) position.
type BackstopPosition struct {
	PoolID         string
	LpTokensUsd    decimal.Decimal // current USD value of backstop LP tokens
	ClaimableBlnd  decimal.Decimal // emissions accrued but not yet claimed
	PriceChangeUsd decimal.Decimal // market-movement component, see PoolPosition
}

// LivePositionSnapshot is the point-in-time view of current balances and
// prices supplied per refresh. Never retroactively edited.
type LivePositionSnapshot struct {
	Account           string
	Positions         []*PoolPosition
	BackstopPositions []*BackstopPosition

	BlndPrice        decimal.Decimal // current BLND price
	LpTokenPrice     decimal.Decimal // current backstop LP token price
	TotalBackstopUsd decimal.Decimal
	TotalEmissions   decimal.Decimal // claimable emissions across all pools

	TakenAt int64 // Unix timestamp in milliseconds the snapshot was taken
}

// PricePoint is one historical daily closing price for an asset.
// Corresponds to daily_prices table in ClickHouse.
type PricePoint struct {
	AssetAddress string
	Day          string // YYYY-MM-DD (UTC)
	PriceUsd     decimal.Decimal
}
