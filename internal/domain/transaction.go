package domain

import "github.com/shopspring/decimal"

// TxType classifies a normalized transaction's effect on user capital.
type TxType string

// Source identifies which side of the protocol a transaction touches.
type Source string

// Normalized transaction types.
const (
	TxDeposit  TxType = "deposit"
	TxWithdraw TxType = "withdraw"
	TxClaim    TxType = "claim"
)

// Transaction sources.
const (
	SourcePool     Source = "pool"
	SourceBackstop Source = "backstop"
)

// NormalizedTransaction is one qualifying RawEvent converted to human units
// and valued in USD. Created once during classification, immutable after.
type NormalizedTransaction struct {
	Date         int64  // Unix timestamp in milliseconds
	Type         TxType
	Source       Source
	Asset        string // display symbol
	AssetAddress string
	Amount       decimal.Decimal // human units
	PriceUsd     decimal.Decimal // price used for ValueUsd; zero if unavailable
	ValueUsd     decimal.Decimal // Amount * PriceUsd; zero if no price was available
	PoolID       string
	PoolName     string
	TxHash       string
}

// BorrowEvent is a borrow or repay leg. Borrows are not deposits of user
// capital, so they are tracked apart from NormalizedTransaction and feed
// the borrow-cost engine only.
type BorrowEvent struct {
	Date         int64 // Unix timestamp in milliseconds
	Action       ActionType // ActionBorrow or ActionRepay
	Asset        string
	AssetAddress string
	Amount       decimal.Decimal // human units
	PriceUsd     decimal.Decimal // historical price at Date
	ValueUsd     decimal.Decimal
	PoolID       string
	PoolName     string
	TxHash       string
}
