package domain

// ActionType identifies the on-chain action an event records.
type ActionType string

// Action types emitted by the lending protocol.
const (
	ActionSupply                    ActionType = "supply"
	ActionSupplyCollateral          ActionType = "supply_collateral"
	ActionWithdraw                  ActionType = "withdraw"
	ActionWithdrawCollateral        ActionType = "withdraw_collateral"
	ActionBorrow                    ActionType = "borrow"
	ActionRepay                     ActionType = "repay"
	ActionClaim                     ActionType = "claim"
	ActionBackstopDeposit           ActionType = "backstop_deposit"
	ActionBackstopWithdraw          ActionType = "backstop_withdraw"
	ActionBackstopQueueWithdrawal   ActionType = "backstop_queue_withdrawal"
	ActionBackstopDequeueWithdrawal ActionType = "backstop_dequeue_withdrawal"
	ActionBackstopClaim             ActionType = "backstop_claim"
	ActionLiquidate                 ActionType = "liquidate"
	ActionFillAuction               ActionType = "fill_auction"
	ActionNewAuction                ActionType = "new_auction"
)

// DefaultAssetDecimals is the chain's base asset precision, used when an
// event does not carry explicit decimals.
const DefaultAssetDecimals = 7

// RawEvent represents one on-chain action recorded by the indexer.
// Created by the chain; read-only to this system.
// Corresponds to ledger_events table in PostgreSQL.
type RawEvent struct {
	EventID      string     // PRIMARY KEY, deterministic hash
	Account      string     // wallet the event belongs to
	PoolID       string     // lending pool contract id
	PoolName     string     // pool display name at event time
	AssetAddress string     // asset contract id
	AssetSymbol  string     // asset display symbol
	AssetDecimals int       // 0 means unknown, defaults to DefaultAssetDecimals
	Action       ActionType

	// Amount fields in the asset's smallest unit. Which one is required
	// depends on Action: ClaimAmount for claim legs, LPTokens for backstop
	// legs, AmountUnderlying otherwise. Nil means the indexer did not
	// report the field.
	AmountUnderlying *int64
	ClaimAmount      *int64
	LPTokens         *int64

	LedgerClosedAt int64  // Unix timestamp in milliseconds
	TxHash         string // transaction hash
	CreatedAt      int64  // record creation timestamp (ms)
}
