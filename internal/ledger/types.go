package ledger

import (
	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/idhash"
)

// eventPage is one page of the indexer's event feed.
type eventPage struct {
	Events []eventRecord `json:"events"`
	Cursor string        `json:"cursor"`
}

// eventRecord is the indexer's wire form of one protocol event.
type eventRecord struct {
	PoolID           string `json:"pool_id"`
	PoolName         string `json:"pool_name"`
	AssetAddress     string `json:"asset_address"`
	AssetSymbol      string `json:"asset_symbol"`
	AssetDecimals    int    `json:"asset_decimals"`
	Action           string `json:"action"`
	AmountUnderlying *int64 `json:"amount_underlying,omitempty"`
	ClaimAmount      *int64 `json:"claim_amount,omitempty"`
	LPTokens         *int64 `json:"lp_tokens,omitempty"`
	LedgerClosedAt   int64  `json:"ledger_closed_at"`
	TxHash           string `json:"tx_hash"`
}

// toDomain converts a wire event, assigning its deterministic id.
func (r *eventRecord) toDomain(account string, now int64) *domain.RawEvent {
	e := &domain.RawEvent{
		Account:          account,
		PoolID:           r.PoolID,
		PoolName:         r.PoolName,
		AssetAddress:     r.AssetAddress,
		AssetSymbol:      r.AssetSymbol,
		AssetDecimals:    r.AssetDecimals,
		Action:           domain.ActionType(r.Action),
		AmountUnderlying: r.AmountUnderlying,
		ClaimAmount:      r.ClaimAmount,
		LPTokens:         r.LPTokens,
		LedgerClosedAt:   r.LedgerClosedAt,
		TxHash:           r.TxHash,
		CreatedAt:        now,
	}
	e.EventID = idhash.ComputeEventID(e)
	return e
}

// snapshotRecord is the indexer's wire form of the live position snapshot.
type snapshotRecord struct {
	Positions []struct {
		PoolID         string          `json:"pool_id"`
		AssetID        string          `json:"asset_id"`
		SupplyUsdValue decimal.Decimal `json:"supply_usd_value"`
		PriceChangeUsd decimal.Decimal `json:"price_change_usd"`
		BorrowAmount   decimal.Decimal `json:"borrow_amount"`
		Price          struct {
			UsdPrice decimal.Decimal `json:"usd_price"`
		} `json:"price"`
	} `json:"positions"`
	BackstopPositions []struct {
		PoolID         string          `json:"pool_id"`
		LpTokensUsd    decimal.Decimal `json:"lp_tokens_usd"`
		ClaimableBlnd  decimal.Decimal `json:"claimable_blnd"`
		PriceChangeUsd decimal.Decimal `json:"price_change_usd"`
	} `json:"backstop_positions"`
	BlndPrice        decimal.Decimal `json:"blnd_price"`
	LpTokenPrice     decimal.Decimal `json:"lp_token_price"`
	TotalBackstopUsd decimal.Decimal `json:"total_backstop_usd"`
	TotalEmissions   decimal.Decimal `json:"total_emissions"`
}

func (r *snapshotRecord) toDomain(account string, takenAt int64) *domain.LivePositionSnapshot {
	s := &domain.LivePositionSnapshot{
		Account:          account,
		BlndPrice:        r.BlndPrice,
		LpTokenPrice:     r.LpTokenPrice,
		TotalBackstopUsd: r.TotalBackstopUsd,
		TotalEmissions:   r.TotalEmissions,
		TakenAt:          takenAt,
	}
	for _, p := range r.Positions {
		s.Positions = append(s.Positions, &domain.PoolPosition{
			PoolID:         p.PoolID,
			AssetID:        p.AssetID,
			SupplyUsdValue: p.SupplyUsdValue,
			PriceChangeUsd: p.PriceChangeUsd,
			BorrowAmount:   p.BorrowAmount,
			PriceUsd:       p.Price.UsdPrice,
		})
	}
	for _, b := range r.BackstopPositions {
		s.BackstopPositions = append(s.BackstopPositions, &domain.BackstopPosition{
			PoolID:         b.PoolID,
			LpTokensUsd:    b.LpTokensUsd,
			ClaimableBlnd:  b.ClaimableBlnd,
			PriceChangeUsd: b.PriceChangeUsd,
		})
	}
	return s
}

// priceRecord is one daily price row from the indexer's price API.
type priceRecord struct {
	AssetAddress string          `json:"asset_address"`
	Day          string          `json:"day"`
	PriceUsd     decimal.Decimal `json:"price_usd"`
}
