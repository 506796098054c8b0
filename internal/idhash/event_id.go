package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"blend-pnl-lab/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256 over the
// identifying fields plus the amount fields, so two events that differ
// only in amount get distinct ids.
// Returns hex-encoded hash (64 characters).
func ComputeEventID(e *domain.RawEvent) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s|%s|%s",
		e.Account,
		e.TxHash,
		string(e.Action),
		e.PoolID,
		e.AssetAddress,
		e.LedgerClosedAt,
		formatAmount(e.AmountUnderlying),
		formatAmount(e.ClaimAmount),
		formatAmount(e.LPTokens),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// formatAmount keeps nil distinguishable from zero.
func formatAmount(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
