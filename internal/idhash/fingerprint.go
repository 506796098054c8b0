package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"blend-pnl-lab/internal/domain"
)

// InputFingerprint computes a deterministic hash over everything the P&L
// engine consumes: event log, live snapshot, historical prices, pegged
// assets and preference flags. Two logically equal inputs produce the same
// fingerprint regardless of input order, so the fingerprint can key a
// recompute cache.
func InputFingerprint(
	events []*domain.RawEvent,
	snapshot *domain.LivePositionSnapshot,
	prices []*domain.PricePoint,
	peggedAssets []string,
	prefs domain.Preferences,
) string {
	h := sha256.New()

	// Events contribute by id only; the id covers every event field that
	// can change the result, amounts included. Sorted so input order does
	// not matter.
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(h, "e:%s\n", id)
	}

	if snapshot != nil {
		fmt.Fprintf(h, "s:%s|%d|%s|%s|%s|%s\n",
			snapshot.Account,
			snapshot.TakenAt,
			snapshot.BlndPrice.String(),
			snapshot.LpTokenPrice.String(),
			snapshot.TotalBackstopUsd.String(),
			snapshot.TotalEmissions.String(),
		)
		lines := make([]string, 0, len(snapshot.Positions)+len(snapshot.BackstopPositions))
		for _, p := range snapshot.Positions {
			lines = append(lines, fmt.Sprintf("p:%s|%s|%s|%s|%s|%s",
				p.PoolID, p.AssetID,
				p.SupplyUsdValue.String(), p.PriceChangeUsd.String(),
				p.BorrowAmount.String(), p.PriceUsd.String(),
			))
		}
		for _, b := range snapshot.BackstopPositions {
			lines = append(lines, fmt.Sprintf("b:%s|%s|%s|%s",
				b.PoolID,
				b.LpTokensUsd.String(), b.ClaimableBlnd.String(),
				b.PriceChangeUsd.String(),
			))
		}
		sort.Strings(lines)
		for _, line := range lines {
			fmt.Fprintln(h, line)
		}
	}

	priceLines := make([]string, len(prices))
	for i, p := range prices {
		priceLines[i] = fmt.Sprintf("h:%s|%s|%s", p.AssetAddress, p.Day, p.PriceUsd.String())
	}
	sort.Strings(priceLines)
	for _, line := range priceLines {
		fmt.Fprintln(h, line)
	}

	pegged := append([]string(nil), peggedAssets...)
	sort.Strings(pegged)
	for _, asset := range pegged {
		fmt.Fprintf(h, "g:%s\n", asset)
	}

	fmt.Fprintf(h, "f:%t|%t\n", prefs.ShowPriceChanges, prefs.UseHistoricalBlndPrices)

	return hex.EncodeToString(h.Sum(nil))
}
