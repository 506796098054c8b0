// Package valuation resolves USD values for raw on-chain amounts using
// historical daily prices with live-price fallback.
package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
)

// Mode selects which price a lookup prefers.
type Mode int

const (
	// ModeHistorical prefers the daily price at the transaction date.
	ModeHistorical Mode = iota
	// ModeLive always uses the current price from the snapshot.
	ModeLive
)

// Resolver values raw amounts in USD. Immutable once built; safe for
// concurrent readers.
type Resolver struct {
	// daily price series per asset, sorted by day ascending
	history map[string][]*domain.PricePoint
	// current prices per asset address
	live map[string]decimal.Decimal
	// assets pegged to the display currency; valued at face value
	pegged map[string]bool
}

// NewResolver builds a resolver from a historical price batch, a set of
// live prices, and the pegged-asset list.
func NewResolver(points []*domain.PricePoint, live map[string]decimal.Decimal, pegged []string) *Resolver {
	history := make(map[string][]*domain.PricePoint)
	for _, p := range points {
		history[p.AssetAddress] = append(history[p.AssetAddress], p)
	}
	for _, series := range history {
		sort.Slice(series, func(i, j int) bool { return series[i].Day < series[j].Day })
	}

	peggedSet := make(map[string]bool, len(pegged))
	for _, a := range pegged {
		peggedSet[a] = true
	}

	liveCopy := make(map[string]decimal.Decimal, len(live))
	for k, v := range live {
		liveCopy[k] = v
	}

	return &Resolver{history: history, live: liveCopy, pegged: peggedSet}
}

// Day formats a millisecond timestamp as the UTC day key used by the
// historical price series.
func Day(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}

// HumanAmount converts a raw smallest-unit amount to human units.
// Decimals of zero fall back to the chain default.
func HumanAmount(raw int64, decimals int) decimal.Decimal {
	if decimals <= 0 {
		decimals = domain.DefaultAssetDecimals
	}
	return decimal.New(raw, int32(-decimals))
}

// PriceAt returns the price for an asset at a millisecond timestamp under
// the given mode. Historical lookups take the price at the transaction's
// day, falling back to the closest earlier day, then to the live price.
// The second return is false when no price is known at all.
func (r *Resolver) PriceAt(assetAddress string, tsMs int64, mode Mode) (decimal.Decimal, bool) {
	if r.pegged[assetAddress] {
		return decimal.NewFromInt(1), true
	}

	if mode == ModeHistorical {
		if p, ok := r.historicalAt(assetAddress, Day(tsMs)); ok {
			return p, true
		}
	}

	p, ok := r.live[assetAddress]
	return p, ok
}

// ResolveUsdValue values a raw amount at the resolved price. A zero or
// missing raw amount yields no value: callers must treat absence as
// "cannot display USD", not as zero.
func (r *Resolver) ResolveUsdValue(raw int64, assetAddress string, decimals int, tsMs int64, mode Mode) (decimal.Decimal, bool) {
	if raw == 0 {
		return decimal.Zero, false
	}

	amount := HumanAmount(raw, decimals)
	if r.pegged[assetAddress] {
		return amount, true
	}

	price, ok := r.PriceAt(assetAddress, tsMs, mode)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(price), true
}

// LivePrice returns the snapshot price for an asset, if known.
func (r *Resolver) LivePrice(assetAddress string) (decimal.Decimal, bool) {
	p, ok := r.live[assetAddress]
	return p, ok
}

// historicalAt finds the price for day, or the closest earlier day.
func (r *Resolver) historicalAt(assetAddress, day string) (decimal.Decimal, bool) {
	series := r.history[assetAddress]
	if len(series) == 0 {
		return decimal.Zero, false
	}

	// Closest price at or before the requested day.
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Day <= day {
			return series[i].PriceUsd, true
		}
	}

	return decimal.Zero, false
}
