package storage

import (
	"context"

	"blend-pnl-lab/internal/domain"
)

// EventStore provides access to ledger_events storage. Events are
// append-only: the chain never rewrites history.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.RawEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.RawEvent) error

	// GetByAccount retrieves all events for a wallet, ordered by ledger_closed_at ASC.
	GetByAccount(ctx context.Context, account string) ([]*domain.RawEvent, error)
}

// PriceStore provides access to daily_prices storage.
type PriceStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_address, day).
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByAsset retrieves all points for an asset, ordered by day ASC.
	GetByAsset(ctx context.Context, assetAddress string) ([]*domain.PricePoint, error)

	// GetByAssets retrieves points for several assets within [fromDay, toDay]
	// (inclusive, YYYY-MM-DD), ordered by asset then day ASC.
	GetByAssets(ctx context.Context, assetAddresses []string, fromDay, toDay string) ([]*domain.PricePoint, error)
}
