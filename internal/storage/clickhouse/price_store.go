package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_address, day).
// ClickHouse MergeTree does not enforce uniqueness at insert, so duplicates
// are rejected by explicit checks before the batch goes out.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		assetAddress string
		day          string
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		k := key{p.AssetAddress, p.Day}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.AssetAddress, p.Day)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_prices (asset_address, day, price_usd)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.AssetAddress, p.Day, p.PriceUsd.String()); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAsset retrieves all points for an asset, ordered by day ASC.
func (s *PriceStore) GetByAsset(ctx context.Context, assetAddress string) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset_address, day, price_usd
		FROM daily_prices
		WHERE asset_address = ?
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, assetAddress)
	if err != nil {
		return nil, fmt.Errorf("query by asset: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByAssets retrieves points for several assets within [fromDay, toDay] (inclusive).
func (s *PriceStore) GetByAssets(ctx context.Context, assetAddresses []string, fromDay, toDay string) ([]*domain.PricePoint, error) {
	if len(assetAddresses) == 0 {
		return nil, nil
	}

	query := `
		SELECT asset_address, day, price_usd
		FROM daily_prices
		WHERE asset_address IN (?) AND day >= ? AND day <= ?
		ORDER BY asset_address ASC, day ASC
	`

	rows, err := s.conn.Query(ctx, query, assetAddresses, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("query by assets: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// exists checks if a point with the given key exists.
func (s *PriceStore) exists(ctx context.Context, assetAddress, day string) (bool, error) {
	query := `
		SELECT count(*) FROM daily_prices
		WHERE asset_address = ? AND day = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, assetAddress, day).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPrices scans multiple rows.
func scanPrices(rows driver.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var price string
		if err := rows.Scan(&p.AssetAddress, &p.Day, &price); err != nil {
			return nil, fmt.Errorf("scan daily price: %w", err)
		}
		parsed, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		p.PriceUsd = parsed
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return points, nil
}
