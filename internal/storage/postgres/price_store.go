package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL. It serves
// deployments that run without ClickHouse; the schema mirrors the
// ClickHouse daily_prices table.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_address, day).
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_prices (asset_address, day, price_usd)
		VALUES ($1, $2, $3)
	`

	for _, p := range points {
		if _, err := tx.Exec(ctx, query, p.AssetAddress, p.Day, p.PriceUsd.String()); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert daily price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAsset retrieves all points for an asset, ordered by day ASC.
func (s *PriceStore) GetByAsset(ctx context.Context, assetAddress string) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset_address, day, price_usd::text
		FROM daily_prices
		WHERE asset_address = $1
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, assetAddress)
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
		SELECT asset_address, day, price_usd::text
		FROM daily_prices
		WHERE asset_address = ANY($1) AND day >= $2 AND day <= $3
		ORDER BY asset_address ASC, day ASC
	`

	rows, err := s.pool.Query(ctx, query, assetAddresses, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("query by assets: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// scanPrices scans multiple rows.
func scanPrices(rows pgx.Rows) ([]*domain.PricePoint, error) {
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
