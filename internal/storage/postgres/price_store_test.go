package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/storage"
)

func pricePoint(asset, day, price string) *domain.PricePoint {
	return &domain.PricePoint{
		AssetAddress: asset,
		Day:          day,
		PriceUsd:     decimal.RequireFromString(price),
	}
}

func TestPriceStore_InsertBulkAndGetByAsset(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("XLM", "2024-03-16", "0.1334567891"),
		pricePoint("XLM", "2024-03-15", "0.12"),
		pricePoint("USDC", "2024-03-15", "1.00"),
	})
	require.NoError(t, err)

	points, err := store.GetByAsset(ctx, "XLM")
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, "2024-03-15", points[0].Day)
	assert.True(t, points[0].PriceUsd.Equal(decimal.RequireFromString("0.12")),
		"expected 0.12, got %s", points[0].PriceUsd)
	// Precision survives the NUMERIC round trip
	assert.True(t, points[1].PriceUsd.Equal(decimal.RequireFromString("0.1334567891")),
		"expected 0.1334567891, got %s", points[1].PriceUsd)
}

func TestPriceStore_DuplicateDay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("XLM", "2024-03-15", "0.12"),
	}))

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("XLM", "2024-03-15", "0.13"),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceStore_GetByAssets(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		pricePoint("XLM", "2024-03-14", "0.11"),
		pricePoint("XLM", "2024-03-15", "0.12"),
		pricePoint("XLM", "2024-03-16", "0.13"),
		pricePoint("USDC", "2024-03-15", "1.00"),
		pricePoint("BLND", "2024-03-15", "0.08"),
	}))

	points, err := store.GetByAssets(ctx, []string{"XLM", "USDC"}, "2024-03-15", "2024-03-16")
	require.NoError(t, err)

	require.Len(t, points, 3)
	// Ordered by asset then day
	assert.Equal(t, "USDC", points[0].AssetAddress)
	assert.Equal(t, "XLM", points[1].AssetAddress)
	assert.Equal(t, "2024-03-15", points[1].Day)
	assert.Equal(t, "2024-03-16", points[2].Day)
}

func TestPriceStore_GetByAssetsEmptyList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceStore(pool)

	points, err := store.GetByAssets(ctx, nil, "2024-03-15", "2024-03-16")
	require.NoError(t, err)
	assert.Empty(t, points)
}
