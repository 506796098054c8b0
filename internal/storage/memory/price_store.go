package memory

import (
	"context"
	"sort"
	"sync"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/storage"
)

// priceKey is the composite key for one daily price row.
type priceKey struct {
	assetAddress string
	day          string
}

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[priceKey]*domain.PricePoint
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[priceKey]*domain.PricePoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_address, day).
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[priceKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.AssetAddress == "" || p.Day == "" {
			return storage.ErrInvalidInput
		}
		k := priceKey{p.AssetAddress, p.Day}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[priceKey{p.AssetAddress, p.Day}] = &copy
	}

	return nil
}

// GetByAsset retrieves all points for an asset, ordered by day ASC.
func (s *PriceStore) GetByAsset(_ context.Context, assetAddress string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.AssetAddress == assetAddress {
			copy := *p
			result = append(result, &copy)
		}
	}

	sortPoints(result)
	return result, nil
}

// GetByAssets retrieves points for several assets within [fromDay, toDay] (inclusive).
func (s *PriceStore) GetByAssets(_ context.Context, assetAddresses []string, fromDay, toDay string) ([]*domain.PricePoint, error) {
	wanted := make(map[string]struct{}, len(assetAddresses))
	for _, a := range assetAddresses {
		wanted[a] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if _, ok := wanted[p.AssetAddress]; !ok {
			continue
		}
		if p.Day < fromDay || p.Day > toDay {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}

	sortPoints(result)
	return result, nil
}

func sortPoints(points []*domain.PricePoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].AssetAddress != points[j].AssetAddress {
			return points[i].AssetAddress < points[j].AssetAddress
		}
		return points[i].Day < points[j].Day
	})
}

var _ storage.PriceStore = (*PriceStore)(nil)
