package cache

import (
	"context"
	"errors"
	"slices"
	"time"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

// LocalCache serves the last full per-store snapshot for offline reads.
// Writes are last-write-wins with no versioning.
type LocalCache struct {
	repo store.SnapshotRepository
	now  func() time.Time
}

func New(repo store.SnapshotRepository) *LocalCache {
	return &LocalCache{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Refresh atomically replaces the store's cached products, categories and
// customers.
func (c *LocalCache) Refresh(ctx context.Context, storeID string, products []domain.Product, categories []domain.Category, customers []domain.Customer) error {
	return c.repo.ReplaceSnapshot(ctx, domain.CacheSnapshot{
		StoreID:     storeID,
		Products:    slices.Clone(products),
		Categories:  slices.Clone(categories),
		Customers:   slices.Clone(customers),
		RefreshedAt: c.now(),
	})
}

// Read returns the store's snapshot. A missing snapshot is reported with
// ok=false and no error.
func (c *LocalCache) Read(ctx context.Context, storeID string) (*domain.CacheSnapshot, bool, error) {
	snapshot, err := c.repo.LoadSnapshot(ctx, storeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}
