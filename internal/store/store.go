package store

import (
	"context"
	"errors"

	"kasirinaja/posclient/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid record")
)

// SnapshotRepository keeps the last full offline snapshot per store.
type SnapshotRepository interface {
	// ReplaceSnapshot swaps the store's products, categories and customers as
	// one unit. Readers never observe a half-written snapshot.
	ReplaceSnapshot(ctx context.Context, snapshot domain.CacheSnapshot) error
	LoadSnapshot(ctx context.Context, storeID string) (*domain.CacheSnapshot, error)
}

// QueueRepository is the durable backing of the offline transaction queue.
type QueueRepository interface {
	// AppendOffline assigns the entry a monotonic id and persists it.
	AppendOffline(ctx context.Context, entry domain.OfflineEntry) (*domain.OfflineEntry, error)
	// ListOffline returns the store's entries ordered by id.
	ListOffline(ctx context.Context, storeID string) ([]domain.OfflineEntry, error)
	DeleteOffline(ctx context.Context, id int64) error
	// OfflineStores returns the ids of stores with queued entries, sorted.
	OfflineStores(ctx context.Context) ([]string, error)
}

type Repository interface {
	SnapshotRepository
	QueueRepository
}
