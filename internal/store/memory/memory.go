package memory

import (
	"context"
	"slices"
	"sync"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	snapshots     map[string]domain.CacheSnapshot
	offline       []domain.OfflineEntry
	nextOfflineID int64
}

func New() *Store {
	return &Store{
		snapshots: map[string]domain.CacheSnapshot{},
	}
}

func (s *Store) ReplaceSnapshot(_ context.Context, snapshot domain.CacheSnapshot) error {
	if snapshot.StoreID == "" {
		return store.ErrInvalid
	}

	copied := domain.CacheSnapshot{
		StoreID:     snapshot.StoreID,
		Products:    slices.Clone(snapshot.Products),
		Categories:  slices.Clone(snapshot.Categories),
		Customers:   slices.Clone(snapshot.Customers),
		RefreshedAt: snapshot.RefreshedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.StoreID] = copied
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context, storeID string) (*domain.CacheSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[storeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &domain.CacheSnapshot{
		StoreID:     snapshot.StoreID,
		Products:    slices.Clone(snapshot.Products),
		Categories:  slices.Clone(snapshot.Categories),
		Customers:   slices.Clone(snapshot.Customers),
		RefreshedAt: snapshot.RefreshedAt,
	}, nil
}

func (s *Store) AppendOffline(_ context.Context, entry domain.OfflineEntry) (*domain.OfflineEntry, error) {
	if entry.StoreID == "" || entry.Payload.ClientTransactionID == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOfflineID++
	entry.ID = s.nextOfflineID
	s.offline = append(s.offline, entry)
	return &entry, nil
}

func (s *Store) ListOffline(_ context.Context, storeID string) ([]domain.OfflineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OfflineEntry, 0, len(s.offline))
	for _, entry := range s.offline {
		if entry.StoreID == storeID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) OfflineStores(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, 4)
	for _, entry := range s.offline {
		if !slices.Contains(out, entry.StoreID) {
			out = append(out, entry.StoreID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) DeleteOffline(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.offline, func(e domain.OfflineEntry) bool { return e.ID == id })
	if idx < 0 {
		return store.ErrNotFound
	}
	s.offline = slices.Delete(s.offline, idx, idx+1)
	return nil
}
