package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

func TestSnapshotReplaceIsolatedPerStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.LoadSnapshot(ctx, "store_a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := s.ReplaceSnapshot(ctx, domain.CacheSnapshot{
		StoreID:     "store_a",
		Products:    []domain.Product{{ID: "p1"}, {ID: "p2"}},
		RefreshedAt: at,
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplaceSnapshot(ctx, domain.CacheSnapshot{
		StoreID:  "store_a",
		Products: []domain.Product{{ID: "p3"}},
	}); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "store_a")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Products) != 1 || got.Products[0].ID != "p3" {
		t.Fatalf("expected last write to win, got %+v", got.Products)
	}

	got.Products[0].Name = "mutated"
	again, _ := s.LoadSnapshot(ctx, "store_a")
	if again.Products[0].Name != "" {
		t.Fatalf("callers must not alias stored snapshot")
	}

	if err := s.ReplaceSnapshot(ctx, domain.CacheSnapshot{}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty store id, got %v", err)
	}
}

func TestOfflineQueueOrderingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i, storeID := range []string{"store_a", "store_b", "store_a"} {
		_, err := s.AppendOffline(ctx, domain.OfflineEntry{
			StoreID: storeID,
			Payload: domain.SalePayload{ClientTransactionID: string(rune('a' + i))},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := s.ListOffline(ctx, "store_a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 1 || entries[1].ID != 3 {
		t.Fatalf("unexpected store_a entries %+v", entries)
	}

	if err := s.DeleteOffline(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteOffline(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	next, _ := s.AppendOffline(ctx, domain.OfflineEntry{StoreID: "store_a", Payload: domain.SalePayload{ClientTransactionID: "z"}})
	if next.ID != 4 {
		t.Fatalf("ids must stay monotonic, got %d", next.ID)
	}
}

func TestOfflineStoresListsStoresWithEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i, storeID := range []string{"store_b", "store_a", "store_b"} {
		if _, err := s.AppendOffline(ctx, domain.OfflineEntry{
			StoreID: storeID,
			Payload: domain.SalePayload{ClientTransactionID: string(rune('a' + i))},
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	stores, err := s.OfflineStores(ctx)
	if err != nil {
		t.Fatalf("offline stores: %v", err)
	}
	if len(stores) != 2 || stores[0] != "store_a" || stores[1] != "store_b" {
		t.Fatalf("unexpected stores %v", stores)
	}

	if err := s.DeleteOffline(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stores, _ = s.OfflineStores(ctx)
	if len(stores) != 1 || stores[0] != "store_b" {
		t.Fatalf("expected only store_b after draining store_a, got %v", stores)
	}
}
