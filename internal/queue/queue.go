package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/store"
)

// SubmitFunc delivers one queued sale to the commerce authority.
type SubmitFunc func(ctx context.Context, entry domain.OfflineEntry) error

// Queue is the durable FIFO of sales created while offline. Entries are
// store-scoped and leave the queue only after the authority accepted them.
type Queue struct {
	repo    store.QueueRepository
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	replaying map[string]bool
}

// New builds a queue whose replay submits at most perSecond entries per
// second. perSecond <= 0 disables pacing.
func New(repo store.QueueRepository, perSecond float64) *Queue {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Queue{
		repo:      repo,
		limiter:   rate.NewLimiter(limit, 1),
		now:       func() time.Time { return time.Now().UTC() },
		replaying: map[string]bool{},
	}
}

func (q *Queue) Enqueue(ctx context.Context, storeID string, payload domain.SalePayload) (*domain.OfflineEntry, error) {
	if storeID == "" {
		return nil, domain.ErrNoActiveStore
	}
	return q.repo.AppendOffline(ctx, domain.OfflineEntry{
		StoreID:    storeID,
		Payload:    payload,
		EnqueuedAt: q.now(),
		Status:     domain.TxStatusPendingSync,
	})
}

func (q *Queue) ListPending(ctx context.Context, storeID string) ([]domain.OfflineEntry, error) {
	return q.repo.ListOffline(ctx, storeID)
}

// Replay drains the store's entries in FIFO order. A failed submission keeps
// its entry and the loop moves on. A replay that is already running for the
// same store makes this call return an empty result.
// PendingStores lists the stores that still have queued sales.
func (q *Queue) PendingStores(ctx context.Context) ([]string, error) {
	return q.repo.OfflineStores(ctx)
}

func (q *Queue) Replay(ctx context.Context, storeID string, submit SubmitFunc) (domain.ReplayResult, error) {
	var result domain.ReplayResult
	if storeID == "" {
		return result, domain.ErrNoActiveStore
	}
	if !q.begin(storeID) {
		return result, nil
	}
	defer q.end(storeID)

	entries, err := q.repo.ListOffline(ctx, storeID)
	if err != nil {
		return result, fmt.Errorf("list offline queue: %w", err)
	}

	for _, entry := range entries {
		if entry.StoreID != storeID {
			continue
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return result, err
		}

		if err := submit(ctx, entry); err != nil {
			result.Errors++
			log.Printf("[queue] WARN: replay of %s (entry %d) failed: %v", entry.Payload.ClientTransactionID, entry.ID, err)
			continue
		}

		result.Synced++
		if err := q.repo.DeleteOffline(ctx, entry.ID); err != nil {
			log.Printf("[queue] WARN: synced entry %d could not be removed: %v", entry.ID, err)
		}
	}

	if result.Synced > 0 || result.Errors > 0 {
		log.Printf("[queue] replay store=%s synced=%d errors=%d", storeID, result.Synced, result.Errors)
	}
	return result, nil
}

func (q *Queue) begin(storeID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.replaying[storeID] {
		return false
	}
	q.replaying[storeID] = true
	return true
}

func (q *Queue) end(storeID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.replaying, storeID)
}
