package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kasirinaja/posclient/internal/cache"
	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/remote"
	"kasirinaja/posclient/internal/session"
	"kasirinaja/posclient/internal/state"
)

// Orchestrator reconciles the local state with the commerce authority.
//
// Every fetch is bound to the session token that was current when it
// started. Results are committed through Commit, which drops them when the
// active store or generation changed in the meantime. Stale fetches are not
// cancelled; they finish and are discarded.
type Orchestrator struct {
	session   *session.Session
	state     *state.State
	cache     *cache.LocalCache
	authority remote.Authority
	now       func() time.Time

	// commitMu serializes store switches with commits so that a staleness
	// check and the write it guards cannot interleave with a reset.
	commitMu sync.Mutex

	mu       sync.Mutex
	inFlight map[string]uint64
}

func New(sess *session.Session, st *state.State, localCache *cache.LocalCache, authority remote.Authority) *Orchestrator {
	return &Orchestrator{
		session:   sess,
		state:     st,
		cache:     localCache,
		authority: authority,
		now:       func() time.Time { return time.Now().UTC() },
		inFlight:  map[string]uint64{},
	}
}

// Run is one full fetch. Phase 1 has completed when Fetch returns; Wait
// blocks until the background phase 3 is done too.
type Run struct {
	Token     session.Token
	FromCache bool
	Err       error
	done      chan struct{}
}

func (r *Run) Wait() {
	<-r.done
}

// Commit runs fn only while token is still the session's current token.
func (o *Orchestrator) Commit(token session.Token, fn func()) bool {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()
	if !o.session.IsCurrent(token) {
		return false
	}
	fn()
	return true
}

// SwitchStore makes storeID active, clears the previous store's collections
// and runs a full fetch for the new store.
func (o *Orchestrator) SwitchStore(ctx context.Context, storeID string) (*Run, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}

	o.commitMu.Lock()
	token := o.session.Switch(storeID)
	if o.state.StoreID() != storeID {
		o.state.Reset(storeID)
	}
	o.commitMu.Unlock()

	log.Printf("[syncer] active store %s (generation %d)", token.StoreID, token.Generation)
	run, started := o.Fetch(ctx)
	if !started {
		return nil, nil
	}
	return run, nil
}

// Fetch starts a full fetch for the current token. It returns started=false
// when no store is active or a fetch for the same store and generation is
// already running.
func (o *Orchestrator) Fetch(ctx context.Context) (*Run, bool) {
	token := o.session.Token()
	if token.StoreID == "" {
		return nil, false
	}
	if !o.begin(token) {
		log.Printf("[syncer] fetch for %s already in flight, dropped", token.StoreID)
		return nil, false
	}

	run := &Run{Token: token, done: make(chan struct{})}
	run.FromCache, run.Err = o.phaseOne(ctx, token)

	if !o.session.IsCurrent(token) {
		o.end(token)
		close(run.done)
		return run, true
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(run.done)
		defer o.end(token)
		o.phaseThree(bg, token)
	}()
	return run, true
}

// LoadCatalog fetches the full product list for the active store. When the
// authority is unreachable the cached products are served instead.
func (o *Orchestrator) LoadCatalog(ctx context.Context) error {
	token := o.session.Token()
	if token.StoreID == "" {
		return domain.ErrNoActiveStore
	}

	products, err := o.authority.FetchCatalog(ctx, token.StoreID)
	if err != nil {
		log.Printf("[syncer] WARN: catalog fetch for %s failed: %v", token.StoreID, err)
		snap, ok, cacheErr := o.cache.Read(ctx, token.StoreID)
		if cacheErr != nil || !ok {
			return fmt.Errorf("load catalog: %w", err)
		}
		if !o.Commit(token, func() { o.state.SetProducts(snap.Products) }) {
			log.Printf("[syncer] discarded stale cached catalog for %s", token.StoreID)
		}
		return nil
	}

	if !o.Commit(token, func() { o.state.SetProducts(products) }) {
		log.Printf("[syncer] discarded stale catalog for %s", token.StoreID)
		return nil
	}
	o.persist(ctx, token)
	return nil
}

// ApplyPush merges a realtime row change by primary key. Product changes for
// a store other than the active one are ignored.
func (o *Orchestrator) ApplyPush(event domain.PushEvent) {
	token := o.session.Token()

	switch event.Entity {
	case domain.EntityStore:
		o.commitMu.Lock()
		defer o.commitMu.Unlock()
		if event.Type == domain.PushDelete {
			o.state.DeleteStore(event.ID)
			return
		}
		if event.Store != nil {
			o.state.UpsertStore(*event.Store)
		}

	case domain.EntityProduct:
		if token.StoreID == "" || (event.StoreID != "" && event.StoreID != token.StoreID) {
			return
		}
		o.Commit(token, func() {
			if event.Type == domain.PushDelete {
				o.state.DeleteProduct(event.ID)
				return
			}
			if event.Product != nil {
				o.state.UpsertProduct(*event.Product)
			}
		})
	}
}

func (o *Orchestrator) phaseOne(ctx context.Context, token session.Token) (bool, error) {
	snap, err := o.authority.FetchSnapshot(ctx, token.StoreID)
	if err != nil {
		log.Printf("[syncer] WARN: snapshot for %s failed, trying offline cache: %v", token.StoreID, err)
		cached, ok, cacheErr := o.cache.Read(ctx, token.StoreID)
		if cacheErr != nil {
			log.Printf("[syncer] WARN: offline cache read for %s failed: %v", token.StoreID, cacheErr)
		}
		if !ok {
			return false, fmt.Errorf("snapshot: %w", err)
		}
		committed := o.Commit(token, func() {
			o.state.SetCategories(cached.Categories)
			o.state.SetProducts(cached.Products)
			o.state.SetCustomers(cached.Customers)
		})
		if !committed {
			log.Printf("[syncer] discarded stale offline cache for %s", token.StoreID)
			return false, nil
		}
		return true, nil
	}

	committed := o.Commit(token, func() {
		o.state.SetSummary(snap.Summary)
		o.state.SetCategories(snap.Categories)
	})
	if !committed {
		log.Printf("[syncer] discarded stale snapshot for %s", token.StoreID)
		return false, nil
	}
	o.persist(ctx, token)
	return false, nil
}

func (o *Orchestrator) phaseThree(ctx context.Context, token session.Token) {
	var g errgroup.Group
	g.Go(background(o, ctx, token, "transactions", o.authority.FetchTransactions, o.state.SetTransactions))
	g.Go(background(o, ctx, token, "customers", o.authority.FetchCustomers, o.state.SetCustomers))
	g.Go(background(o, ctx, token, "suppliers", o.authority.FetchSuppliers, o.state.SetSuppliers))
	g.Go(background(o, ctx, token, "promotions", o.authority.FetchPromotions, o.state.SetPromotions))
	g.Go(background(o, ctx, token, "purchase orders", o.authority.FetchPurchaseOrders, o.state.SetPurchaseOrders))
	g.Go(background(o, ctx, token, "stock movements", o.authority.FetchStockMovements, o.state.SetStockMovements))
	_ = g.Wait()

	o.persist(ctx, token)
}

func background[T any](o *Orchestrator, ctx context.Context, token session.Token, name string, fetch func(context.Context, string) ([]T, error), commit func([]T)) func() error {
	return func() error {
		items, err := fetch(ctx, token.StoreID)
		if err != nil {
			log.Printf("[syncer] WARN: %s for %s failed: %v", name, token.StoreID, err)
			return nil
		}
		if !o.Commit(token, func() { commit(items) }) {
			log.Printf("[syncer] discarded stale %s for %s", name, token.StoreID)
		}
		return nil
	}
}

// persist writes the offline snapshot once products, categories and
// customers are all loaded for the current token.
func (o *Orchestrator) persist(ctx context.Context, token session.Token) {
	var snap domain.CacheSnapshot
	ready := o.Commit(token, func() {
		if o.state.Cacheable() {
			snap = o.state.CacheSnapshot(o.now())
		}
	})
	if !ready || snap.StoreID != token.StoreID {
		return
	}
	if err := o.cache.Refresh(ctx, snap.StoreID, snap.Products, snap.Categories, snap.Customers); err != nil {
		log.Printf("[syncer] WARN: offline snapshot for %s not saved: %v", snap.StoreID, err)
	}
}

func (o *Orchestrator) begin(token session.Token) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen, ok := o.inFlight[token.StoreID]; ok && gen == token.Generation {
		return false
	}
	o.inFlight[token.StoreID] = token.Generation
	return true
}

func (o *Orchestrator) end(token session.Token) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[token.StoreID] == token.Generation {
		delete(o.inFlight, token.StoreID)
	}
}
