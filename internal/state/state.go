package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"kasirinaja/posclient/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found in local state")
	ErrInvalidTransition = errors.New("invalid transaction status transition")
)

// Collection names a local collection that is filled by the sync phases.
type Collection string

const (
	Products       Collection = "products"
	Categories     Collection = "categories"
	Customers      Collection = "customers"
	Transactions   Collection = "transactions"
	Suppliers      Collection = "suppliers"
	Promotions     Collection = "promotions"
	PurchaseOrders Collection = "purchase_orders"
	StockMovements Collection = "stock_movements"
)

// State holds the active store's collections, keyed by primary key. It is
// reset on every store switch and written only by callers that hold a current
// session token.
type State struct {
	mu             sync.RWMutex
	storeID        string
	summary        *domain.Summary
	stores         map[string]domain.Store
	products       map[string]domain.Product
	categories     map[string]domain.Category
	customers      map[string]domain.Customer
	transactions   map[string]domain.Transaction
	suppliers      map[string]domain.Supplier
	promotions     map[string]domain.Promotion
	purchaseOrders map[string]domain.PurchaseOrder
	stockMovements map[string]domain.StockMovement
	loaded         map[Collection]bool
}

func New() *State {
	s := &State{stores: map[string]domain.Store{}}
	s.resetLocked("")
	return s
}

// Reset drops every store-scoped collection. The store directory survives.
func (s *State) Reset(storeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(storeID)
}

func (s *State) resetLocked(storeID string) {
	s.storeID = storeID
	s.summary = nil
	s.products = map[string]domain.Product{}
	s.categories = map[string]domain.Category{}
	s.customers = map[string]domain.Customer{}
	s.transactions = map[string]domain.Transaction{}
	s.suppliers = map[string]domain.Supplier{}
	s.promotions = map[string]domain.Promotion{}
	s.purchaseOrders = map[string]domain.PurchaseOrder{}
	s.stockMovements = map[string]domain.StockMovement{}
	s.loaded = map[Collection]bool{}
}

func (s *State) StoreID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storeID
}

func (s *State) Loaded(c Collection) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[c]
}

// Cacheable reports whether products, categories and customers have all been
// loaded, which is the precondition for persisting an offline snapshot.
func (s *State) Cacheable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[Products] && s.loaded[Categories] && s.loaded[Customers]
}

func (s *State) SetSummary(summary domain.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = &summary
}

func (s *State) Summary() (domain.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return domain.Summary{}, false
	}
	return *s.summary, true
}

// Settings returns the store settings from the snapshot summary, falling back
// to the given defaults before the summary arrives.
func (s *State) Settings(fallback domain.StoreSettings) domain.StoreSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return fallback
	}
	settings := s.summary.Settings
	if settings.TaxType == "" {
		settings.TaxType = fallback.TaxType
	}
	return settings
}

func (s *State) SetProducts(items []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = keyed(items, func(p domain.Product) string { return p.ID })
	s.loaded[Products] = true
}

func (s *State) SetCategories(items []domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = keyed(items, func(c domain.Category) string { return c.ID })
	s.loaded[Categories] = true
}

func (s *State) SetCustomers(items []domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = keyed(items, func(c domain.Customer) string { return c.ID })
	s.loaded[Customers] = true
}

// SetTransactions replaces the server-side history. Local transactions still
// waiting for sync are kept.
func (s *State) SetTransactions(items []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := keyed(items, func(t domain.Transaction) string { return t.ID })
	for id, tx := range s.transactions {
		if tx.Status == domain.TxStatusPendingSync {
			if _, exists := next[id]; !exists {
				next[id] = tx
			}
		}
	}
	s.transactions = next
	s.loaded[Transactions] = true
}

func (s *State) SetSuppliers(items []domain.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers = keyed(items, func(v domain.Supplier) string { return v.ID })
	s.loaded[Suppliers] = true
}

func (s *State) SetPromotions(items []domain.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promotions = keyed(items, func(v domain.Promotion) string { return v.ID })
	s.loaded[Promotions] = true
}

func (s *State) SetPurchaseOrders(items []domain.PurchaseOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchaseOrders = keyed(items, func(v domain.PurchaseOrder) string { return v.ID })
	s.loaded[PurchaseOrders] = true
}

func (s *State) SetStockMovements(items []domain.StockMovement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockMovements = keyed(items, func(v domain.StockMovement) string { return v.ID })
	s.loaded[StockMovements] = true
}

func (s *State) UpsertProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *State) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *State) UpsertStore(st domain.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[st.ID] = st
}

func (s *State) DeleteStore(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, id)
}

func (s *State) Product(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *State) Customer(id string) (domain.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	return c, ok
}

func (s *State) Transaction(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	return tx, ok
}

func (s *State) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.products)
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *State) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.categories)
	slices.SortFunc(out, func(a, b domain.Category) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *State) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.customers)
	slices.SortFunc(out, func(a, b domain.Customer) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *State) Promotions() []domain.Promotion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.promotions)
	slices.SortFunc(out, func(a, b domain.Promotion) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *State) Suppliers() []domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.suppliers)
	slices.SortFunc(out, func(a, b domain.Supplier) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *State) PurchaseOrders() []domain.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.purchaseOrders)
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *State) StockMovements() []domain.StockMovement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.stockMovements)
	slices.SortFunc(out, func(a, b domain.StockMovement) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *State) Stores() []domain.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.stores)
	slices.SortFunc(out, func(a, b domain.Store) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Transactions returns the history newest first.
func (s *State) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := values(s.transactions)
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// AdjustStock applies delta to a product's stock. Service items and products
// that are not loaded are left alone.
func (s *State) AdjustStock(productID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.IsService {
		return
	}
	p.Stock += delta
	s.products[productID] = p
}

func (s *State) AdjustCustomer(id string, spend float64, debt float64, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return
	}
	c.TotalSpent += spend
	c.Debt += debt
	if c.Debt < 0 {
		c.Debt = 0
	}
	c.Points += points
	if c.Points < 0 {
		c.Points = 0
	}
	s.customers[id] = c
}

func (s *State) AppendTransaction(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
}

func (s *State) SetTransactionStatus(id string, status string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if !domain.CanTransition(tx.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, status)
	}
	tx.Status = status
	if reason != "" {
		tx.Reason = reason
	}
	s.transactions[id] = tx
	return nil
}

// ConfirmPending marks a locally queued transaction as accepted by the
// authority and re-keys it under the server id. No effects are re-applied.
func (s *State) ConfirmPending(localID string, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[localID]
	if !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, localID)
	}
	if !domain.CanTransition(tx.Status, domain.TxStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, domain.TxStatusCompleted)
	}
	tx.Status = domain.TxStatusCompleted
	tx.LocalID = localID
	if serverID != "" && serverID != localID {
		delete(s.transactions, localID)
		tx.ID = serverID
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *State) CacheSnapshot(now time.Time) domain.CacheSnapshot {
	return domain.CacheSnapshot{
		StoreID:     s.StoreID(),
		Products:    s.Products(),
		Categories:  s.Categories(),
		Customers:   s.Customers(),
		RefreshedAt: now,
	}
}

func keyed[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, item := range items {
		out[key(item)] = item
	}
	return out
}

func values[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
