// Package remotetest provides an in-memory commerce authority for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/remote"
)

// Fake implements remote.Authority. Configure the exported fields before
// use; recorded calls are read back through the accessor methods.
type Fake struct {
	Snapshots      map[string]domain.Snapshot
	Catalog        map[string][]domain.Product
	Customers      map[string][]domain.Customer
	Promotions     map[string][]domain.Promotion
	Suppliers      map[string][]domain.Supplier
	PurchaseOrders map[string][]domain.PurchaseOrder
	StockMovements map[string][]domain.StockMovement

	SnapshotErr    error
	TransactionErr error
	SaleErr        error
	ReversalErr    error
	PingErr        error

	// BeforeSnapshot runs at the start of FetchSnapshot, for example to block
	// until the test releases it.
	BeforeSnapshot func(storeID string)

	// FetchErrs fails a collection fetch by name: catalog, transactions,
	// customers, suppliers, promotions, purchase_orders or stock_movements.
	FetchErrs map[string]error

	// BeforeFetch runs at the start of every collection fetch.
	BeforeFetch func(collection string, storeID string)

	mu           sync.Mutex
	transactions map[string]domain.Transaction
	sales        []domain.SalePayload
	reversals    []string
	nextID       int
}

var _ remote.Authority = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Snapshots:      map[string]domain.Snapshot{},
		Catalog:        map[string][]domain.Product{},
		Customers:      map[string][]domain.Customer{},
		Promotions:     map[string][]domain.Promotion{},
		Suppliers:      map[string][]domain.Supplier{},
		PurchaseOrders: map[string][]domain.PurchaseOrder{},
		StockMovements: map[string][]domain.StockMovement{},
		FetchErrs:      map[string]error{},
		transactions:   map[string]domain.Transaction{},
	}
}

// PutTransaction seeds the authority's canonical copy of a transaction.
func (f *Fake) PutTransaction(tx domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[tx.ID] = tx
}

func (f *Fake) Sales() []domain.SalePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SalePayload(nil), f.sales...)
}

// Reversals lists "void:<id>" and "refund:<id>" in call order.
func (f *Fake) Reversals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reversals...)
}

func (f *Fake) SetSaleErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SaleErr = err
}

func (f *Fake) SubmitSale(_ context.Context, payload domain.SalePayload) (remote.SaleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaleErr != nil {
		return remote.SaleResult{}, f.SaleErr
	}
	f.nextID++
	id := fmt.Sprintf("srv_%d", f.nextID)
	f.sales = append(f.sales, payload)
	f.transactions[id] = domain.Transaction{
		ID:            id,
		LocalID:       payload.ClientTransactionID,
		StoreID:       payload.StoreID,
		Items:         payload.Items,
		Total:         payload.Total,
		PaymentMethod: payload.PaymentMethod,
		CustomerID:    payload.CustomerID,
		PointsEarned:  payload.PointsEarned,
		DebtAmount:    payload.DebtAmount,
		Status:        domain.TxStatusCompleted,
		Date:          payload.CreatedAt,
	}
	return remote.SaleResult{TransactionID: id, CreatedAt: time.Now().UTC()}, nil
}

func (f *Fake) SubmitVoid(_ context.Context, transactionID string, reason string) error {
	return f.reverse("void", transactionID, domain.TxStatusVoid, reason)
}

func (f *Fake) SubmitRefund(_ context.Context, transactionID string, reason string) error {
	return f.reverse("refund", transactionID, domain.TxStatusRefunded, reason)
}

func (f *Fake) reverse(kind string, transactionID string, status string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReversalErr != nil {
		return f.ReversalErr
	}
	tx, ok := f.transactions[transactionID]
	if !ok {
		return fmt.Errorf("%w: transaction not found", domain.ErrBackendRejected)
	}
	tx.Status = status
	tx.Reason = reason
	f.transactions[transactionID] = tx
	f.reversals = append(f.reversals, kind+":"+transactionID)
	return nil
}

func (f *Fake) FetchTransaction(_ context.Context, transactionID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TransactionErr != nil {
		return nil, f.TransactionErr
	}
	tx, ok := f.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: transaction not found", domain.ErrBackendRejected)
	}
	return &tx, nil
}

func (f *Fake) FetchSnapshot(_ context.Context, storeID string) (*domain.Snapshot, error) {
	if f.BeforeSnapshot != nil {
		f.BeforeSnapshot(storeID)
	}
	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}
	snap := f.Snapshots[storeID]
	return &snap, nil
}

func (f *Fake) beforeFetch(collection string, storeID string) error {
	if f.BeforeFetch != nil {
		f.BeforeFetch(collection, storeID)
	}
	return f.FetchErrs[collection]
}

func (f *Fake) FetchCatalog(_ context.Context, storeID string) ([]domain.Product, error) {
	if err := f.beforeFetch("catalog", storeID); err != nil {
		return nil, err
	}
	return append([]domain.Product(nil), f.Catalog[storeID]...), nil
}

func (f *Fake) FetchTransactions(_ context.Context, storeID string) ([]domain.Transaction, error) {
	if err := f.beforeFetch("transactions", storeID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Transaction, 0, len(f.transactions))
	for _, tx := range f.transactions {
		if tx.StoreID == storeID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *Fake) FetchCustomers(_ context.Context, storeID string) ([]domain.Customer, error) {
	if err := f.beforeFetch("customers", storeID); err != nil {
		return nil, err
	}
	return append([]domain.Customer(nil), f.Customers[storeID]...), nil
}

func (f *Fake) FetchSuppliers(_ context.Context, storeID string) ([]domain.Supplier, error) {
	if err := f.beforeFetch("suppliers", storeID); err != nil {
		return nil, err
	}
	return append([]domain.Supplier(nil), f.Suppliers[storeID]...), nil
}

func (f *Fake) FetchPromotions(_ context.Context, storeID string) ([]domain.Promotion, error) {
	if err := f.beforeFetch("promotions", storeID); err != nil {
		return nil, err
	}
	return append([]domain.Promotion(nil), f.Promotions[storeID]...), nil
}

func (f *Fake) FetchPurchaseOrders(_ context.Context, storeID string) ([]domain.PurchaseOrder, error) {
	if err := f.beforeFetch("purchase_orders", storeID); err != nil {
		return nil, err
	}
	return append([]domain.PurchaseOrder(nil), f.PurchaseOrders[storeID]...), nil
}

func (f *Fake) FetchStockMovements(_ context.Context, storeID string) ([]domain.StockMovement, error) {
	if err := f.beforeFetch("stock_movements", storeID); err != nil {
		return nil, err
	}
	return append([]domain.StockMovement(nil), f.StockMovements[storeID]...), nil
}

func (f *Fake) Ping(context.Context) error {
	return f.PingErr
}
