package remote

import (
	"context"
	"time"

	"kasirinaja/posclient/internal/domain"
)

// Authority is the remote commerce backend. It owns stock, ledgers and
// transaction history; the client only mirrors them.
//
// Errors wrap domain.ErrBackendRejected, domain.ErrPermissionDenied or
// domain.ErrNetworkUnavailable.
type Authority interface {
	SubmitSale(ctx context.Context, payload domain.SalePayload) (SaleResult, error)
	SubmitVoid(ctx context.Context, transactionID string, reason string) error
	SubmitRefund(ctx context.Context, transactionID string, reason string) error
	FetchTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)

	FetchSnapshot(ctx context.Context, storeID string) (*domain.Snapshot, error)
	FetchCatalog(ctx context.Context, storeID string) ([]domain.Product, error)
	FetchTransactions(ctx context.Context, storeID string) ([]domain.Transaction, error)
	FetchCustomers(ctx context.Context, storeID string) ([]domain.Customer, error)
	FetchSuppliers(ctx context.Context, storeID string) ([]domain.Supplier, error)
	FetchPromotions(ctx context.Context, storeID string) ([]domain.Promotion, error)
	FetchPurchaseOrders(ctx context.Context, storeID string) ([]domain.PurchaseOrder, error)
	FetchStockMovements(ctx context.Context, storeID string) ([]domain.StockMovement, error)

	Ping(ctx context.Context) error
}

type SaleResult struct {
	TransactionID string
	CreatedAt     time.Time
}
