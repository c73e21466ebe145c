package domain

import "time"

type PricingTier struct {
	Duration int     `json:"duration"`
	Price    float64 `json:"price"`
}

type Product struct {
	ID           string        `json:"id"`
	StoreID      string        `json:"store_id"`
	Name         string        `json:"name"`
	CategoryID   string        `json:"category_id,omitempty"`
	SellPrice    float64       `json:"sell_price"`
	BuyPrice     float64       `json:"buy_price"`
	Stock        int           `json:"stock"`
	MinStock     int           `json:"min_stock"`
	IsWholesale  bool          `json:"is_wholesale"`
	IsService    bool          `json:"is_service"`
	PricingTiers []PricingTier `json:"pricing_tiers,omitempty"`
}

type Category struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
}

type Customer struct {
	ID         string  `json:"id"`
	StoreID    string  `json:"store_id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	TotalSpent float64 `json:"total_spent"`
	Debt       float64 `json:"debt"`
	Points     int     `json:"points"`
}

type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type Supplier struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
}

type PurchaseOrderItem struct {
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	Cost      float64 `json:"cost"`
}

type PurchaseOrder struct {
	ID         string              `json:"id"`
	StoreID    string              `json:"store_id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	Items      []PurchaseOrderItem `json:"items"`
}

type StockMovement struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	Delta     int       `json:"delta"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	PromoTypeBundle     = "bundle"
	PromoTypePercentage = "percentage"
	PromoTypeFixed      = "fixed"
)

type Promotion struct {
	ID             string   `json:"id"`
	StoreID        string   `json:"store_id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	TargetIDs      []string `json:"target_ids,omitempty"`
	Value          float64  `json:"value"`
	MinPurchase    float64  `json:"min_purchase"`
	AllowMultiples bool     `json:"allow_multiples"`
	IsActive       bool     `json:"is_active"`
	UsageLimit     int      `json:"usage_limit"`
	UsageCount     int      `json:"usage_count"`
}

// PromotionEvaluation is the engine's verdict for a single promotion against
// the current cart.
type PromotionEvaluation struct {
	PromotionID       string   `json:"promotion_id"`
	IsApplicable      bool     `json:"is_applicable"`
	PotentialDiscount float64  `json:"potential_discount"`
	MissingItems      []string `json:"missing_items,omitempty"`
}

const (
	TaxTypeExclusive = "exclusive"
	TaxTypeInclusive = "inclusive"
)

type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxBase        float64 `json:"tax_base"`
	TaxAmount      float64 `json:"tax_amount"`
	ServiceCharge  float64 `json:"service_charge"`
	FinalTotal     float64 `json:"final_total"`
}

// StoreSettings are the per-store pricing knobs delivered with the phase-1
// snapshot summary.
type StoreSettings struct {
	TaxRate     float64 `json:"tax_rate"`
	ServiceRate float64 `json:"service_rate"`
	TaxType     string  `json:"tax_type"`
}

type Summary struct {
	StoreID           string        `json:"store_id"`
	StoreName         string        `json:"store_name"`
	Settings          StoreSettings `json:"settings"`
	ProductCount      int           `json:"product_count"`
	LowStockCount     int           `json:"low_stock_count"`
	TodayRevenue      float64       `json:"today_revenue"`
	TodayTransactions int           `json:"today_transactions"`
}

type Snapshot struct {
	Categories []Category `json:"categories"`
	Summary    Summary    `json:"summary"`
}

// CacheSnapshot is the per-store offline read model kept by the local cache.
type CacheSnapshot struct {
	StoreID     string     `json:"store_id"`
	Products    []Product  `json:"products"`
	Categories  []Category `json:"categories"`
	Customers   []Customer `json:"customers"`
	RefreshedAt time.Time  `json:"refreshed_at"`
}

const (
	TxStatusCompleted   = "completed"
	TxStatusPendingSync = "pending_sync"
	TxStatusVoid        = "void"
	TxStatusRefunded    = "refunded"
)

const (
	PaymentCash    = "cash"
	PaymentCard    = "card"
	PaymentQRIS    = "qris"
	PaymentEwallet = "ewallet"
	PaymentDebt    = "debt"
)

type TransactionLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	BuyPrice  float64 `json:"buy_price"`
	Discount  float64 `json:"discount"`
	IsService bool    `json:"is_service,omitempty"`
}

type Transaction struct {
	ID            string            `json:"id"`
	LocalID       string            `json:"local_id,omitempty"`
	StoreID       string            `json:"store_id"`
	Items         []TransactionLine `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	Discount      float64           `json:"discount"`
	Tax           float64           `json:"tax"`
	Service       float64           `json:"service"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	AmountPaid    float64           `json:"amount_paid"`
	Change        float64           `json:"change"`
	CustomerID    string            `json:"customer_id,omitempty"`
	PointsEarned  int               `json:"points_earned"`
	DebtAmount    float64           `json:"debt_amount"`
	PromotionID   string            `json:"promotion_id,omitempty"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	Date          time.Time         `json:"date"`
}

// CanTransition reports whether a transaction may move from one status to
// another. Transitions only move forward.
func CanTransition(from string, to string) bool {
	switch from {
	case TxStatusPendingSync:
		return to == TxStatusCompleted
	case TxStatusCompleted:
		return to == TxStatusVoid || to == TxStatusRefunded
	default:
		return false
	}
}

// SalePayload is what the commerce authority receives for a sale, both live
// and on queue replay. ClientTransactionID doubles as the idempotency key.
type SalePayload struct {
	ClientTransactionID string            `json:"client_transaction_id"`
	StoreID             string            `json:"store_id"`
	Items               []TransactionLine `json:"items"`
	Subtotal            float64           `json:"subtotal"`
	DiscountAmount      float64           `json:"discount_amount"`
	TaxAmount           float64           `json:"tax_amount"`
	ServiceCharge       float64           `json:"service_charge"`
	Total               float64           `json:"total"`
	PaymentMethod       string            `json:"payment_method"`
	AmountPaid          float64           `json:"amount_paid"`
	Change              float64           `json:"change"`
	CustomerID          string            `json:"customer_id,omitempty"`
	PointsEarned        int               `json:"points_earned"`
	DebtAmount          float64           `json:"debt_amount"`
	PromotionID         string            `json:"promotion_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

type OfflineEntry struct {
	ID         int64       `json:"id"`
	StoreID    string      `json:"store_id"`
	Payload    SalePayload `json:"payload"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	Status     string      `json:"status"`
}

type ReplayResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// QuoteRequest is the cart as sent by the register.
type QuoteRequest struct {
	Cart
}

type QuoteLine struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Qty             int     `json:"qty"`
	UnitPrice       float64 `json:"unit_price"`
	PerUnitDiscount float64 `json:"per_unit_discount"`
	LineTotal       float64 `json:"line_total"`
}

type QuoteResponse struct {
	StoreID      string                `json:"store_id"`
	Cart         Cart                  `json:"cart"`
	Lines        []QuoteLine           `json:"lines"`
	Promotions   []PromotionEvaluation `json:"promotions"`
	AppliedPromo *PromotionEvaluation  `json:"applied_promo,omitempty"`
	Totals       Totals                `json:"totals"`
}

type SaleRequest struct {
	QuoteRequest
	PaymentMethod string  `json:"payment_method"`
	AmountPaid    float64 `json:"amount_paid"`
	CustomerID    string  `json:"customer_id,omitempty"`
}

type SaleResponse struct {
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Queued        bool    `json:"queued"`
	Totals        Totals  `json:"totals"`
	Change        float64 `json:"change"`
	PointsEarned  int     `json:"points_earned"`
	CreatedAt     string  `json:"created_at"`
}

type VoidRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	ManagerPIN    string `json:"manager_pin,omitempty"`
}

type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	ManagerPIN    string `json:"manager_pin,omitempty"`
}

type ReversalResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ProcessedAt   string `json:"processed_at"`
}

const (
	PushInsert = "insert"
	PushUpdate = "update"
	PushDelete = "delete"
)

const (
	EntityStore   = "store"
	EntityProduct = "product"
)

// PushEvent is a realtime change notification for a single row.
type PushEvent struct {
	Entity  string   `json:"entity"`
	Type    string   `json:"type"`
	StoreID string   `json:"store_id,omitempty"`
	ID      string   `json:"id"`
	Product *Product `json:"product,omitempty"`
	Store   *Store   `json:"store,omitempty"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)
