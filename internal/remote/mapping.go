package remote

import (
	"time"

	"kasirinaja/posclient/internal/domain"
)

// Wire shapes of the commerce authority. Field names follow the backend's
// tables; the mapping functions below are the only place that knows both.

type envelope[T any] struct {
	Success *bool  `json:"success,omitempty"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

type wireTier struct {
	MinQty int     `json:"min_qty"`
	Price  float64 `json:"price"`
}

type wireProduct struct {
	ID           string     `json:"id"`
	StoreID      string     `json:"store_id"`
	Name         string     `json:"name"`
	CategoryID   string     `json:"category_id"`
	Price        float64    `json:"sell_price"`
	BuyPrice     float64    `json:"buy_price"`
	Stock        int        `json:"stock"`
	MinStock     int        `json:"min_stock"`
	IsWholesale  bool       `json:"is_wholesale"`
	Type         string     `json:"type"`
	PricingTiers []wireTier `json:"pricing_tiers"`
}

type wireCategory struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
}

type wireCustomer struct {
	ID         string  `json:"id"`
	StoreID    string  `json:"store_id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	TotalSpent float64 `json:"total_spent"`
	Debt       float64 `json:"debt"`
	Loyalty    int     `json:"loyalty_points"`
}

type wireStore struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type wireSummary struct {
	StoreID           string  `json:"store_id"`
	StoreName         string  `json:"store_name"`
	TaxRate           float64 `json:"tax_rate"`
	ServiceCharge     float64 `json:"service_charge"`
	TaxType           string  `json:"tax_type"`
	ProductCount      int     `json:"total_products"`
	LowStockCount     int     `json:"low_stock_count"`
	TodayRevenue      float64 `json:"today_revenue"`
	TodayTransactions int     `json:"today_transactions"`
}

type wireSnapshot struct {
	Categories []wireCategory `json:"categories"`
	Summary    wireSummary    `json:"summary"`
}

type wireItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Qty         int     `json:"quantity"`
	Price       float64 `json:"price"`
	BuyPrice    float64 `json:"buy_price"`
	Discount    float64 `json:"discount"`
	IsService   bool    `json:"is_service,omitempty"`
}

type wireTransaction struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_transaction_id,omitempty"`
	StoreID       string     `json:"store_id"`
	Items         []wireItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Tax           float64    `json:"tax"`
	Service       float64    `json:"service_charge"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	AmountPaid    float64    `json:"amount_paid"`
	Change        float64    `json:"change"`
	CustomerID    string     `json:"customer_id,omitempty"`
	PointsEarned  int        `json:"points_earned"`
	DebtAmount    float64    `json:"debt_amount"`
	PromotionID   string     `json:"promotion_id,omitempty"`
	Status        string     `json:"status"`
	Reason        string     `json:"void_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type wirePromotion struct {
	ID             string   `json:"id"`
	StoreID        string   `json:"store_id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	TargetIDs      []string `json:"target_ids"`
	Value          float64  `json:"value"`
	MinPurchase    float64  `json:"min_purchase"`
	AllowMultiples *bool    `json:"allow_multiples"`
	IsActive       bool     `json:"is_active"`
	UsageLimit     int      `json:"usage_limit"`
	UsageCount     int      `json:"usage_count"`
}

type wireSupplier struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

type wirePurchaseOrderItem struct {
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	Cost      float64 `json:"cost"`
}

type wirePurchaseOrder struct {
	ID         string                  `json:"id"`
	StoreID    string                  `json:"store_id"`
	SupplierID string                  `json:"supplier_id"`
	Status     string                  `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	Items      []wirePurchaseOrderItem `json:"items"`
}

type wireStockMovement struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	Qty       int       `json:"qty"`
	Type      string    `json:"type"`
	Reference string    `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

type wireSaleResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type wireReversal struct {
	Reason string `json:"reason"`
}

type wirePushEvent struct {
	Table     string          `json:"table"`
	EventType string          `json:"eventType"`
	New       *wirePushRecord `json:"new,omitempty"`
	Old       *wirePushRecord `json:"old,omitempty"`
}

// wirePushRecord is the union of the columns carried by store and product
// change rows.
type wirePushRecord struct {
	wireProduct
	Address string `json:"address"`
}

const wireServiceType = "service"

func toProduct(w wireProduct) domain.Product {
	tiers := make([]domain.PricingTier, 0, len(w.PricingTiers))
	for _, t := range w.PricingTiers {
		tiers = append(tiers, domain.PricingTier{Duration: t.MinQty, Price: t.Price})
	}
	if len(tiers) == 0 {
		tiers = nil
	}
	return domain.Product{
		ID:           w.ID,
		StoreID:      w.StoreID,
		Name:         w.Name,
		CategoryID:   w.CategoryID,
		SellPrice:    w.Price,
		BuyPrice:     w.BuyPrice,
		Stock:        w.Stock,
		MinStock:     w.MinStock,
		IsWholesale:  w.IsWholesale,
		IsService:    w.Type == wireServiceType,
		PricingTiers: tiers,
	}
}

func toCategory(w wireCategory) domain.Category {
	return domain.Category{ID: w.ID, StoreID: w.StoreID, Name: w.Name}
}

func toCustomer(w wireCustomer) domain.Customer {
	return domain.Customer{
		ID:         w.ID,
		StoreID:    w.StoreID,
		Name:       w.Name,
		Phone:      w.Phone,
		TotalSpent: w.TotalSpent,
		Debt:       w.Debt,
		Points:     w.Loyalty,
	}
}

func toStore(w wireStore) domain.Store {
	return domain.Store{ID: w.ID, Name: w.Name, Address: w.Address}
}

func toSnapshot(w wireSnapshot) domain.Snapshot {
	return domain.Snapshot{
		Categories: mapAll(w.Categories, toCategory),
		Summary: domain.Summary{
			StoreID:   w.Summary.StoreID,
			StoreName: w.Summary.StoreName,
			Settings: domain.StoreSettings{
				TaxRate:     w.Summary.TaxRate,
				ServiceRate: w.Summary.ServiceCharge,
				TaxType:     w.Summary.TaxType,
			},
			ProductCount:      w.Summary.ProductCount,
			LowStockCount:     w.Summary.LowStockCount,
			TodayRevenue:      w.Summary.TodayRevenue,
			TodayTransactions: w.Summary.TodayTransactions,
		},
	}
}

func toTransaction(w wireTransaction) domain.Transaction {
	items := make([]domain.TransactionLine, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, domain.TransactionLine{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Qty:       it.Qty,
			UnitPrice: it.Price,
			BuyPrice:  it.BuyPrice,
			Discount:  it.Discount,
			IsService: it.IsService,
		})
	}
	return domain.Transaction{
		ID:            w.ID,
		LocalID:       w.ClientID,
		StoreID:       w.StoreID,
		Items:         items,
		Subtotal:      w.Subtotal,
		Discount:      w.Discount,
		Tax:           w.Tax,
		Service:       w.Service,
		Total:         w.Total,
		PaymentMethod: w.PaymentMethod,
		AmountPaid:    w.AmountPaid,
		Change:        w.Change,
		CustomerID:    w.CustomerID,
		PointsEarned:  w.PointsEarned,
		DebtAmount:    w.DebtAmount,
		PromotionID:   w.PromotionID,
		Status:        w.Status,
		Reason:        w.Reason,
		Date:          w.CreatedAt,
	}
}

func toPromotion(w wirePromotion) domain.Promotion {
	// a missing allow_multiples means multiples are allowed
	allowMultiples := w.AllowMultiples == nil || *w.AllowMultiples
	return domain.Promotion{
		ID:             w.ID,
		StoreID:        w.StoreID,
		Name:           w.Name,
		Type:           w.Type,
		TargetIDs:      w.TargetIDs,
		Value:          w.Value,
		MinPurchase:    w.MinPurchase,
		AllowMultiples: allowMultiples,
		IsActive:       w.IsActive,
		UsageLimit:     w.UsageLimit,
		UsageCount:     w.UsageCount,
	}
}

func toSupplier(w wireSupplier) domain.Supplier {
	return domain.Supplier{ID: w.ID, StoreID: w.StoreID, Name: w.Name, Phone: w.Phone}
}

func toPurchaseOrder(w wirePurchaseOrder) domain.PurchaseOrder {
	items := make([]domain.PurchaseOrderItem, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, domain.PurchaseOrderItem{ProductID: it.ProductID, Qty: it.Qty, Cost: it.Cost})
	}
	return domain.PurchaseOrder{
		ID:         w.ID,
		StoreID:    w.StoreID,
		SupplierID: w.SupplierID,
		Status:     w.Status,
		CreatedAt:  w.CreatedAt,
		Items:      items,
	}
}

func toStockMovement(w wireStockMovement) domain.StockMovement {
	return domain.StockMovement{
		ID:        w.ID,
		StoreID:   w.StoreID,
		ProductID: w.ProductID,
		Delta:     w.Qty,
		Kind:      w.Type,
		Reference: w.Reference,
		CreatedAt: w.CreatedAt,
	}
}

func fromSalePayload(p domain.SalePayload) wireTransaction {
	items := make([]wireItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, wireItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Qty:         it.Qty,
			Price:       it.UnitPrice,
			BuyPrice:    it.BuyPrice,
			Discount:    it.Discount,
			IsService:   it.IsService,
		})
	}
	return wireTransaction{
		ClientID:      p.ClientTransactionID,
		StoreID:       p.StoreID,
		Items:         items,
		Subtotal:      p.Subtotal,
		Discount:      p.DiscountAmount,
		Tax:           p.TaxAmount,
		Service:       p.ServiceCharge,
		Total:         p.Total,
		PaymentMethod: p.PaymentMethod,
		AmountPaid:    p.AmountPaid,
		Change:        p.Change,
		CustomerID:    p.CustomerID,
		PointsEarned:  p.PointsEarned,
		DebtAmount:    p.DebtAmount,
		PromotionID:   p.PromotionID,
		Status:        domain.TxStatusCompleted,
		CreatedAt:     p.CreatedAt,
	}
}

// toPushEvent maps a row change notification. Tables other than stores and
// products yield ok=false.
func toPushEvent(w wirePushEvent) (domain.PushEvent, bool) {
	var entity string
	switch w.Table {
	case "stores":
		entity = domain.EntityStore
	case "products":
		entity = domain.EntityProduct
	default:
		return domain.PushEvent{}, false
	}

	var kind string
	switch w.EventType {
	case "INSERT":
		kind = domain.PushInsert
	case "UPDATE":
		kind = domain.PushUpdate
	case "DELETE":
		kind = domain.PushDelete
	default:
		return domain.PushEvent{}, false
	}

	record := w.New
	if kind == domain.PushDelete || record == nil {
		record = w.Old
	}
	if record == nil || record.ID == "" {
		return domain.PushEvent{}, false
	}

	event := domain.PushEvent{Entity: entity, Type: kind, ID: record.ID, StoreID: record.StoreID}
	if kind != domain.PushDelete {
		switch entity {
		case domain.EntityProduct:
			product := toProduct(record.wireProduct)
			event.Product = &product
		case domain.EntityStore:
			st := toStore(wireStore{ID: record.ID, Name: record.Name, Address: record.Address})
			event.Store = &st
		}
	}
	return event, true
}

func mapAll[W any, D any](items []W, fn func(W) D) []D {
	out := make([]D, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
