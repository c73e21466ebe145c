package state

import (
	"errors"
	"testing"
	"time"

	"kasirinaja/posclient/internal/domain"
)

func TestResetDropsStoreScopedCollections(t *testing.T) {
	s := New()
	s.Reset("store_a")
	s.SetProducts([]domain.Product{{ID: "p1", Name: "Kopi", Stock: 5}})
	s.SetSummary(domain.Summary{StoreID: "store_a"})
	s.UpsertStore(domain.Store{ID: "store_a", Name: "Toko A"})

	s.Reset("store_b")

	if got := s.Products(); len(got) != 0 {
		t.Fatalf("expected no products after reset, got %+v", got)
	}
	if _, ok := s.Summary(); ok {
		t.Fatalf("expected summary cleared after reset")
	}
	if s.Loaded(Products) {
		t.Fatalf("loaded flags must be cleared")
	}
	if got := s.Stores(); len(got) != 1 {
		t.Fatalf("store directory should survive reset, got %+v", got)
	}
	if s.StoreID() != "store_b" {
		t.Fatalf("expected store_b, got %q", s.StoreID())
	}
}

func TestAdjustStockSkipsServiceItems(t *testing.T) {
	s := New()
	s.SetProducts([]domain.Product{
		{ID: "goods", Stock: 10},
		{ID: "service", Stock: 0, IsService: true},
	})

	s.AdjustStock("goods", -3)
	s.AdjustStock("service", -3)
	s.AdjustStock("missing", -3)

	goods, _ := s.Product("goods")
	service, _ := s.Product("service")
	if goods.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", goods.Stock)
	}
	if service.Stock != 0 {
		t.Fatalf("service stock must not move, got %d", service.Stock)
	}
}

func TestTransactionStatusIsMonotone(t *testing.T) {
	s := New()
	s.AppendTransaction(domain.Transaction{ID: "trx_1", Status: domain.TxStatusCompleted})

	if err := s.SetTransactionStatus("trx_1", domain.TxStatusVoid, "salah input"); err != nil {
		t.Fatalf("void: %v", err)
	}
	err := s.SetTransactionStatus("trx_1", domain.TxStatusCompleted, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := s.SetTransactionStatus("nope", domain.TxStatusVoid, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	tx, _ := s.Transaction("trx_1")
	if tx.Reason != "salah input" {
		t.Fatalf("expected reason to be recorded, got %q", tx.Reason)
	}
}

func TestConfirmPendingRekeysWithoutEffects(t *testing.T) {
	s := New()
	s.SetProducts([]domain.Product{{ID: "p1", Stock: 4}})
	s.AppendTransaction(domain.Transaction{ID: "local_1", Status: domain.TxStatusPendingSync})

	if err := s.ConfirmPending("local_1", "srv_9"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, ok := s.Transaction("local_1"); ok {
		t.Fatalf("local key should be gone")
	}
	tx, ok := s.Transaction("srv_9")
	if !ok || tx.Status != domain.TxStatusCompleted || tx.LocalID != "local_1" {
		t.Fatalf("unexpected confirmed transaction %+v", tx)
	}
	p, _ := s.Product("p1")
	if p.Stock != 4 {
		t.Fatalf("confirm must not touch stock, got %d", p.Stock)
	}
}

func TestSetTransactionsKeepsPendingLocalEntries(t *testing.T) {
	s := New()
	s.AppendTransaction(domain.Transaction{ID: "local_1", Status: domain.TxStatusPendingSync})
	s.SetTransactions([]domain.Transaction{{ID: "srv_1", Status: domain.TxStatusCompleted, Date: time.Now()}})

	if got := len(s.Transactions()); got != 2 {
		t.Fatalf("expected server and pending transactions, got %d", got)
	}
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	s := New()
	defaults := domain.StoreSettings{TaxRate: 11, TaxType: domain.TaxTypeExclusive}
	if got := s.Settings(defaults); got != defaults {
		t.Fatalf("expected defaults, got %+v", got)
	}

	s.SetSummary(domain.Summary{Settings: domain.StoreSettings{TaxRate: 10, ServiceRate: 5}})
	got := s.Settings(defaults)
	if got.TaxRate != 10 || got.ServiceRate != 5 || got.TaxType != domain.TaxTypeExclusive {
		t.Fatalf("unexpected merged settings %+v", got)
	}
}

func TestCustomerAdjustmentsNeverGoNegative(t *testing.T) {
	s := New()
	s.SetCustomers([]domain.Customer{{ID: "c1", TotalSpent: 8000, Debt: 1000, Points: 2}})
	s.AdjustCustomer("c1", -5000, -3000, -5)

	c, _ := s.Customer("c1")
	if c.Debt != 0 || c.Points != 0 || c.TotalSpent != 3000 {
		t.Fatalf("unexpected customer %+v", c)
	}
	if !s.Loaded(Customers) || s.Cacheable() {
		t.Fatalf("customers alone must not make the state cacheable")
	}
}
