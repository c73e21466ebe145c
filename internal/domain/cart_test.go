package domain

import "testing"

func TestCartSetQtyZeroRemovesLine(t *testing.T) {
	var cart Cart
	cart.Add("p-1", 2)
	cart.Add("p-2", 1)
	cart.Add("p-1", 1)

	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
	if cart.Qty("p-1") != 3 {
		t.Fatalf("expected qty 3 for p-1, got %d", cart.Qty("p-1"))
	}

	cart.SetQty("p-1", 0)
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p-2" {
		t.Fatalf("expected only p-2 to remain, got %+v", cart.Items)
	}
}

func TestCartAddNegativeDropsLineAtZero(t *testing.T) {
	var cart Cart
	cart.Add("p-1", 2)
	cart.Add("p-1", -2)
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}

	cart.Add("p-9", -1)
	if len(cart.Items) != 0 {
		t.Fatalf("negative add on absent line must not create it")
	}
}

func TestCartNormalizedMergesInFirstSeenOrder(t *testing.T) {
	cart := Cart{
		Items: []CartItem{
			{ProductID: "b", Qty: 1, PerUnitDiscount: 200},
			{ProductID: " a ", Qty: 2},
			{ProductID: "b", Qty: 3, PerUnitDiscount: 900},
			{ProductID: "c", Qty: 0},
			{ProductID: "d", Qty: 1, PerUnitDiscount: -50},
		},
		DiscountType:  DiscountAmount,
		DiscountValue: 100,
	}

	got := cart.Normalized()
	if len(got.Items) != 3 {
		t.Fatalf("expected 3 lines, got %+v", got.Items)
	}
	if got.Items[0].ProductID != "b" || got.Items[0].Qty != 4 || got.Items[0].PerUnitDiscount != 200 {
		t.Fatalf("expected b merged keeping its first discount, got %+v", got.Items[0])
	}
	if got.Items[1].ProductID != "a" || got.Items[2].PerUnitDiscount != 0 {
		t.Fatalf("unexpected lines %+v", got.Items)
	}
	if got.DiscountType != DiscountAmount || got.DiscountValue != 100 {
		t.Fatalf("expected cart discount carried over, got %+v", got)
	}
	if len(cart.Items) != 5 {
		t.Fatalf("normalizing must not modify the source cart")
	}
}

func TestCanTransitionIsMonotone(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{TxStatusPendingSync, TxStatusCompleted, true},
		{TxStatusCompleted, TxStatusVoid, true},
		{TxStatusCompleted, TxStatusRefunded, true},
		{TxStatusVoid, TxStatusCompleted, false},
		{TxStatusRefunded, TxStatusVoid, false},
		{TxStatusCompleted, TxStatusPendingSync, false},
		{TxStatusPendingSync, TxStatusVoid, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s,%s)=%t want %t", tc.from, tc.to, got, tc.want)
		}
	}
}
