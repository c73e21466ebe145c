package domain

import "strings"

const (
	DiscountPercentage = "percentage"
	DiscountAmount     = "amount"
)

// CartItem.UnitPrice is derived from the product and quantity on every
// quote; a value supplied by the client is ignored.
type CartItem struct {
	ProductID       string  `json:"product_id"`
	Qty             int     `json:"qty"`
	UnitPrice       float64 `json:"unit_price"`
	PerUnitDiscount float64 `json:"per_unit_discount"`
}

// Cart keeps lines in the order they were first added.
type Cart struct {
	Items          []CartItem `json:"items"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  float64    `json:"discount_value"`
	AppliedPromoID string     `json:"applied_promo_id,omitempty"`
}

// Add increases the quantity of a line, creating it at the end when absent.
func (c *Cart) Add(productID string, qty int) {
	if productID == "" || qty == 0 {
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.SetQty(productID, c.Items[i].Qty+qty)
			return
		}
	}
	if qty < 0 {
		return
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Qty: qty})
}

// SetQty sets the quantity of a line. A quantity of zero or less removes it.
func (c *Cart) SetQty(productID string, qty int) {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		if qty <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
		c.Items[i].Qty = qty
		return
	}
	if qty > 0 {
		c.Items = append(c.Items, CartItem{ProductID: productID, Qty: qty})
	}
}

func (c *Cart) SetDiscount(productID string, perUnit float64) {
	if perUnit < 0 {
		perUnit = 0
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].PerUnitDiscount = perUnit
			return
		}
	}
}

// Qty returns the quantity of a product in the cart, zero when absent.
func (c Cart) Qty(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Qty
		}
	}
	return 0
}

// Normalized returns a copy with repeated products merged in first-seen
// order. Lines without a product or with qty below one are dropped and
// negative per-unit discounts are clamped to zero.
func (c Cart) Normalized() Cart {
	out := Cart{
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue,
		AppliedPromoID: c.AppliedPromoID,
	}
	for _, item := range c.Items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Qty < 1 {
			continue
		}
		fresh := out.Qty(id) == 0
		out.Add(id, item.Qty)
		if fresh {
			out.SetDiscount(id, item.PerUnitDiscount)
		}
	}
	return out
}
