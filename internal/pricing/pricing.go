package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"kasirinaja/posclient/internal/domain"
)

// UnitPrice returns the per-unit price of a product bought in the given
// quantity. Wholesale products switch the whole line to the first tier whose
// duration is reached; other products are decomposed greedily into tier
// blocks (largest first) with leftovers at the sell price, and the average is
// returned so that price*qty stays the line total.
func UnitPrice(product domain.Product, qty int) float64 {
	if qty <= 0 || len(product.PricingTiers) == 0 {
		return product.SellPrice
	}

	tiers := sortedTiers(product.PricingTiers)
	if len(tiers) == 0 {
		return product.SellPrice
	}

	if product.IsWholesale {
		for _, tier := range tiers {
			if tier.Duration <= qty {
				return tier.Price
			}
		}
		return product.SellPrice
	}

	total := decimal.Zero
	remaining := qty
	for _, tier := range tiers {
		if remaining < tier.Duration {
			continue
		}
		blocks := remaining / tier.Duration
		total = total.Add(decimal.NewFromFloat(tier.Price).Mul(decimal.NewFromInt(int64(blocks))))
		remaining -= blocks * tier.Duration
	}
	if remaining > 0 {
		total = total.Add(decimal.NewFromFloat(product.SellPrice).Mul(decimal.NewFromInt(int64(remaining))))
	}

	return total.Div(decimal.NewFromInt(int64(qty))).InexactFloat64()
}

// EffectivePrice is the unit price after the line's per-unit discount, never
// below zero.
func EffectivePrice(unitPrice float64, perUnitDiscount float64) float64 {
	if perUnitDiscount <= 0 {
		return unitPrice
	}
	price := decimal.NewFromFloat(unitPrice).Sub(decimal.NewFromFloat(perUnitDiscount))
	if price.IsNegative() {
		return 0
	}
	return price.InexactFloat64()
}

// LineTotal prices a whole cart line: the tiered unit price less the per-unit
// discount, times the quantity.
func LineTotal(product domain.Product, qty int, perUnitDiscount float64) float64 {
	if qty <= 0 {
		return 0
	}
	price := EffectivePrice(UnitPrice(product, qty), perUnitDiscount)
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).InexactFloat64()
}

func sortedTiers(tiers []domain.PricingTier) []domain.PricingTier {
	sorted := make([]domain.PricingTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Duration < 1 {
			continue
		}
		sorted = append(sorted, tier)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Duration > sorted[j].Duration
	})
	return sorted
}
