package pricing

import (
	"github.com/shopspring/decimal"

	"kasirinaja/posclient/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// WithPromotion returns the discount that feeds CartTotals. An applicable
// promotion replaces the manual discount with an amount-type discount of its
// potential value.
func WithPromotion(discountType string, discountValue float64, promo *domain.PromotionEvaluation) (string, float64) {
	if promo != nil && promo.IsApplicable {
		return domain.DiscountAmount, promo.PotentialDiscount
	}
	return discountType, discountValue
}

// CartTotals aggregates a priced cart. It has no side effects and returns the
// same result for the same input.
//
// In inclusive mode the service charge is taken from the gross amount before
// tax separation, while exclusive mode charges it on the net tax base. The
// asymmetry is deliberate and awaits product-owner confirmation.
func CartTotals(lines []Line, discountType string, discountValue float64, taxRate float64, serviceRate float64, taxType string) domain.Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Qty < 1 {
			continue
		}
		subtotal = subtotal.Add(decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Qty))))
	}

	discount := discountAmount(subtotal, discountType, discountValue)

	taxBasePre := subtotal.Sub(discount)
	if taxBasePre.IsNegative() {
		taxBasePre = decimal.Zero
	}

	rate := nonNegative(taxRate)
	service := nonNegative(serviceRate)

	var taxBase, tax, serviceCharge, final decimal.Decimal
	if taxType == domain.TaxTypeInclusive {
		net := taxBasePre.Div(decimal.NewFromInt(1).Add(rate.Div(hundred)))
		tax = taxBasePre.Sub(net)
		taxBase = taxBasePre.Sub(tax)
		serviceCharge = taxBasePre.Mul(service).Div(hundred)
		final = taxBasePre.Add(serviceCharge)
	} else {
		taxBase = taxBasePre
		tax = taxBase.Mul(rate).Div(hundred)
		serviceCharge = taxBase.Mul(service).Div(hundred)
		final = taxBase.Add(tax).Add(serviceCharge)
	}

	return domain.Totals{
		Subtotal:       subtotal.InexactFloat64(),
		DiscountAmount: discount.InexactFloat64(),
		TaxBase:        taxBase.InexactFloat64(),
		TaxAmount:      tax.InexactFloat64(),
		ServiceCharge:  serviceCharge.InexactFloat64(),
		FinalTotal:     final.InexactFloat64(),
	}
}

func discountAmount(subtotal decimal.Decimal, discountType string, value float64) decimal.Decimal {
	v := nonNegative(value)
	switch discountType {
	case domain.DiscountPercentage:
		if v.GreaterThan(hundred) {
			v = hundred
		}
		return subtotal.Mul(v).Div(hundred)
	case domain.DiscountAmount:
		if v.GreaterThan(subtotal) {
			return subtotal
		}
		return v
	default:
		return decimal.Zero
	}
}

func nonNegative(v float64) decimal.Decimal {
	if v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
