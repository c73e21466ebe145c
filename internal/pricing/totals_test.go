package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kasirinaja/posclient/internal/domain"
)

func TestCartTotalsExclusive(t *testing.T) {
	lines := []Line{{ProductID: "p1", Qty: 1, Price: 100000}}

	totals := CartTotals(lines, domain.DiscountPercentage, 10, 10, 5, domain.TaxTypeExclusive)

	assert.Equal(t, 100000.0, totals.Subtotal)
	assert.Equal(t, 10000.0, totals.DiscountAmount)
	assert.Equal(t, 90000.0, totals.TaxBase)
	assert.Equal(t, 9000.0, totals.TaxAmount)
	assert.Equal(t, 4500.0, totals.ServiceCharge)
	assert.Equal(t, 103500.0, totals.FinalTotal)
}

func TestCartTotalsInclusive(t *testing.T) {
	lines := []Line{{ProductID: "p1", Qty: 1, Price: 110000}}

	totals := CartTotals(lines, "", 0, 10, 5, domain.TaxTypeInclusive)

	assert.InDelta(t, 10000.0, totals.TaxAmount, 0.01)
	assert.InDelta(t, 100000.0, totals.TaxBase, 0.01)
	assert.Equal(t, 5500.0, totals.ServiceCharge)
	assert.Equal(t, 115500.0, totals.FinalTotal)
}

func TestCartTotalsDiscountNeverExceedsSubtotal(t *testing.T) {
	lines := []Line{{ProductID: "p1", Qty: 2, Price: 2500}, {ProductID: "p2", Qty: 1, Price: 1000}}

	for _, value := range []float64{-50, 0, 10, 5999, 6000, 6001, 1e9} {
		totals := CartTotals(lines, domain.DiscountAmount, value, 11, 0, domain.TaxTypeExclusive)
		assert.LessOrEqual(t, totals.DiscountAmount, totals.Subtotal)
		assert.GreaterOrEqual(t, totals.DiscountAmount, 0.0)
		assert.GreaterOrEqual(t, totals.TaxBase, 0.0)
	}
	for _, value := range []float64{-1, 0, 50, 100, 250} {
		totals := CartTotals(lines, domain.DiscountPercentage, value, 11, 0, domain.TaxTypeExclusive)
		assert.LessOrEqual(t, totals.DiscountAmount, totals.Subtotal)
		assert.GreaterOrEqual(t, totals.DiscountAmount, 0.0)
	}
}

func TestCartTotalsIsIdempotent(t *testing.T) {
	lines := []Line{{ProductID: "p1", Qty: 3, Price: 3333}}
	first := CartTotals(lines, domain.DiscountPercentage, 7, 11, 2, domain.TaxTypeInclusive)
	second := CartTotals(lines, domain.DiscountPercentage, 7, 11, 2, domain.TaxTypeInclusive)
	assert.Equal(t, first, second)
}

func TestWithPromotionOverridesManualDiscount(t *testing.T) {
	promo := &domain.PromotionEvaluation{PromotionID: "x", IsApplicable: true, PotentialDiscount: 2000}

	kind, value := WithPromotion(domain.DiscountPercentage, 50, promo)
	assert.Equal(t, domain.DiscountAmount, kind)
	assert.Equal(t, 2000.0, value)

	promo.IsApplicable = false
	kind, value = WithPromotion(domain.DiscountPercentage, 50, promo)
	assert.Equal(t, domain.DiscountPercentage, kind)
	assert.Equal(t, 50.0, value)

	kind, _ = WithPromotion(domain.DiscountAmount, 10, nil)
	assert.Equal(t, domain.DiscountAmount, kind)
}
