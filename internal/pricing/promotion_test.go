package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/posclient/internal/domain"
)

func TestBundleWithMultiples(t *testing.T) {
	promo := domain.Promotion{
		ID:             "promo_bundle",
		Type:           domain.PromoTypeBundle,
		TargetIDs:      []string{"p1"},
		Value:          8000,
		AllowMultiples: true,
		IsActive:       true,
	}
	lines := []Line{{ProductID: "p1", Qty: 3, Price: 10000}}

	eval := evaluatePromotion(lines, promo, 30000)
	assert.True(t, eval.IsApplicable)
	assert.Equal(t, 6000.0, eval.PotentialDiscount)

	promo.AllowMultiples = false
	eval = evaluatePromotion(lines, promo, 30000)
	assert.Equal(t, 2000.0, eval.PotentialDiscount)
}

func TestBundleMissingTarget(t *testing.T) {
	promo := domain.Promotion{
		ID:        "promo_pair",
		Type:      domain.PromoTypeBundle,
		TargetIDs: []string{"p1", "p2"},
		Value:     1000,
		IsActive:  true,
	}
	lines := []Line{{ProductID: "p1", Qty: 2, Price: 5000}}

	eval := evaluatePromotion(lines, promo, 10000)
	assert.False(t, eval.IsApplicable)
	assert.Equal(t, []string{"p2"}, eval.MissingItems)
	assert.Zero(t, eval.PotentialDiscount)
}

func TestBundleDiscountNeverNegative(t *testing.T) {
	promo := domain.Promotion{
		Type:      domain.PromoTypeBundle,
		TargetIDs: []string{"p1"},
		Value:     9000,
		IsActive:  true,
	}
	eval := evaluatePromotion([]Line{{ProductID: "p1", Qty: 1, Price: 5000}}, promo, 5000)
	assert.True(t, eval.IsApplicable)
	assert.Zero(t, eval.PotentialDiscount)
}

func TestPercentageAndFixed(t *testing.T) {
	percent := domain.Promotion{ID: "pct", Type: domain.PromoTypePercentage, Value: 10, MinPurchase: 50000, IsActive: true}
	fixed := domain.Promotion{ID: "fix", Type: domain.PromoTypeFixed, Value: 5000, MinPurchase: 40000, AllowMultiples: true, IsActive: true}
	single := domain.Promotion{ID: "one", Type: domain.PromoTypeFixed, Value: 5000, MinPurchase: 40000, IsActive: true}

	eval := evaluatePromotion(nil, percent, 40000)
	assert.False(t, eval.IsApplicable)

	eval = evaluatePromotion(nil, percent, 60000)
	assert.True(t, eval.IsApplicable)
	assert.Equal(t, 6000.0, eval.PotentialDiscount)

	eval = evaluatePromotion(nil, fixed, 130000)
	assert.Equal(t, 15000.0, eval.PotentialDiscount)

	eval = evaluatePromotion(nil, single, 130000)
	assert.Equal(t, 5000.0, eval.PotentialDiscount)
}

func TestUsageLimitReached(t *testing.T) {
	promo := domain.Promotion{Type: domain.PromoTypeFixed, Value: 1000, IsActive: true, UsageLimit: 2, UsageCount: 2}
	assert.False(t, evaluatePromotion(nil, promo, 10000).IsApplicable)

	promo.UsageCount = 1
	assert.True(t, evaluatePromotion(nil, promo, 10000).IsApplicable)
}

func TestEvaluateSkipsInactiveAndAppliedLooksUpDesignated(t *testing.T) {
	promos := []domain.Promotion{
		{ID: "a", Type: domain.PromoTypeFixed, Value: 1000, IsActive: true},
		{ID: "b", Type: domain.PromoTypeFixed, Value: 2000, IsActive: false},
		{ID: "c", Type: domain.PromoTypePercentage, Value: 50, IsActive: true},
	}

	evals := Evaluate(nil, promos, 10000)
	require.Len(t, evals, 2)
	assert.Equal(t, "a", evals[0].PromotionID)
	assert.Equal(t, "c", evals[1].PromotionID)

	applied, ok := Applied(nil, promos, "c", 10000)
	require.True(t, ok)
	assert.Equal(t, 5000.0, applied.PotentialDiscount)

	_, ok = Applied(nil, promos, "b", 10000)
	assert.False(t, ok)
	_, ok = Applied(nil, promos, "", 10000)
	assert.False(t, ok)
}
