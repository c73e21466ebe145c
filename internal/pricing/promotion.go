package pricing

import (
	"github.com/shopspring/decimal"

	"kasirinaja/posclient/internal/domain"
)

// Line is a priced cart line as the promotion engine and the totals see it.
// Price is the effective per-unit price the customer pays.
type Line struct {
	ProductID string
	Qty       int
	Price     float64
}

// Evaluate reports applicability and discount size for every active
// promotion. It never picks a winner; the cashier designates one.
func Evaluate(lines []Line, promotions []domain.Promotion, rawTotal float64) []domain.PromotionEvaluation {
	result := make([]domain.PromotionEvaluation, 0, len(promotions))
	for _, promo := range promotions {
		if !promo.IsActive {
			continue
		}
		result = append(result, evaluatePromotion(lines, promo, rawTotal))
	}
	return result
}

// Applied evaluates the designated promotion. It returns false when the id is
// empty, unknown or inactive.
func Applied(lines []Line, promotions []domain.Promotion, promoID string, rawTotal float64) (domain.PromotionEvaluation, bool) {
	if promoID == "" {
		return domain.PromotionEvaluation{}, false
	}
	for _, promo := range promotions {
		if promo.ID != promoID {
			continue
		}
		if !promo.IsActive {
			return domain.PromotionEvaluation{PromotionID: promo.ID}, false
		}
		return evaluatePromotion(lines, promo, rawTotal), true
	}
	return domain.PromotionEvaluation{}, false
}

// evaluatePromotion ignores IsActive; callers filter inactive promotions.
// An exhausted usage limit makes the promotion inapplicable.
func evaluatePromotion(lines []Line, promo domain.Promotion, rawTotal float64) domain.PromotionEvaluation {
	eval := domain.PromotionEvaluation{PromotionID: promo.ID}
	if promo.UsageLimit > 0 && promo.UsageCount >= promo.UsageLimit {
		return eval
	}

	switch promo.Type {
	case domain.PromoTypeBundle:
		evaluateBundle(&eval, lines, promo)
	case domain.PromoTypePercentage:
		if rawTotal >= promo.MinPurchase {
			eval.IsApplicable = true
			eval.PotentialDiscount = decimal.NewFromFloat(rawTotal).
				Mul(decimal.NewFromFloat(promo.Value)).
				Div(decimal.NewFromInt(100)).
				InexactFloat64()
		}
	case domain.PromoTypeFixed:
		if rawTotal >= promo.MinPurchase {
			eval.IsApplicable = true
			multiplier := int64(1)
			if promo.AllowMultiples && promo.MinPurchase > 0 {
				multiplier = decimal.NewFromFloat(rawTotal).
					Div(decimal.NewFromFloat(promo.MinPurchase)).
					Floor().
					IntPart()
			}
			eval.PotentialDiscount = decimal.NewFromFloat(promo.Value).
				Mul(decimal.NewFromInt(multiplier)).
				InexactFloat64()
		}
	}
	return eval
}

func evaluateBundle(eval *domain.PromotionEvaluation, lines []Line, promo domain.Promotion) {
	if len(promo.TargetIDs) == 0 {
		return
	}

	qtyByProduct := make(map[string]int, len(lines))
	priceByProduct := make(map[string]float64, len(lines))
	for _, line := range lines {
		qtyByProduct[line.ProductID] += line.Qty
		if _, seen := priceByProduct[line.ProductID]; !seen {
			priceByProduct[line.ProductID] = line.Price
		}
	}

	minSets := -1
	setPrice := decimal.Zero
	for _, target := range promo.TargetIDs {
		qty := qtyByProduct[target]
		if qty < 1 {
			eval.MissingItems = append(eval.MissingItems, target)
			minSets = 0
			continue
		}
		if minSets == -1 || qty < minSets {
			minSets = qty
		}
		setPrice = setPrice.Add(decimal.NewFromFloat(priceByProduct[target]))
	}
	if minSets < 1 {
		return
	}

	oneSet := setPrice.Sub(decimal.NewFromFloat(promo.Value))
	if oneSet.IsNegative() {
		oneSet = decimal.Zero
	}
	multiplier := int64(1)
	if promo.AllowMultiples {
		multiplier = int64(minSets)
	}

	eval.IsApplicable = true
	eval.PotentialDiscount = oneSet.Mul(decimal.NewFromInt(multiplier)).InexactFloat64()
}
