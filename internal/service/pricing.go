package service

import (
	"fmt"
	"strings"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/pricing"
)

type priced struct {
	cart        domain.Cart
	quoteLines  []domain.QuoteLine
	txLines     []domain.TransactionLine
	evaluations []domain.PromotionEvaluation
	applied     *domain.PromotionEvaluation
	totals      domain.Totals
}

// price runs the cart through tiered pricing, promotion evaluation and the
// totals calculation using the active store's products and settings.
func (s *Service) price(req domain.QuoteRequest) (priced, error) {
	cart := req.Cart.Normalized()
	if len(cart.Items) == 0 {
		return priced{}, fmt.Errorf("%w: cart is empty", domain.ErrInvalidRequest)
	}

	discountType := strings.ToLower(strings.TrimSpace(req.DiscountType))
	switch discountType {
	case "", domain.DiscountPercentage, domain.DiscountAmount:
	default:
		return priced{}, fmt.Errorf("%w: unknown discount type %q", domain.ErrInvalidRequest, req.DiscountType)
	}

	if req.DiscountValue < 0 {
		return priced{}, fmt.Errorf("%w: discount must not be negative", domain.ErrInvalidRequest)
	}
	cart.DiscountType = discountType

	var out priced
	lines := make([]pricing.Line, 0, len(cart.Items))
	rawTotal := 0.0
	for i, item := range cart.Items {
		product, ok := s.state.Product(item.ProductID)
		if !ok {
			return priced{}, fmt.Errorf("%w: unknown product %s", domain.ErrInvalidRequest, item.ProductID)
		}

		unit := pricing.UnitPrice(product, item.Qty)
		cart.Items[i].UnitPrice = unit
		effective := pricing.EffectivePrice(unit, item.PerUnitDiscount)
		lineTotal := pricing.LineTotal(product, item.Qty, item.PerUnitDiscount)
		rawTotal += lineTotal

		lines = append(lines, pricing.Line{ProductID: product.ID, Qty: item.Qty, Price: effective})
		out.quoteLines = append(out.quoteLines, domain.QuoteLine{
			ProductID:       product.ID,
			Name:            product.Name,
			Qty:             item.Qty,
			UnitPrice:       unit,
			PerUnitDiscount: item.PerUnitDiscount,
			LineTotal:       lineTotal,
		})
		out.txLines = append(out.txLines, domain.TransactionLine{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       item.Qty,
			UnitPrice: unit,
			BuyPrice:  product.BuyPrice,
			Discount:  item.PerUnitDiscount,
			IsService: product.IsService,
		})
	}

	promotions := s.state.Promotions()
	out.evaluations = pricing.Evaluate(lines, promotions, rawTotal)
	if req.AppliedPromoID != "" {
		applied, ok := pricing.Applied(lines, promotions, req.AppliedPromoID, rawTotal)
		if !ok {
			return priced{}, fmt.Errorf("%w: promotion %s is not available", domain.ErrInvalidRequest, req.AppliedPromoID)
		}
		out.applied = &applied
	}

	out.cart = cart
	settings := s.state.Settings(s.defaults)
	kind, value := pricing.WithPromotion(discountType, req.DiscountValue, out.applied)
	out.totals = pricing.CartTotals(lines, kind, value, settings.TaxRate, settings.ServiceRate, settings.TaxType)
	return out, nil
}
