package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/ambershop/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals bad request data such as negative quantities or prices.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingInvalidTaxRate signals a tax rate outside the accepted range.
	ErrPricingInvalidTaxRate = errors.New("pricing: invalid tax rate")
	// ErrPromoInvalidated signals that a previously evaluated promo no longer
	// satisfies its minimum against the authoritative subtotal.
	ErrPromoInvalidated = errors.New("pricing: promo invalidated")
)

// PricingEngine composes cart lines, a shipping method, and an optional promo
// outcome into a PriceSummary. It is stateless and side-effect free; all
// arithmetic is int64 euro cents with half-up rounding on derived fields.
type PricingEngine struct {
	taxRate float64
	logger  func(context.Context, string, map[string]any)
}

// PricingEngineDeps configures the engine. TaxRate is fractional: 0.21 for
// the observed 21% VAT deployment.
type PricingEngineDeps struct {
	TaxRate float64
	Logger  func(context.Context, string, map[string]any)
}

// NewPricingEngine validates the tax rate and constructs the engine.
func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	if deps.TaxRate < 0 || deps.TaxRate >= 1 {
		return nil, ErrPricingInvalidTaxRate
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{taxRate: deps.TaxRate, logger: logger}, nil
}

// ComposeCommand carries the inputs for one summary composition.
type ComposeCommand struct {
	Lines          []domain.CartLine
	ShippingMethod domain.ShippingMethod
	Promo          *domain.DiscountOutcome
}

// ComposeResult pairs the summary with the promo re-validation signal. When
// PromoInvalidated is set the summary was computed with a zero promo discount.
type ComposeResult struct {
	Summary          domain.PriceSummary
	PromoInvalidated bool
}

// Compose builds the summary. The promo discount is never taken from the
// caller-supplied DiscountAmount as-is: it is re-validated and recomputed
// against the authoritative subtotal so a stale or spoofed outcome cannot
// carry over between preview and placement.
func (e *PricingEngine) Compose(ctx context.Context, cmd ComposeCommand) (ComposeResult, error) {
	if e == nil {
		return ComposeResult{}, ErrPricingInvalidInput
	}
	if len(cmd.Lines) == 0 {
		return ComposeResult{}, fmt.Errorf("%w: cart has no lines", ErrPricingInvalidInput)
	}
	if cmd.ShippingMethod.Price < 0 {
		return ComposeResult{}, fmt.Errorf("%w: negative shipping price", ErrPricingInvalidInput)
	}

	var originalSubtotal, subtotal int64
	for _, line := range cmd.Lines {
		if line.Quantity <= 0 {
			return ComposeResult{}, fmt.Errorf("%w: product %s quantity must be positive", ErrPricingInvalidInput, line.ProductID)
		}
		if line.UnitPrice < 0 || line.OriginalUnitPrice < 0 {
			return ComposeResult{}, fmt.Errorf("%w: product %s has a negative price", ErrPricingInvalidInput, line.ProductID)
		}
		quantity := int64(line.Quantity)
		originalSubtotal += line.OriginalUnitPrice * quantity
		subtotal += line.UnitPrice * quantity
	}

	productDiscount := originalSubtotal - subtotal
	if productDiscount < 0 {
		// OriginalUnitPrice below UnitPrice is a catalog data error; treat the
		// sale price as the original rather than reporting a negative discount.
		e.logger(ctx, "pricing_product_discount_clamped", map[string]any{
			"originalSubtotal": originalSubtotal,
			"subtotal":         subtotal,
		})
		productDiscount = 0
		originalSubtotal = subtotal
	}

	promoDiscount, invalidated := e.resolvePromoDiscount(ctx, cmd.Promo, subtotal)

	total := subtotal + cmd.ShippingMethod.Price - promoDiscount
	if total < 0 {
		total = 0
	}

	net, tax := domain.SplitTaxInclusive(subtotal, e.taxRate)

	summary := domain.PriceSummary{
		OriginalSubtotal: originalSubtotal,
		ProductDiscount:  productDiscount,
		Subtotal:         subtotal,
		SubtotalExclTax:  net,
		TaxAmount:        tax,
		ShippingCost:     cmd.ShippingMethod.Price,
		PromoDiscount:    promoDiscount,
		Total:            total,
	}

	return ComposeResult{Summary: summary, PromoInvalidated: invalidated}, nil
}

// resolvePromoDiscount recomputes the discount from the promo definition
// against the true subtotal. A promo whose minimum is no longer met yields a
// zero discount and the invalidated signal.
func (e *PricingEngine) resolvePromoDiscount(ctx context.Context, promo *domain.DiscountOutcome, subtotal int64) (int64, bool) {
	if promo == nil {
		return 0, false
	}

	if promo.MinCartTotal > 0 && subtotal < promo.MinCartTotal {
		e.logger(ctx, "pricing_promo_invalidated", map[string]any{
			"code":     promo.Code,
			"minimum":  promo.MinCartTotal,
			"subtotal": subtotal,
		})
		return 0, true
	}

	var discount int64
	switch promo.Type {
	case domain.DiscountPercentage:
		discount = domain.PercentOf(subtotal, promo.Percentage)
	case domain.DiscountFixed:
		discount = promo.Amount
	default:
		return 0, false
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount, false
}

// TotalsAgree reports whether the client-submitted total matches the server
// total within the one cent rounding tolerance.
func TotalsAgree(serverTotal, clientTotal int64) bool {
	diff := serverTotal - clientTotal
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// CartSubtotal sums the payable line amounts of a cart. Used to feed the
// shipping threshold and promo minimum checks before full composition. It
// does no filtering of its own: the cart repository never returns lines with
// a non-positive quantity, and Compose rejects any that slip through, so a
// line visible here always counts toward the quoted subtotal.
func CartSubtotal(lines []domain.CartLine) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPrice * int64(line.Quantity)
	}
	return subtotal
}
