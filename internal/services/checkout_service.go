package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutCartEmpty indicates the cart holds no lines.
	ErrCheckoutCartEmpty = errors.New("checkout: cart is empty")
	// ErrShippingUnavailable indicates the destination is in no supported zone.
	ErrShippingUnavailable = errors.New("checkout: shipping unavailable for destination")
	// ErrShippingMethodUnknown indicates the requested method is not offered for the destination.
	ErrShippingMethodUnknown = errors.New("checkout: unknown shipping method")
)

var countryCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts      repositories.CartRepository
	Shipping   ShippingService
	Promotions PromotionService
	Pricing    *PricingEngine
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	carts      repositories.CartRepository
	shipping   ShippingService
	promotions PromotionService
	pricing    *PricingEngine
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("checkout service: shipping service is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("checkout service: promotion service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		carts:      deps.Carts,
		shipping:   deps.Shipping,
		promotions: deps.Promotions,
		pricing:    deps.Pricing,
		logger:     logger,
	}, nil
}

// PreviewSummary recomputes the full checkout summary from authoritative cart
// state. It is safe to call repeatedly and has no side effects; nothing it
// returns is trusted at order placement.
func (s *checkoutService) PreviewSummary(ctx context.Context, cmd PreviewCommand) (PreviewResult, error) {
	country, err := NormalizeCountryCode(cmd.CountryCode)
	if err != nil {
		return PreviewResult{}, err
	}

	lines, err := s.cartLines(ctx, cmd.CartID)
	if err != nil {
		return PreviewResult{}, err
	}

	subtotal := CartSubtotal(lines)
	methods := s.shipping.Methods(country, subtotal)
	if len(methods) == 0 {
		return PreviewResult{}, ErrShippingUnavailable
	}

	method, err := selectMethod(methods, cmd.ShippingMethodID)
	if err != nil {
		return PreviewResult{}, err
	}

	var promo *domain.DiscountOutcome
	if strings.TrimSpace(cmd.PromoCode) != "" {
		outcome, err := s.promotions.Evaluate(ctx, EvaluatePromoCommand{
			Code:      cmd.PromoCode,
			CartTotal: subtotal,
			UserID:    cmd.UserID,
			Email:     cmd.Email,
		})
		if err != nil {
			return PreviewResult{}, err
		}
		promo = &outcome
	}

	result, err := s.pricing.Compose(ctx, ComposeCommand{
		Lines:          lines,
		ShippingMethod: method,
		Promo:          promo,
	})
	if err != nil {
		return PreviewResult{}, err
	}
	if result.PromoInvalidated {
		promo = nil
	}

	return PreviewResult{
		Summary:          result.Summary,
		Methods:          methods,
		SelectedMethod:   method,
		Promo:            promo,
		PromoInvalidated: result.PromoInvalidated,
	}, nil
}

// ShippingOptions lists the methods available for the cart and destination.
// An empty cart still quotes against a zero subtotal so the UI can render the
// catalog before items are added.
func (s *checkoutService) ShippingOptions(ctx context.Context, cartID string, countryCode string) ([]domain.ShippingMethod, error) {
	country, err := NormalizeCountryCode(countryCode)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	if strings.TrimSpace(cartID) != "" {
		lines, err := s.carts.GetLines(ctx, cartID)
		if err != nil && !repositories.IsNotFound(err) {
			return nil, err
		}
		subtotal = CartSubtotal(lines)
	}

	methods := s.shipping.Methods(country, subtotal)
	if len(methods) == 0 {
		return nil, ErrShippingUnavailable
	}
	return methods, nil
}

// CheckPromo evaluates a promo code against the cart's current subtotal.
func (s *checkoutService) CheckPromo(ctx context.Context, cartID string, cmd EvaluatePromoCommand) (domain.DiscountOutcome, error) {
	lines, err := s.cartLines(ctx, cartID)
	if err != nil {
		return domain.DiscountOutcome{}, err
	}
	cmd.CartTotal = CartSubtotal(lines)
	return s.promotions.Evaluate(ctx, cmd)
}

func (s *checkoutService) cartLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, fmt.Errorf("%w: cart id is required", ErrCheckoutInvalidInput)
	}
	lines, err := s.carts.GetLines(ctx, cartID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrCheckoutCartEmpty
		}
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrCheckoutCartEmpty
	}
	return lines, nil
}

func selectMethod(methods []domain.ShippingMethod, methodID string) (domain.ShippingMethod, error) {
	id := strings.TrimSpace(methodID)
	if id == "" {
		return methods[0], nil
	}
	for _, method := range methods {
		if method.ID == id {
			return method, nil
		}
	}
	return domain.ShippingMethod{}, ErrShippingMethodUnknown
}

// NormalizeCountryCode validates the destination code format and upper-cases
// it. Format errors are caller mistakes; unknown-but-well-formed codes are
// not an error here, they classify to the unsupported zone downstream.
func NormalizeCountryCode(countryCode string) (string, error) {
	code := strings.TrimSpace(countryCode)
	if !countryCodePattern.MatchString(code) {
		return "", fmt.Errorf("%w: country code must be two letters", ErrCheckoutInvalidInput)
	}
	return strings.ToUpper(code), nil
}
