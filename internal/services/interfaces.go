package services

import (
	"context"

	domain "github.com/ambershop/api/internal/domain"
)

// ShippingService resolves destination countries into zones and enumerates
// the shipping methods available for a priced cart. Implementations are pure
// over static catalog data and never fail; unsupported destinations yield an
// empty method list.
type ShippingService interface {
	Classify(countryCode string) domain.ShippingZone
	Methods(countryCode string, subtotal int64) []domain.ShippingMethod
}

// EvaluatePromoCommand carries the inputs for a promo code evaluation.
// Identity is explicit: UserID when the customer is authenticated, Email as
// the guest fallback. Neither is read from ambient request state.
type EvaluatePromoCommand struct {
	Code      string
	CartTotal int64
	UserID    string
	Email     string
}

// PromotionService validates promo codes against their constraints and
// computes the resulting discount. Evaluation never mutates usage counters.
type PromotionService interface {
	Evaluate(ctx context.Context, cmd EvaluatePromoCommand) (domain.DiscountOutcome, error)
}

// PreviewCommand describes one checkout preview request.
type PreviewCommand struct {
	CartID           string
	CountryCode      string
	ShippingMethodID string
	PromoCode        string
	UserID           string
	Email            string
}

// PreviewResult is the ephemeral checkout summary recomputed on every input
// change. Nothing in it is persisted or trusted at placement time.
type PreviewResult struct {
	Summary          domain.PriceSummary
	Methods          []domain.ShippingMethod
	SelectedMethod   domain.ShippingMethod
	Promo            *domain.DiscountOutcome
	PromoInvalidated bool
}

// CheckoutService exposes the side-effect-free checkout surface.
type CheckoutService interface {
	PreviewSummary(ctx context.Context, cmd PreviewCommand) (PreviewResult, error)
	ShippingOptions(ctx context.Context, cartID string, countryCode string) ([]domain.ShippingMethod, error)
	CheckPromo(ctx context.Context, cartID string, cmd EvaluatePromoCommand) (domain.DiscountOutcome, error)
}

// PlaceOrderCommand carries the inputs for the sole mutating entry point.
// ExpectedTotal, when set, is the client-side preview total; the server
// recomputes from authoritative state and rejects on disagreement beyond a
// one cent tolerance.
type PlaceOrderCommand struct {
	CartID           string
	CountryCode      string
	ShippingMethodID string
	PromoCode        string
	UserID           string
	Email            string
	ExpectedTotal    *int64
	Note             string
	IdempotencyKey   string
}

// OrderService places orders and serves historical snapshots.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.OrderSnapshot, error)
	GetOrder(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	ListOrders(ctx context.Context, identity string, limit int) ([]domain.OrderSnapshot, error)
}

// OrderPlacedEvent is published after an order commits, for the notification
// collaborator. Delivery is best effort and never blocks placement.
type OrderPlacedEvent struct {
	OrderID     string `json:"orderId"`
	Email       string `json:"email"`
	CountryCode string `json:"countryCode"`
	PromoCode   string `json:"promoCode,omitempty"`
	Total       int64  `json:"totalCents"`
	Currency    string `json:"currency"`
}

// OrderEventPublisher fans placed-order events out to interested consumers.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) (string, error)
}
