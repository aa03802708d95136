package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid placement parameters.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrPriceMismatch indicates the client-submitted total disagrees with the
	// server-side recomputation beyond the rounding tolerance.
	ErrPriceMismatch = errors.New("order: price mismatch")
	// ErrOrderNotFound indicates no order exists for the identifier.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderPlacementFailed wraps unexpected persistence failures; the same
	// idempotency key is safe to retry because the write is all-or-nothing.
	ErrOrderPlacementFailed = errors.New("order: placement failed")
)

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Carts      repositories.CartRepository
	Catalog    repositories.CatalogRepository
	Orders     repositories.OrderRepository
	Shipping   ShippingService
	Promotions PromotionService
	Pricing    *PricingEngine
	Snapshots  *SnapshotBuilder
	Events     OrderEventPublisher
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	NewOrderID func(now time.Time) string
}

type orderService struct {
	carts      repositories.CartRepository
	catalog    repositories.CatalogRepository
	orders     repositories.OrderRepository
	shipping   ShippingService
	promotions PromotionService
	pricing    *PricingEngine
	snapshots  *SnapshotBuilder
	events     OrderEventPublisher
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
	newOrderID func(now time.Time) string
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("order service: shipping service is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("order service: promotion service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	snapshots := deps.Snapshots
	if snapshots == nil {
		snapshots = NewSnapshotBuilder()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newOrderID := deps.NewOrderID
	if newOrderID == nil {
		newOrderID = func(time.Time) string { return ulid.Make().String() }
	}

	return &orderService{
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		orders:     deps.Orders,
		shipping:   deps.Shipping,
		promotions: deps.Promotions,
		pricing:    deps.Pricing,
		snapshots:  snapshots,
		events:     deps.Events,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		newOrderID: newOrderID,
	}, nil
}

// PlaceOrder recomputes the full summary from authoritative cart and promo
// state, freezes it, and commits the snapshot together with the promo usage
// increment in one transaction. Replaying the same idempotency key returns
// the originally stored snapshot without consuming another promo use.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.OrderSnapshot, error) {
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: idempotency key is required", ErrOrderInvalidInput)
	}
	if PromoIdentity(cmd.UserID, cmd.Email) == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: customer identity is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingMethodID) == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: shipping method is required", ErrOrderInvalidInput)
	}

	country, err := NormalizeCountryCode(cmd.CountryCode)
	if err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %s", ErrOrderInvalidInput, err)
	}

	if existing, err := s.orders.FindByIdempotencyKey(ctx, key); err == nil {
		s.logger(ctx, "order_placement_replayed", map[string]any{"orderId": existing.ID})
		return existing, nil
	} else if !repositories.IsNotFound(err) {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrOrderPlacementFailed, err)
	}

	lines, err := s.carts.GetLines(ctx, strings.TrimSpace(cmd.CartID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.OrderSnapshot{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
		}
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrOrderPlacementFailed, err)
	}
	if len(lines) == 0 {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	zone := s.shipping.Classify(country)
	subtotal := CartSubtotal(lines)
	methods := s.shipping.Methods(country, subtotal)
	if len(methods) == 0 {
		return domain.OrderSnapshot{}, ErrShippingUnavailable
	}
	method, err := selectMethod(methods, cmd.ShippingMethodID)
	if err != nil {
		return domain.OrderSnapshot{}, err
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
			return domain.OrderSnapshot{}, err
		}
		promo = &outcome
	}

	result, err := s.pricing.Compose(ctx, ComposeCommand{
		Lines:          lines,
		ShippingMethod: method,
		Promo:          promo,
	})
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	if result.PromoInvalidated {
		return domain.OrderSnapshot{}, ErrPromoInvalidated
	}

	if cmd.ExpectedTotal != nil && !TotalsAgree(result.Summary.Total, *cmd.ExpectedTotal) {
		s.logger(ctx, "order_price_mismatch", map[string]any{
			"serverTotal": result.Summary.Total,
			"clientTotal": *cmd.ExpectedTotal,
		})
		return domain.OrderSnapshot{}, ErrPriceMismatch
	}

	display, err := s.catalog.DisplayData(ctx, lines)
	if err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrOrderPlacementFailed, err)
	}

	now := s.now()
	snapshot, err := s.snapshots.Freeze(FreezeCommand{
		OrderID:        s.newOrderID(now),
		IdempotencyKey: key,
		UserID:         cmd.UserID,
		Email:          cmd.Email,
		CountryCode:    country,
		Zone:           zone,
		Lines:          lines,
		Display:        display,
		ShippingMethod: method,
		Promo:          promo,
		Summary:        result.Summary,
		Note:           cmd.Note,
		PlacedAt:       now,
	})
	if err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrOrderPlacementFailed, err)
	}

	var claim *repositories.PromoUsageClaim
	if promo != nil {
		claim = &repositories.PromoUsageClaim{
			Code:     promo.Code,
			Identity: PromoIdentity(cmd.UserID, cmd.Email),
		}
	}

	saved, err := s.orders.Save(ctx, snapshot, claim)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsageLimitReached):
			return domain.OrderSnapshot{}, ErrPromoUsageLimitReached
		case errors.Is(err, repositories.ErrPerUserLimitReached):
			return domain.OrderSnapshot{}, ErrPromoAlreadyUsed
		default:
			return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrOrderPlacementFailed, err)
		}
	}

	s.publishPlaced(ctx, saved)
	return saved, nil
}

// GetOrder fetches a historical snapshot by order ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	snapshot, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.OrderSnapshot{}, ErrOrderNotFound
		}
		return domain.OrderSnapshot{}, err
	}
	return snapshot, nil
}

// ListOrders returns the most recent snapshots for a customer identity.
func (s *orderService) ListOrders(ctx context.Context, identity string, limit int) ([]domain.OrderSnapshot, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return nil, fmt.Errorf("%w: customer identity is required", ErrOrderInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	return s.orders.ListByIdentity(ctx, id, limit)
}

func (s *orderService) publishPlaced(ctx context.Context, snapshot domain.OrderSnapshot) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishOrderPlaced(ctx, OrderPlacedEvent{
		OrderID:     snapshot.ID,
		Email:       snapshot.Email,
		CountryCode: snapshot.CountryCode,
		PromoCode:   snapshot.PromoCode,
		Total:       snapshot.Summary.Total,
		Currency:    "EUR",
	})
	if err != nil {
		// Placement already committed; notification delivery retries elsewhere.
		s.logger(ctx, "order_placed_event_failed", map[string]any{
			"orderId": snapshot.ID,
			"error":   err.Error(),
		})
	}
}
