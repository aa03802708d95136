package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ambershop/api/internal/platform/config"
	"github.com/ambershop/api/internal/repositories"
	"github.com/ambershop/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled via dependency injection in
// NewContainer.
type Services struct {
	Shipping   services.ShippingService
	Promotions services.PromotionService
	Checkout   services.CheckoutService
	Orders     services.OrderService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerDeps carries the optional collaborators that production wiring
// provides and tests can omit.
type ContainerDeps struct {
	Events services.OrderEventPublisher
	Logger func(ctx context.Context, event string, fields map[string]any)
	Clock  func() time.Time
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// real implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps ContainerDeps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, deps ContainerDeps) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	svc.Shipping = services.NewShippingCatalog(services.ShippingCatalogConfig{
		BalticRate:            cfg.Shipping.BalticRateCents,
		InternationalRate:     cfg.Shipping.InternationalRateCents,
		OverseasRate:          cfg.Shipping.OverseasRateCents,
		FreeShippingThreshold: cfg.Shipping.FreeThresholdCents,
		FreeShippingCountry:   cfg.Shipping.FreeShippingCountry,
	})

	promotionSvc, err := services.NewPromotionService(services.PromotionServiceDeps{
		Promotions: reg.Promotions(),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion service: %w", err)
	}
	svc.Promotions = promotionSvc

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		TaxRate: cfg.Tax.Rate,
		Logger:  deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:      reg.Carts(),
		Shipping:   svc.Shipping,
		Promotions: svc.Promotions,
		Pricing:    pricing,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Carts:      reg.Carts(),
		Catalog:    reg.Catalog(),
		Orders:     reg.Orders(),
		Shipping:   svc.Shipping,
		Promotions: svc.Promotions,
		Pricing:    pricing,
		Events:     deps.Events,
		Clock:      clock,
		Logger:     deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}
