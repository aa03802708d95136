package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/repositories"
)

// memPromoStore is a mutable promo definition shared between the promotion
// repository view and the order repository's claim path, so tests exercise the
// same read-then-claim flow the production Firestore transaction runs.
type memPromoStore struct {
	mu    sync.Mutex
	promo domain.PromoCode
	usage map[string]int
}

func newMemPromoStore(promo domain.PromoCode) *memPromoStore {
	return &memPromoStore{promo: promo, usage: map[string]int{}}
}

func (s *memPromoStore) FindByCode(_ context.Context, code string) (domain.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo.Code != code {
		return domain.PromoCode{}, &stubRepoError{notFound: true}
	}
	return s.promo, nil
}

func (s *memPromoStore) UsageByIdentity(_ context.Context, code string, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo.Code != code {
		return 0, &stubRepoError{notFound: true}
	}
	return s.usage[identity], nil
}

// claim re-checks the limits and consumes one use atomically.
func (s *memPromoStore) claim(code string, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promo.Code != code {
		return &stubRepoError{notFound: true}
	}
	if s.promo.MaxUses != nil && s.promo.UsageCount >= *s.promo.MaxUses {
		return repositories.ErrUsageLimitReached
	}
	if s.promo.PerUserLimit != nil && s.usage[identity] >= *s.promo.PerUserLimit {
		return repositories.ErrPerUserLimitReached
	}
	s.promo.UsageCount++
	s.usage[identity]++
	return nil
}

func (s *memPromoStore) usageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promo.UsageCount
}

type fakeOrderRepository struct {
	mu      sync.Mutex
	promos  *memPromoStore
	orders  map[string]domain.OrderSnapshot
	byKey   map[string]string
	saveErr error
	saves   int
}

func newFakeOrderRepository(promos *memPromoStore) *fakeOrderRepository {
	return &fakeOrderRepository{
		promos: promos,
		orders: map[string]domain.OrderSnapshot{},
		byKey:  map[string]string{},
	}
}

func (r *fakeOrderRepository) Save(_ context.Context, snapshot domain.OrderSnapshot, claim *repositories.PromoUsageClaim) (domain.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return domain.OrderSnapshot{}, r.saveErr
	}
	if id, ok := r.byKey[snapshot.IdempotencyKey]; ok {
		return r.orders[id], nil
	}
	if claim != nil {
		if r.promos == nil {
			return domain.OrderSnapshot{}, fmt.Errorf("claim without promo store")
		}
		if err := r.promos.claim(claim.Code, claim.Identity); err != nil {
			return domain.OrderSnapshot{}, err
		}
	}
	r.orders[snapshot.ID] = snapshot
	r.byKey[snapshot.IdempotencyKey] = snapshot.ID
	r.saves++
	return snapshot, nil
}

func (r *fakeOrderRepository) FindByIdempotencyKey(_ context.Context, key string) (domain.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return domain.OrderSnapshot{}, &stubRepoError{notFound: true}
	}
	return r.orders[id], nil
}

func (r *fakeOrderRepository) FindByID(_ context.Context, orderID string) (domain.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.orders[orderID]
	if !ok {
		return domain.OrderSnapshot{}, &stubRepoError{notFound: true}
	}
	return snapshot, nil
}

func (r *fakeOrderRepository) ListByIdentity(_ context.Context, identity string, limit int) ([]domain.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderSnapshot
	for _, snapshot := range r.orders {
		ident := strings.ToLower(snapshot.UserID)
		if ident == "" {
			ident = strings.ToLower(snapshot.Email)
		}
		if ident == identity {
			out = append(out, snapshot)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubCatalogRepository struct {
	display map[string]domain.ProductDisplay
	err     error
}

func (r *stubCatalogRepository) DisplayData(_ context.Context, _ []domain.CartLine) (map[string]domain.ProductDisplay, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.display, nil
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []OrderPlacedEvent
	err    error
}

func (p *fakeEventPublisher) PublishOrderPlaced(_ context.Context, event OrderPlacedEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type orderFixture struct {
	carts     *stubCartRepository
	catalog   *stubCatalogRepository
	promos    *memPromoStore
	orders    *fakeOrderRepository
	publisher *fakeEventPublisher
	events    []string
	svc       OrderService
}

var orderNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newOrderFixture(t *testing.T, promo domain.PromoCode) *orderFixture {
	t.Helper()

	f := &orderFixture{
		carts: &stubCartRepository{lines: threeItemCart()},
		catalog: &stubCatalogRepository{display: map[string]domain.ProductDisplay{
			"p1": {ProductID: "p1", Name: "Amber pendant", SKU: "AMB-001"},
			"p2": {ProductID: "p2", Name: "Amber ring", SKU: "AMB-002"},
		}},
		promos:    newMemPromoStore(promo),
		publisher: &fakeEventPublisher{},
	}
	f.orders = newFakeOrderRepository(f.promos)

	promoSvc, err := NewPromotionService(PromotionServiceDeps{
		Promotions: f.promos,
		Clock:      func() time.Time { return orderNow },
	})
	if err != nil {
		t.Fatalf("NewPromotionService: %v", err)
	}
	pricing, err := NewPricingEngine(PricingEngineDeps{TaxRate: 0.21})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}

	var counter int
	var counterMu sync.Mutex
	f.svc, err = NewOrderService(OrderServiceDeps{
		Carts:      f.carts,
		Catalog:    f.catalog,
		Orders:     f.orders,
		Shipping:   NewShippingCatalog(ShippingCatalogConfig{}),
		Promotions: promoSvc,
		Pricing:    pricing,
		Events:     f.publisher,
		Clock:      func() time.Time { return orderNow },
		Logger: func(_ context.Context, event string, _ map[string]any) {
			f.events = append(f.events, event)
		},
		NewOrderID: func(time.Time) string {
			counterMu.Lock()
			defer counterMu.Unlock()
			counter++
			return fmt.Sprintf("order-%d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return f
}

func placeCmd() PlaceOrderCommand {
	return PlaceOrderCommand{
		CartID:           "cart-1",
		CountryCode:      "LT",
		ShippingMethodID: "venipak-courier",
		Email:            "shopper@example.com",
		IdempotencyKey:   "key-1",
	}
}

func TestOrderService_PlaceOrder(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	snapshot, err := f.svc.PlaceOrder(context.Background(), placeCmd())
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if snapshot.ID != "order-1" {
		t.Fatalf("order id = %q", snapshot.ID)
	}
	if snapshot.Zone != domain.ZoneBaltic || snapshot.CountryCode != "LT" {
		t.Fatalf("destination not recorded: %+v", snapshot)
	}
	if snapshot.Summary.Total != 4900 || snapshot.Summary.ShippingCost != 400 {
		t.Fatalf("unexpected summary %+v", snapshot.Summary)
	}
	if len(snapshot.Lines) != 2 || snapshot.Lines[0].Name != "Amber pendant" {
		t.Fatalf("display data not frozen: %+v", snapshot.Lines)
	}
	if !snapshot.PlacedAt.Equal(orderNow) {
		t.Fatalf("placedAt = %v", snapshot.PlacedAt)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected 1 published event got %d", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.OrderID != "order-1" || event.Total != 4900 || event.Currency != "EUR" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestOrderService_PlaceOrder_WithPromo(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{
		Code:       "SAVE10",
		Type:       domain.DiscountPercentage,
		Percentage: 10,
		MaxUses:    intPtr(100),
	})

	cmd := placeCmd()
	cmd.PromoCode = "save10"
	snapshot, err := f.svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if snapshot.PromoCode != "SAVE10" {
		t.Fatalf("promo code = %q", snapshot.PromoCode)
	}
	if snapshot.Summary.PromoDiscount != 450 || snapshot.Summary.Total != 4450 {
		t.Fatalf("unexpected summary %+v", snapshot.Summary)
	}
	if got := f.promos.usageCount(); got != 1 {
		t.Fatalf("promo usage = %d, want 1", got)
	}
	if f.publisher.events[0].PromoCode != "SAVE10" {
		t.Fatalf("event promo code = %q", f.publisher.events[0].PromoCode)
	}
}

func TestOrderService_PlaceOrder_IdempotentReplay(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{
		Code:       "SAVE10",
		Type:       domain.DiscountPercentage,
		Percentage: 10,
	})

	cmd := placeCmd()
	cmd.PromoCode = "SAVE10"

	first, err := f.svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first PlaceOrder returned error: %v", err)
	}
	second, err := f.svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("replayed PlaceOrder returned error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("replay produced a second order: %q vs %q", first.ID, second.ID)
	}
	if f.orders.saves != 1 {
		t.Fatalf("replay wrote again: %d saves", f.orders.saves)
	}
	if got := f.promos.usageCount(); got != 1 {
		t.Fatalf("replay consumed another promo use: %d", got)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("replay published again: %d events", len(f.publisher.events))
	}

	var replayed bool
	for _, event := range f.events {
		if event == "order_placement_replayed" {
			replayed = true
		}
	}
	if !replayed {
		t.Fatalf("replay not logged, events %v", f.events)
	}
}

func TestOrderService_PlaceOrder_PriceMismatch(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	expected := int64(4000)
	cmd := placeCmd()
	cmd.ExpectedTotal = &expected
	if _, err := f.svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch got %v", err)
	}
	if f.orders.saves != 0 {
		t.Fatalf("mismatched order was saved")
	}

	// One cent off is inside the rounding tolerance.
	expected = 4899
	cmd.ExpectedTotal = &expected
	if _, err := f.svc.PlaceOrder(context.Background(), cmd); err != nil {
		t.Fatalf("within-tolerance placement failed: %v", err)
	}
}

func TestOrderService_PlaceOrder_InvalidInput(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	cases := []struct {
		name   string
		mutate func(*PlaceOrderCommand)
	}{
		{"missing idempotency key", func(c *PlaceOrderCommand) { c.IdempotencyKey = " " }},
		{"missing identity", func(c *PlaceOrderCommand) { c.Email = ""; c.UserID = "" }},
		{"missing method", func(c *PlaceOrderCommand) { c.ShippingMethodID = "" }},
		{"bad country", func(c *PlaceOrderCommand) { c.CountryCode = "LTU" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := placeCmd()
			tc.mutate(&cmd)
			if _, err := f.svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput got %v", err)
			}
		})
	}
}

func TestOrderService_PlaceOrder_EmptyCart(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})
	f.carts.lines = nil

	if _, err := f.svc.PlaceOrder(context.Background(), placeCmd()); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput got %v", err)
	}
}

func TestOrderService_PlaceOrder_UnsupportedDestination(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	cmd := placeCmd()
	cmd.CountryCode = "BR"
	if _, err := f.svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrShippingUnavailable) {
		t.Fatalf("expected ErrShippingUnavailable got %v", err)
	}
}

func TestOrderService_PlaceOrder_ConcurrentUsageCap(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{
		Code:       "LAST1",
		Type:       domain.DiscountPercentage,
		Percentage: 10,
		MaxUses:    intPtr(1),
	})

	// Two distinct customers race for the final use. Both pass evaluation
	// against the stale counter; the claim inside Save arbitrates.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := placeCmd()
			cmd.PromoCode = "LAST1"
			cmd.IdempotencyKey = fmt.Sprintf("key-%d", i)
			cmd.Email = fmt.Sprintf("shopper%d@example.com", i)
			_, errs[i] = f.svc.PlaceOrder(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	var wins, capped int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrPromoUsageLimitReached):
			capped++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 || capped != 1 {
		t.Fatalf("expected one winner and one cap rejection, got %d/%d (%v)", wins, capped, errs)
	}
	if got := f.promos.usageCount(); got != 1 {
		t.Fatalf("promo usage = %d, want 1", got)
	}
	if f.orders.saves != 1 {
		t.Fatalf("saved %d orders, want 1", f.orders.saves)
	}
}

func TestOrderService_PlaceOrder_PerUserLimitAtClaim(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{
		Code:         "ONCE",
		Type:         domain.DiscountFixed,
		Amount:       500,
		PerUserLimit: intPtr(1),
	})
	f.promos.usage["shopper@example.com"] = 1

	cmd := placeCmd()
	cmd.PromoCode = "ONCE"
	if _, err := f.svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrPromoAlreadyUsed) {
		t.Fatalf("expected ErrPromoAlreadyUsed got %v", err)
	}
}

func TestOrderService_PlaceOrder_PublishFailureDoesNotFail(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})
	f.publisher.err = errors.New("broker down")

	if _, err := f.svc.PlaceOrder(context.Background(), placeCmd()); err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	var logged bool
	for _, event := range f.events {
		if event == "order_placed_event_failed" {
			logged = true
		}
	}
	if !logged {
		t.Fatalf("publish failure not logged, events %v", f.events)
	}
}

func TestOrderService_PlaceOrder_SaveFailure(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})
	f.orders.saveErr = errors.New("transaction aborted")

	if _, err := f.svc.PlaceOrder(context.Background(), placeCmd()); !errors.Is(err, ErrOrderPlacementFailed) {
		t.Fatalf("expected ErrOrderPlacementFailed got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("failed placement still published")
	}
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	placed, err := f.svc.PlaceOrder(context.Background(), placeCmd())
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	got, err := f.svc.GetOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if got.ID != placed.ID || got.Summary.Total != placed.Summary.Total {
		t.Fatalf("GetOrder returned different snapshot: %+v", got)
	}

	if _, err := f.svc.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound got %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), "  "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput got %v", err)
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newOrderFixture(t, domain.PromoCode{})

	cmd := placeCmd()
	if _, err := f.svc.PlaceOrder(context.Background(), cmd); err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	orders, err := f.svc.ListOrders(context.Background(), "shopper@example.com", 10)
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order got %d", len(orders))
	}

	if _, err := f.svc.ListOrders(context.Background(), " ", 10); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput got %v", err)
	}
}
