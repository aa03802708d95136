package services

import (
	"context"
	"strings"
	"time"

	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/repositories"
)

// PromotionServiceDeps bundles dependencies required to construct a PromotionService.
type PromotionServiceDeps struct {
	Promotions repositories.PromotionRepository
	Clock      func() time.Time
}

type promotionService struct {
	repo  repositories.PromotionRepository
	clock func() time.Time
}

// NewPromotionService wires a PromotionService backed by the provided repository.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promotions == nil {
		return nil, ErrPromoRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &promotionService{
		repo:  deps.Promotions,
		clock: func() time.Time { return clock().UTC() },
	}, nil
}

// Evaluate validates the code against its constraints in declaration order,
// short-circuiting on the first failure, then computes the discount. It reads
// usage counters but never increments them; the order placement transaction
// owns the increment so an abandoned checkout cannot consume a use.
func (s *promotionService) Evaluate(ctx context.Context, cmd EvaluatePromoCommand) (domain.DiscountOutcome, error) {
	if s == nil || s.repo == nil {
		return domain.DiscountOutcome{}, ErrPromoRepositoryMissing
	}

	code := normalizePromoCode(cmd.Code)
	if code == "" {
		return domain.DiscountOutcome{}, ErrPromoInvalidCode
	}
	if cmd.CartTotal < 0 {
		return domain.DiscountOutcome{}, ErrPromoInvalidCode
	}

	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.DiscountOutcome{}, ErrPromoNotFound
		}
		return domain.DiscountOutcome{}, err
	}

	now := s.clock()
	if !promo.ActiveFrom.IsZero() && now.Before(promo.ActiveFrom) {
		return domain.DiscountOutcome{}, ErrPromoNotYetActive
	}
	if !promo.ExpiresAt.IsZero() && now.After(promo.ExpiresAt) {
		return domain.DiscountOutcome{}, ErrPromoExpired
	}

	if promo.MinCartTotal > 0 && cmd.CartTotal < promo.MinCartTotal {
		return domain.DiscountOutcome{}, &BelowMinimumError{Minimum: promo.MinCartTotal}
	}

	if promo.MaxUses != nil && promo.UsageCount >= *promo.MaxUses {
		return domain.DiscountOutcome{}, ErrPromoUsageLimitReached
	}

	if promo.PerUserLimit != nil {
		identity := PromoIdentity(cmd.UserID, cmd.Email)
		if identity != "" {
			used, err := s.repo.UsageByIdentity(ctx, code, identity)
			if err != nil && !repositories.IsNotFound(err) {
				return domain.DiscountOutcome{}, err
			}
			if used >= *promo.PerUserLimit {
				return domain.DiscountOutcome{}, ErrPromoAlreadyUsed
			}
		}
	}

	return buildDiscountOutcome(promo, cmd.CartTotal), nil
}

func buildDiscountOutcome(promo domain.PromoCode, cartTotal int64) domain.DiscountOutcome {
	outcome := domain.DiscountOutcome{
		Code:         promo.Code,
		Type:         promo.Type,
		Percentage:   promo.Percentage,
		Amount:       promo.Amount,
		MinCartTotal: promo.MinCartTotal,
	}

	switch promo.Type {
	case domain.DiscountPercentage:
		outcome.DiscountAmount = domain.PercentOf(cartTotal, promo.Percentage)
		outcome.Display = domain.FormatPercent(promo.Percentage)
	case domain.DiscountFixed:
		outcome.DiscountAmount = promo.Amount
		outcome.Display = domain.FormatEUR(promo.Amount)
	}

	// A discount never exceeds the cart total.
	if outcome.DiscountAmount > cartTotal {
		outcome.DiscountAmount = cartTotal
	}
	if outcome.DiscountAmount < 0 {
		outcome.DiscountAmount = 0
	}
	return outcome
}

// PromoIdentity resolves the identity used for per-customer usage limits:
// the user ID when authenticated, otherwise the lowercased email.
func PromoIdentity(userID, email string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
