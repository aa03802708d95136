package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/ambershop/api/internal/domain"
	pfirestore "github.com/ambershop/api/internal/platform/firestore"
	"github.com/ambershop/api/internal/repositories"
)

const (
	promotionCollection     = "promotions"
	promotionUsageSubcoll   = "usages"
	promotionUsageCountPath = "usageCount"
)

type promoDocument struct {
	Type              string    `firestore:"type"`
	Percentage        float64   `firestore:"percentage,omitempty"`
	AmountCents       int64     `firestore:"amountCents,omitempty"`
	MinCartTotalCents int64     `firestore:"minCartTotalCents,omitempty"`
	MaxUses           *int      `firestore:"maxUses,omitempty"`
	PerUserLimit      *int      `firestore:"perUserLimit,omitempty"`
	ActiveFrom        time.Time `firestore:"activeFrom"`
	ExpiresAt         time.Time `firestore:"expiresAt"`
	UsageCount        int       `firestore:"usageCount"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type promoUsageDocument struct {
	Identity  string    `firestore:"identity"`
	Count     int       `firestore:"count"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// PromotionRepository reads promo definitions and per-identity usage from
// Firestore. Counters are only written by the order placement transaction.
type PromotionRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.Collection[promoDocument]
}

// NewPromotionRepository constructs a Firestore-backed promotion repository.
func NewPromotionRepository(provider *pfirestore.Provider) (*PromotionRepository, error) {
	if provider == nil {
		return nil, errors.New("promotion repository requires firestore provider")
	}
	return &PromotionRepository{
		provider: provider,
		base:     pfirestore.NewCollection[promoDocument](provider, promotionCollection),
	}, nil
}

// FindByCode loads the promo definition stored under the normalised code.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (domain.PromoCode, error) {
	if r == nil || r.base == nil {
		return domain.PromoCode{}, errors.New("promotion repository not initialised")
	}

	normalized := normalizeCode(code)
	if normalized == "" {
		return domain.PromoCode{}, pfirestore.WrapError("promotions.get", status.Error(codes.NotFound, "promo code is empty"))
	}

	doc, err := r.base.Get(ctx, normalized)
	if err != nil {
		return domain.PromoCode{}, err
	}
	return promoFromDocument(normalized, doc.Data)
}

// UsageByIdentity returns how many times the identity has redeemed the code.
// Identities that never used the code report zero.
func (r *PromotionRepository) UsageByIdentity(ctx context.Context, code string, identity string) (int, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("promotion repository not initialised")
	}

	normalized := normalizeCode(code)
	trimmedIdentity := strings.TrimSpace(identity)
	if normalized == "" || trimmedIdentity == "" {
		return 0, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	ref := client.Collection(promotionCollection).Doc(normalized).
		Collection(promotionUsageSubcoll).Doc(identityDocID(trimmedIdentity))
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, pfirestore.WrapError("promotions.usage", err)
	}

	var usage promoUsageDocument
	if err := snap.DataTo(&usage); err != nil {
		return 0, pfirestore.WrapError("promotions.usage", err)
	}
	return usage.Count, nil
}

func promoFromDocument(code string, doc promoDocument) (domain.PromoCode, error) {
	var promoType domain.DiscountType
	switch strings.ToLower(strings.TrimSpace(doc.Type)) {
	case string(domain.DiscountPercentage):
		promoType = domain.DiscountPercentage
	case string(domain.DiscountFixed):
		promoType = domain.DiscountFixed
	default:
		// Coercing a malformed type would hand out a silent 0% discount;
		// surface the bad document instead.
		return domain.PromoCode{}, pfirestore.WrapError("promotions.get",
			fmt.Errorf("promo %s has unknown discount type %q", code, doc.Type))
	}
	return domain.PromoCode{
		Code:         code,
		Type:         promoType,
		Percentage:   doc.Percentage,
		Amount:       doc.AmountCents,
		MinCartTotal: doc.MinCartTotalCents,
		MaxUses:      cloneIntPtr(doc.MaxUses),
		PerUserLimit: cloneIntPtr(doc.PerUserLimit),
		ActiveFrom:   doc.ActiveFrom,
		ExpiresAt:    doc.ExpiresAt,
		UsageCount:   doc.UsageCount,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// identityDocID hashes identities before using them as document IDs so raw
// emails never appear in document paths.
func identityDocID(identity string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identity))))
	return hex.EncodeToString(sum[:])
}

func cloneIntPtr(in *int) *int {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

var _ repositories.PromotionRepository = (*PromotionRepository)(nil)
