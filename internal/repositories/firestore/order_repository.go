package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/ambershop/api/internal/domain"
	pfirestore "github.com/ambershop/api/internal/platform/firestore"
	"github.com/ambershop/api/internal/repositories"
)

const (
	orderCollection    = "orders"
	orderKeyCollection = "orderKeys"
)

type orderDocument struct {
	IdempotencyKey string                 `firestore:"idempotencyKey"`
	UserID         string                 `firestore:"userId,omitempty"`
	Email          string                 `firestore:"email,omitempty"`
	Identity       string                 `firestore:"identity"`
	CountryCode    string                 `firestore:"countryCode"`
	Zone           string                 `firestore:"zone"`
	Lines          []orderLineDocument    `firestore:"lines"`
	Shipping       shippingMethodDocument `firestore:"shipping"`
	PromoCode      string                 `firestore:"promoCode,omitempty"`
	Summary        priceSummaryDocument   `firestore:"summary"`
	Note           string                 `firestore:"note,omitempty"`
	PlacedAt       time.Time              `firestore:"placedAt"`
}

type orderLineDocument struct {
	ProductID              string `firestore:"productId"`
	VariantID              string `firestore:"variantId,omitempty"`
	Name                   string `firestore:"name"`
	SKU                    string `firestore:"sku,omitempty"`
	ImageURL               string `firestore:"imageUrl,omitempty"`
	Quantity               int    `firestore:"quantity"`
	UnitPriceCents         int64  `firestore:"unitPriceCents"`
	OriginalUnitPriceCents int64  `firestore:"originalUnitPriceCents"`
	LineTotalCents         int64  `firestore:"lineTotalCents"`
}

type shippingMethodDocument struct {
	ID            string `firestore:"id"`
	Name          string `firestore:"name"`
	Description   string `firestore:"description,omitempty"`
	PriceCents    int64  `firestore:"priceCents"`
	EstimatedDays string `firestore:"estimatedDays,omitempty"`
}

type priceSummaryDocument struct {
	OriginalSubtotalCents int64 `firestore:"originalSubtotalCents"`
	ProductDiscountCents  int64 `firestore:"productDiscountCents"`
	SubtotalCents         int64 `firestore:"subtotalCents"`
	SubtotalExclTaxCents  int64 `firestore:"subtotalExclTaxCents"`
	TaxCents              int64 `firestore:"taxCents"`
	ShippingCents         int64 `firestore:"shippingCents"`
	PromoDiscountCents    int64 `firestore:"promoDiscountCents"`
	TotalCents            int64 `firestore:"totalCents"`
}

type orderKeyDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// OrderRepository persists order snapshots in Firestore. Placement commits the
// snapshot, the idempotency key record, and the optional promo usage claim in
// one transaction, so concurrent placements can never double-spend a promo or
// duplicate an order.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	clock    func() time.Time
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, orderCollection),
		clock:    time.Now,
	}, nil
}

// Save commits the snapshot atomically with the promo usage claim. Replaying
// an idempotency key returns the originally stored snapshot without writes.
func (r *OrderRepository) Save(ctx context.Context, snapshot domain.OrderSnapshot, claim *repositories.PromoUsageClaim) (domain.OrderSnapshot, error) {
	if r == nil || r.provider == nil {
		return domain.OrderSnapshot{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(snapshot.ID)
	key := strings.TrimSpace(snapshot.IdempotencyKey)
	if orderID == "" || key == "" {
		return domain.OrderSnapshot{}, errors.New("order repository: order id and idempotency key are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}

	now := r.clock().UTC()
	var saved domain.OrderSnapshot

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		keyRef := client.Collection(orderKeyCollection).Doc(idempotencyDocID(key))
		orderRef := client.Collection(orderCollection).Doc(orderID)

		keySnap, err := tx.Get(keyRef)
		switch status.Code(err) {
		case codes.OK:
			var keyDoc orderKeyDocument
			if err := keySnap.DataTo(&keyDoc); err != nil {
				return fmt.Errorf("decode order key %s: %w", keyRef.ID, err)
			}
			existingSnap, err := tx.Get(client.Collection(orderCollection).Doc(keyDoc.OrderID))
			if err != nil {
				return err
			}
			var existing orderDocument
			if err := existingSnap.DataTo(&existing); err != nil {
				return fmt.Errorf("decode order %s: %w", keyDoc.OrderID, err)
			}
			saved = orderFromDocument(keyDoc.OrderID, existing)
			return nil
		case codes.NotFound:
			// first placement for this key
		default:
			return err
		}

		var promoRef, usageRef *firestore.DocumentRef
		var usage promoUsageDocument
		if claim != nil {
			code := normalizeCode(claim.Code)
			identity := strings.TrimSpace(claim.Identity)
			if code == "" || identity == "" {
				return errors.New("order repository: promo claim requires code and identity")
			}

			promoRef = client.Collection(promotionCollection).Doc(code)
			promoSnap, err := tx.Get(promoRef)
			if err != nil {
				return err
			}
			var promo promoDocument
			if err := promoSnap.DataTo(&promo); err != nil {
				return fmt.Errorf("decode promo %s: %w", code, err)
			}
			if promo.MaxUses != nil && promo.UsageCount >= *promo.MaxUses {
				return repositories.ErrUsageLimitReached
			}

			usageRef = promoRef.Collection(promotionUsageSubcoll).Doc(identityDocID(identity))
			usageSnap, err := tx.Get(usageRef)
			switch status.Code(err) {
			case codes.OK:
				if err := usageSnap.DataTo(&usage); err != nil {
					return fmt.Errorf("decode promo usage %s: %w", code, err)
				}
			case codes.NotFound:
				usage = promoUsageDocument{Identity: identity}
			default:
				return err
			}
			if promo.PerUserLimit != nil && usage.Count >= *promo.PerUserLimit {
				return repositories.ErrPerUserLimitReached
			}
		}

		doc := orderToDocument(snapshot)
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		if err := tx.Create(keyRef, orderKeyDocument{OrderID: orderID, CreatedAt: now}); err != nil {
			return err
		}
		if claim != nil {
			if err := tx.Update(promoRef, []firestore.Update{
				{Path: promotionUsageCountPath, Value: firestore.Increment(1)},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
			usage.Count++
			usage.UpdatedAt = now
			if err := tx.Set(usageRef, usage); err != nil {
				return err
			}
		}

		saved = orderFromDocument(orderID, doc)
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUsageLimitReached) || errors.Is(err, repositories.ErrPerUserLimitReached) {
			return domain.OrderSnapshot{}, err
		}
		return domain.OrderSnapshot{}, pfirestore.WrapError("orders.save", err)
	}
	return saved, nil
}

// FindByIdempotencyKey returns the snapshot originally stored under the key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (domain.OrderSnapshot, error) {
	if r == nil || r.provider == nil {
		return domain.OrderSnapshot{}, errors.New("order repository not initialised")
	}
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return domain.OrderSnapshot{}, pfirestore.WrapError("orders.key", status.Error(codes.NotFound, "idempotency key is empty"))
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}

	keySnap, err := client.Collection(orderKeyCollection).Doc(idempotencyDocID(trimmed)).Get(ctx)
	if err != nil {
		return domain.OrderSnapshot{}, pfirestore.WrapError("orders.key", err)
	}
	var keyDoc orderKeyDocument
	if err := keySnap.DataTo(&keyDoc); err != nil {
		return domain.OrderSnapshot{}, pfirestore.WrapError("orders.key", err)
	}
	return r.FindByID(ctx, keyDoc.OrderID)
}

// FindByID loads one order snapshot.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	if r == nil || r.orders == nil {
		return domain.OrderSnapshot{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// ListByIdentity returns the identity's orders, most recent first.
func (r *OrderRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.OrderSnapshot, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}
	trimmed := strings.ToLower(strings.TrimSpace(identity))
	if trimmed == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	docs, err := r.orders.Select(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("identity", "==", trimmed).
			OrderBy("placedAt", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.OrderSnapshot, 0, len(docs))
	for _, doc := range docs {
		snapshots = append(snapshots, orderFromDocument(doc.ID, doc.Data))
	}
	return snapshots, nil
}

func orderToDocument(snapshot domain.OrderSnapshot) orderDocument {
	lines := make([]orderLineDocument, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		entry := orderLineDocument{
			ProductID:              line.ProductID,
			Name:                   line.Name,
			SKU:                    line.SKU,
			ImageURL:               line.ImageURL,
			Quantity:               line.Quantity,
			UnitPriceCents:         line.UnitPrice,
			OriginalUnitPriceCents: line.OriginalUnitPrice,
			LineTotalCents:         line.LineTotal,
		}
		if line.VariantID != nil {
			entry.VariantID = strings.TrimSpace(*line.VariantID)
		}
		lines = append(lines, entry)
	}

	return orderDocument{
		IdempotencyKey: strings.TrimSpace(snapshot.IdempotencyKey),
		UserID:         strings.TrimSpace(snapshot.UserID),
		Email:          strings.TrimSpace(snapshot.Email),
		Identity:       orderIdentity(snapshot),
		CountryCode:    strings.ToUpper(strings.TrimSpace(snapshot.CountryCode)),
		Zone:           string(snapshot.Zone),
		Lines:          lines,
		Shipping: shippingMethodDocument{
			ID:            snapshot.ShippingMethod.ID,
			Name:          snapshot.ShippingMethod.Name,
			Description:   snapshot.ShippingMethod.Description,
			PriceCents:    snapshot.ShippingMethod.Price,
			EstimatedDays: snapshot.ShippingMethod.EstimatedDays,
		},
		PromoCode: strings.TrimSpace(snapshot.PromoCode),
		Summary: priceSummaryDocument{
			OriginalSubtotalCents: snapshot.Summary.OriginalSubtotal,
			ProductDiscountCents:  snapshot.Summary.ProductDiscount,
			SubtotalCents:         snapshot.Summary.Subtotal,
			SubtotalExclTaxCents:  snapshot.Summary.SubtotalExclTax,
			TaxCents:              snapshot.Summary.TaxAmount,
			ShippingCents:         snapshot.Summary.ShippingCost,
			PromoDiscountCents:    snapshot.Summary.PromoDiscount,
			TotalCents:            snapshot.Summary.Total,
		},
		Note:     snapshot.Note,
		PlacedAt: snapshot.PlacedAt.UTC(),
	}
}

func orderFromDocument(id string, doc orderDocument) domain.OrderSnapshot {
	lines := make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		entry := domain.OrderLine{
			ProductID:         line.ProductID,
			Name:              line.Name,
			SKU:               line.SKU,
			ImageURL:          line.ImageURL,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPriceCents,
			OriginalUnitPrice: line.OriginalUnitPriceCents,
			LineTotal:         line.LineTotalCents,
		}
		if trimmed := strings.TrimSpace(line.VariantID); trimmed != "" {
			variantID := trimmed
			entry.VariantID = &variantID
		}
		lines = append(lines, entry)
	}

	return domain.OrderSnapshot{
		ID:             id,
		IdempotencyKey: doc.IdempotencyKey,
		UserID:         doc.UserID,
		Email:          doc.Email,
		CountryCode:    doc.CountryCode,
		Zone:           domain.ShippingZone(doc.Zone),
		Lines:          lines,
		ShippingMethod: domain.ShippingMethod{
			ID:            doc.Shipping.ID,
			Name:          doc.Shipping.Name,
			Description:   doc.Shipping.Description,
			Price:         doc.Shipping.PriceCents,
			EstimatedDays: doc.Shipping.EstimatedDays,
		},
		PromoCode: doc.PromoCode,
		Summary: domain.PriceSummary{
			OriginalSubtotal: doc.Summary.OriginalSubtotalCents,
			ProductDiscount:  doc.Summary.ProductDiscountCents,
			Subtotal:         doc.Summary.SubtotalCents,
			SubtotalExclTax:  doc.Summary.SubtotalExclTaxCents,
			TaxAmount:        doc.Summary.TaxCents,
			ShippingCost:     doc.Summary.ShippingCents,
			PromoDiscount:    doc.Summary.PromoDiscountCents,
			Total:            doc.Summary.TotalCents,
		},
		Note:     doc.Note,
		PlacedAt: doc.PlacedAt,
	}
}

func orderIdentity(snapshot domain.OrderSnapshot) string {
	if userID := strings.TrimSpace(snapshot.UserID); userID != "" {
		return strings.ToLower(userID)
	}
	return strings.ToLower(strings.TrimSpace(snapshot.Email))
}

func idempotencyDocID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

var (
	_ repositories.OrderRepository   = (*OrderRepository)(nil)
	_ repositories.CartRepository    = (*CartRepository)(nil)
	_ repositories.CatalogRepository = (*CatalogRepository)(nil)
)
