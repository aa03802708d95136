package handlers

import (
	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/services"
)

type shippingMethodResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PriceCents     int64  `json:"priceCents"`
	PriceFormatted string `json:"priceFormatted"`
	EstimatedDays  string `json:"estimatedDays,omitempty"`
}

type priceSummaryResponse struct {
	OriginalSubtotalCents int64  `json:"originalSubtotalCents"`
	ProductDiscountCents  int64  `json:"productDiscountCents"`
	SubtotalCents         int64  `json:"subtotalCents"`
	SubtotalExclTaxCents  int64  `json:"subtotalExclTaxCents"`
	TaxCents              int64  `json:"taxCents"`
	ShippingCents         int64  `json:"shippingCents"`
	PromoDiscountCents    int64  `json:"promoDiscountCents"`
	TotalCents            int64  `json:"totalCents"`
	TotalFormatted        string `json:"totalFormatted"`
}

type promoResponse struct {
	Code          string `json:"code"`
	Type          string `json:"type"`
	Display       string `json:"display"`
	DiscountCents int64  `json:"discountCents"`
}

type orderLineResponse struct {
	ProductID              string  `json:"productId"`
	VariantID              *string `json:"variantId,omitempty"`
	Name                   string  `json:"name"`
	SKU                    string  `json:"sku,omitempty"`
	ImageURL               string  `json:"imageUrl,omitempty"`
	Quantity               int     `json:"quantity"`
	UnitPriceCents         int64   `json:"unitPriceCents"`
	OriginalUnitPriceCents int64   `json:"originalUnitPriceCents"`
	LineTotalCents         int64   `json:"lineTotalCents"`
}

type orderResponse struct {
	ID             string                 `json:"id"`
	CountryCode    string                 `json:"countryCode"`
	Zone           string                 `json:"zone"`
	Lines          []orderLineResponse    `json:"lines"`
	ShippingMethod shippingMethodResponse `json:"shippingMethod"`
	PromoCode      string                 `json:"promoCode,omitempty"`
	Summary        priceSummaryResponse   `json:"summary"`
	Note           string                 `json:"note,omitempty"`
	PlacedAt       string                 `json:"placedAt"`
}

func encodeShippingMethod(method domain.ShippingMethod) shippingMethodResponse {
	return shippingMethodResponse{
		ID:             method.ID,
		Name:           method.Name,
		Description:    method.Description,
		PriceCents:     method.Price,
		PriceFormatted: domain.FormatEUR(method.Price),
		EstimatedDays:  method.EstimatedDays,
	}
}

func encodeShippingMethods(methods []domain.ShippingMethod) []shippingMethodResponse {
	out := make([]shippingMethodResponse, 0, len(methods))
	for _, method := range methods {
		out = append(out, encodeShippingMethod(method))
	}
	return out
}

func encodePriceSummary(summary domain.PriceSummary) priceSummaryResponse {
	return priceSummaryResponse{
		OriginalSubtotalCents: summary.OriginalSubtotal,
		ProductDiscountCents:  summary.ProductDiscount,
		SubtotalCents:         summary.Subtotal,
		SubtotalExclTaxCents:  summary.SubtotalExclTax,
		TaxCents:              summary.TaxAmount,
		ShippingCents:         summary.ShippingCost,
		PromoDiscountCents:    summary.PromoDiscount,
		TotalCents:            summary.Total,
		TotalFormatted:        domain.FormatEUR(summary.Total),
	}
}

func encodePromo(outcome domain.DiscountOutcome) promoResponse {
	return promoResponse{
		Code:          outcome.Code,
		Type:          string(outcome.Type),
		Display:       outcome.Display,
		DiscountCents: outcome.DiscountAmount,
	}
}

func encodeOrder(snapshot domain.OrderSnapshot) orderResponse {
	lines := make([]orderLineResponse, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:              line.ProductID,
			VariantID:              line.VariantID,
			Name:                   line.Name,
			SKU:                    line.SKU,
			ImageURL:               line.ImageURL,
			Quantity:               line.Quantity,
			UnitPriceCents:         line.UnitPrice,
			OriginalUnitPriceCents: line.OriginalUnitPrice,
			LineTotalCents:         line.LineTotal,
		})
	}
	return orderResponse{
		ID:             snapshot.ID,
		CountryCode:    snapshot.CountryCode,
		Zone:           string(snapshot.Zone),
		Lines:          lines,
		ShippingMethod: encodeShippingMethod(snapshot.ShippingMethod),
		PromoCode:      snapshot.PromoCode,
		Summary:        encodePriceSummary(snapshot.Summary),
		Note:           snapshot.Note,
		PlacedAt:       formatTime(snapshot.PlacedAt),
	}
}

func encodePreview(result services.PreviewResult) map[string]any {
	payload := map[string]any{
		"summary":          encodePriceSummary(result.Summary),
		"shippingMethods":  encodeShippingMethods(result.Methods),
		"selectedMethod":   encodeShippingMethod(result.SelectedMethod),
		"promoInvalidated": result.PromoInvalidated,
	}
	if result.Promo != nil {
		payload["promo"] = encodePromo(*result.Promo)
	}
	return payload
}
