package services

import (
	"strings"

	domain "github.com/ambershop/api/internal/domain"
)

// Zone membership tables. GB, NO and CH are not EU members but ship under the
// same carrier contract and rate, so they sit in the EU table on purpose.
var (
	balticCountries        = map[string]struct{}{"LT": {}, "LV": {}, "EE": {}}
	internationalCountries = map[string]struct{}{"PL": {}, "FI": {}}
	euCountries            = map[string]struct{}{
		"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
		"FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {}, "IT": {}, "LU": {},
		"MT": {}, "NL": {}, "PT": {}, "RO": {}, "SI": {}, "SK": {}, "ES": {},
		"SE": {}, "GB": {}, "NO": {}, "CH": {},
	}
	northAmericaCountries = map[string]struct{}{"US": {}, "CA": {}}
)

// ClassifyCountry maps an ISO 3166-1 alpha-2 code to its shipping zone.
// Unknown or malformed codes resolve to ZoneUnsupported; this never fails.
func ClassifyCountry(countryCode string) domain.ShippingZone {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	switch {
	case isMember(balticCountries, code):
		return domain.ZoneBaltic
	case isMember(internationalCountries, code):
		return domain.ZoneInternational
	case isMember(euCountries, code):
		return domain.ZoneEU
	case isMember(northAmericaCountries, code):
		return domain.ZoneNorthAmerica
	default:
		return domain.ZoneUnsupported
	}
}

func isMember(set map[string]struct{}, code string) bool {
	_, ok := set[code]
	return ok
}

// ShippingCatalogConfig overrides the default rates and threshold. Zero
// values fall back to the deployed defaults.
type ShippingCatalogConfig struct {
	BalticRate            int64
	InternationalRate     int64
	OverseasRate          int64
	FreeShippingThreshold int64
	FreeShippingCountry   string
}

const (
	defaultBalticRate            = 400
	defaultInternationalRate     = 400
	defaultOverseasRate          = 2000
	defaultFreeShippingThreshold = 5000
	defaultFreeShippingCountry   = "LT"
)

// ShippingCatalog enumerates shipping methods per zone with the free-shipping
// threshold rule applied. Methods are returned in declaration order, courier
// before pickup point, and are constructed fresh on every call.
type ShippingCatalog struct {
	balticRate        int64
	internationalRate int64
	overseasRate      int64
	freeThreshold     int64
	freeCountry       string
}

// NewShippingCatalog constructs the catalog with deployed defaults for any
// unset config field.
func NewShippingCatalog(cfg ShippingCatalogConfig) *ShippingCatalog {
	catalog := &ShippingCatalog{
		balticRate:        cfg.BalticRate,
		internationalRate: cfg.InternationalRate,
		overseasRate:      cfg.OverseasRate,
		freeThreshold:     cfg.FreeShippingThreshold,
		freeCountry:       strings.ToUpper(strings.TrimSpace(cfg.FreeShippingCountry)),
	}
	if catalog.balticRate <= 0 {
		catalog.balticRate = defaultBalticRate
	}
	if catalog.internationalRate <= 0 {
		catalog.internationalRate = defaultInternationalRate
	}
	if catalog.overseasRate <= 0 {
		catalog.overseasRate = defaultOverseasRate
	}
	if catalog.freeThreshold <= 0 {
		catalog.freeThreshold = defaultFreeShippingThreshold
	}
	if catalog.freeCountry == "" {
		catalog.freeCountry = defaultFreeShippingCountry
	}
	return catalog
}

// Classify implements ShippingService.
func (c *ShippingCatalog) Classify(countryCode string) domain.ShippingZone {
	return ClassifyCountry(countryCode)
}

// Methods implements ShippingService. The free-shipping threshold applies to
// the configured country only (Lithuania in the observed deployment), not to
// the rest of the Baltic zone; meeting the threshold exactly counts.
func (c *ShippingCatalog) Methods(countryCode string, subtotal int64) []domain.ShippingMethod {
	code := strings.ToUpper(strings.TrimSpace(countryCode))

	switch ClassifyCountry(code) {
	case domain.ZoneBaltic:
		price := c.balticRate
		if code == c.freeCountry && subtotal >= c.freeThreshold {
			price = 0
		}
		return []domain.ShippingMethod{
			{
				ID:            "venipak-courier",
				Name:          "Venipak courier",
				Description:   "Delivery to your door by Venipak courier",
				Price:         price,
				EstimatedDays: "1-2 business days",
			},
			{
				ID:            "venipak-pickup",
				Name:          "Venipak pickup point",
				Description:   "Delivery to a Venipak pickup point or parcel locker",
				Price:         price,
				EstimatedDays: "1-3 business days",
			},
		}
	case domain.ZoneInternational:
		return []domain.ShippingMethod{
			{
				ID:            "venipak-courier",
				Name:          "Venipak courier",
				Description:   "International delivery by Venipak courier",
				Price:         c.internationalRate,
				EstimatedDays: "3-5 business days",
			},
		}
	case domain.ZoneEU:
		return []domain.ShippingMethod{
			{
				ID:            "fedex-international",
				Name:          "FedEx International",
				Description:   "Tracked delivery by FedEx",
				Price:         c.overseasRate,
				EstimatedDays: "4-7 business days",
			},
		}
	case domain.ZoneNorthAmerica:
		return []domain.ShippingMethod{
			{
				ID:            "fedex-international",
				Name:          "FedEx International",
				Description:   "Tracked delivery by FedEx",
				Price:         c.overseasRate,
				EstimatedDays: "7-12 business days",
			},
		}
	default:
		return nil
	}
}
