package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/shopspring/decimal"
)

// CatalogClient looks up provider offers for a service.
type CatalogClient struct {
	c *client
}

func NewCatalogClient(baseURL string, opts Options) *CatalogClient {
	return &CatalogClient{c: newClient("catalog", baseURL, opts)}
}

type offerJSON struct {
	ServiceID            string   `json:"service_id"`
	ServiceName          string   `json:"service_name"`
	ServiceType          string   `json:"service_type"`
	PrescriptionRequired bool     `json:"prescription_required"`
	ProviderID           string   `json:"provider_id"`
	ProviderName         string   `json:"provider_name"`
	ProviderAddress      *string  `json:"provider_address"`
	Price                string   `json:"price"`
	DistanceKM           *float64 `json:"distance_km"`
	Availability         string   `json:"availability"`
}

// Lookup returns every provider offer for the service. An unknown service
// fails with ErrInvalidReference.
func (cc *CatalogClient) Lookup(ctx context.Context, serviceID string) ([]domain.Offer, error) {
	var resp struct {
		Offers []offerJSON `json:"offers"`
	}
	err := cc.c.do(ctx, "GET", "/services/"+url.PathEscape(serviceID)+"/offers", nil, nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("service %s: %w", serviceID, domain.ErrInvalidReference)
	}
	if err != nil {
		return nil, err
	}

	offers := make([]domain.Offer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		price, err := MinorUnits(o.Price)
		if err != nil {
			return nil, fmt.Errorf("offer %s/%s: %w: %v", o.ServiceID, o.ProviderID, domain.ErrExternalService, err)
		}
		if o.ServiceID == "" {
			o.ServiceID = serviceID
		}
		if !domain.IsValidServiceType(o.ServiceType) {
			return nil, fmt.Errorf("offer %s/%s: %w: unknown service type %q", o.ServiceID, o.ProviderID, domain.ErrExternalService, o.ServiceType)
		}
		if o.Availability == "" {
			o.Availability = enum.SlotAvailable
		}
		offers = append(offers, domain.Offer{
			ServiceID:            o.ServiceID,
			ServiceName:          o.ServiceName,
			ServiceType:          o.ServiceType,
			PrescriptionRequired: o.PrescriptionRequired,
			ProviderID:           o.ProviderID,
			ProviderName:         o.ProviderName,
			ProviderAddress:      o.ProviderAddress,
			Price:                price,
			DistanceKM:           o.DistanceKM,
			Availability:         o.Availability,
		})
	}
	return offers, nil
}

// MinorUnits converts a decimal price string in major units ("15000.50")
// into integer minor units (1500050). Sub-minor precision and negative
// prices are rejected.
func MinorUnits(price string) (int64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %q", price)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("price %q has more than two decimals", price)
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a two-decimal major-unit string.
func FormatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
