package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
)

// ScheduleClient reads provider time slots.
type ScheduleClient struct {
	c *client
}

func NewScheduleClient(baseURL string, opts Options) *ScheduleClient {
	return &ScheduleClient{c: newClient("schedule", baseURL, opts)}
}

// Slots returns the provider's slots for the query's day.
func (sc *ScheduleClient) Slots(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error) {
	path := fmt.Sprintf("/providers/%s/services/%s/slots", url.PathEscape(q.ProviderID), url.PathEscape(q.ServiceID))
	query := url.Values{}
	query.Set("date", q.Date.Format(time.DateOnly))
	query.Set("fulfillment_type", q.FulfillmentType)

	var resp struct {
		Slots []domain.Slot `json:"slots"`
	}
	err := sc.c.do(ctx, "GET", path, query, nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("provider %s service %s: %w", q.ProviderID, q.ServiceID, domain.ErrInvalidReference)
	}
	if err != nil {
		return nil, err
	}
	for i := range resp.Slots {
		switch resp.Slots[i].Availability {
		case enum.SlotAvailable, enum.SlotLimited, enum.SlotBooked:
		default:
			resp.Slots[i].Availability = enum.SlotAvailable
		}
	}
	return resp.Slots, nil
}
