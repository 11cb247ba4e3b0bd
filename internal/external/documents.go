package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
)

// DocumentClient talks to the prescription document store.
type DocumentClient struct {
	c *client
}

func NewDocumentClient(baseURL string, opts Options) *DocumentClient {
	return &DocumentClient{c: newClient("documents", baseURL, opts)}
}

type attachRequest struct {
	GuestID   string `json:"guest_id"`
	ItemID    string `json:"item_id"`
	ServiceID string `json:"service_id"`
	FileRef   string `json:"file_ref"`
	Contact   string `json:"contact,omitempty"`
}

// Attach registers an uploaded file against an item. New documents start
// out pending review.
func (dc *DocumentClient) Attach(ctx context.Context, req domain.AttachRequest) (domain.Attachment, error) {
	var resp struct {
		PrescriptionID string `json:"prescription_id"`
		Status         string `json:"status"`
	}
	err := dc.c.do(ctx, "POST", "/documents", nil, attachRequest{
		GuestID:   req.GuestID,
		ItemID:    req.ItemID.String(),
		ServiceID: req.ServiceID,
		FileRef:   req.FileRef,
		Contact:   req.Contact,
	}, &resp)
	if errors.Is(err, errNotFound) {
		return domain.Attachment{}, fmt.Errorf("document %s: %w", req.FileRef, domain.ErrInvalidReference)
	}
	if err != nil {
		return domain.Attachment{}, err
	}
	if resp.Status == "" {
		resp.Status = enum.PrescriptionStatusPending
	}
	return domain.Attachment{PrescriptionID: resp.PrescriptionID, Status: resp.Status}, nil
}

// Statuses returns the current verification state per service id. Services
// the store knows nothing about are absent from the map.
func (dc *DocumentClient) Statuses(ctx context.Context, guestID string, serviceIDs []string) (map[string]domain.DocumentStatus, error) {
	q := url.Values{}
	q.Set("guest_id", guestID)
	q.Set("service_ids", strings.Join(serviceIDs, ","))

	var resp struct {
		Statuses []struct {
			ServiceID    string  `json:"service_id"`
			Status       string  `json:"status"`
			RejectReason *string `json:"reject_reason"`
		} `json:"statuses"`
	}
	err := dc.c.do(ctx, "GET", "/statuses", q, nil, &resp)
	if errors.Is(err, errNotFound) {
		return map[string]domain.DocumentStatus{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.DocumentStatus, len(resp.Statuses))
	for _, s := range resp.Statuses {
		out[s.ServiceID] = domain.DocumentStatus{Status: s.Status, RejectReason: s.RejectReason}
	}
	return out, nil
}
