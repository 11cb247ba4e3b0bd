package service

import (
	"context"
	"fmt"
	"time"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// loadOrders builds aggregates for the given order rows with two queries,
// preserving the row order.
func loadOrders(ctx context.Context, store orderReader, rows []database.Order) ([]domain.Order, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, o := range rows {
		ids[i] = o.ID
	}

	items, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	prescriptions, err := store.ListPrescriptionsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}

	byItem := make(map[uuid.UUID][]domain.Prescription)
	for _, p := range prescriptions {
		byItem[p.OrderItemID] = append(byItem[p.OrderItemID], toPrescription(p))
	}
	byOrder := make(map[uuid.UUID][]domain.Item)
	for _, it := range items {
		item := toItem(it)
		item.Prescriptions = byItem[it.ID]
		byOrder[it.OrderID] = append(byOrder[it.OrderID], item)
	}

	out := make([]domain.Order, len(rows))
	for i, o := range rows {
		out[i] = toOrder(o).WithItems(byOrder[o.ID])
	}
	return out, nil
}

func loadOrder(ctx context.Context, store orderReader, row database.Order) (domain.Order, error) {
	orders, err := loadOrders(ctx, store, []database.Order{row})
	if err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func toOrder(o database.Order) domain.Order {
	return domain.Order{
		ID:             o.ID,
		GuestID:        o.GuestID,
		UserID:         textPtr(o.UserID),
		Status:         o.Status,
		DeliveryMethod: textPtr(o.DeliveryMethod),
		Address:        textPtr(o.Address),
		CustomerName:   textPtr(o.CustomerName),
		CustomerEmail:  textPtr(o.CustomerEmail),
		CustomerPhone:  textPtr(o.CustomerPhone),
		ParentOrderID:  uuidPtr(o.ParentOrderID),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toItem(it database.OrderItem) domain.Item {
	return domain.Item{
		ID:          it.ID,
		OrderID:     it.OrderID,
		ServiceID:   it.ServiceID,
		ServiceName: it.ServiceName,
		ServiceType: it.ServiceType,
		Provider: domain.Provider{
			ID:      it.ProviderID,
			Name:    it.ProviderName,
			Address: textPtr(it.ProviderAddress),
		},
		Quantity:             it.Quantity,
		UnitPrice:            it.UnitPrice,
		PrescriptionRequired: it.PrescriptionRequired,
		FulfillmentMethod:    textPtr(it.FulfillmentMethod),
		TimeSlotStart:        timePtr(it.TimeSlotStart),
		PaidAt:               timePtr(it.PaidAt),
		AddedAt:              it.CreatedAt,
	}
}

func toPrescription(p database.Prescription) domain.Prescription {
	return domain.Prescription{
		ID:           p.ID,
		Status:       p.Status,
		RejectReason: textPtr(p.RejectReason),
		FileRef:      p.FileRef,
		ExternalID:   p.ExternalID.String,
		UploadedAt:   p.UploadedAt,
	}
}

// --- pgtype helpers ---

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textFromPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
