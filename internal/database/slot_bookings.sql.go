package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createSlotBooking = `-- name: CreateSlotBooking :one
INSERT INTO slot_bookings (order_item_id, provider_id, service_id, slot_start)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, provider_id, service_id, slot_start, created_at
`

type CreateSlotBookingParams struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	ProviderID  string    `json:"provider_id"`
	ServiceID   string    `json:"service_id"`
	SlotStart   time.Time `json:"slot_start"`
}

func (q *Queries) CreateSlotBooking(ctx context.Context, arg CreateSlotBookingParams) (SlotBooking, error) {
	row := q.db.QueryRow(ctx, createSlotBooking,
		arg.OrderItemID,
		arg.ProviderID,
		arg.ServiceID,
		arg.SlotStart,
	)
	var i SlotBooking
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.ProviderID,
		&i.ServiceID,
		&i.SlotStart,
		&i.CreatedAt,
	)
	return i, err
}

const deleteSlotBookingByItem = `-- name: DeleteSlotBookingByItem :exec
DELETE FROM slot_bookings WHERE order_item_id = $1
`

func (q *Queries) DeleteSlotBookingByItem(ctx context.Context, orderItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteSlotBookingByItem, orderItemID)
	return err
}

const listBookedSlots = `-- name: ListBookedSlots :many
SELECT slot_start
FROM slot_bookings
WHERE provider_id = $1 AND service_id = $2
  AND slot_start >= $3 AND slot_start < $4
  AND order_item_id <> $5
ORDER BY slot_start
`

type ListBookedSlotsParams struct {
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	// ExcludeItemID hides the booking held by this item; uuid.Nil hides none.
	ExcludeItemID uuid.UUID `json:"exclude_item_id"`
}

func (q *Queries) ListBookedSlots(ctx context.Context, arg ListBookedSlotsParams) ([]time.Time, error) {
	rows, err := q.db.Query(ctx, listBookedSlots,
		arg.ProviderID,
		arg.ServiceID,
		arg.From,
		arg.To,
		arg.ExcludeItemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []time.Time{}
	for rows.Next() {
		var slotStart time.Time
		if err := rows.Scan(&slotStart); err != nil {
			return nil, err
		}
		items = append(items, slotStart)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
