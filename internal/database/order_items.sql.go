package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, position, service_id, service_name, service_type, provider_id, provider_name, provider_address, quantity, unit_price, prescription_required, fulfillment_method, time_slot_start, paid_at, created_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Position,
		&i.ServiceID,
		&i.ServiceName,
		&i.ServiceType,
		&i.ProviderID,
		&i.ProviderName,
		&i.ProviderAddress,
		&i.Quantity,
		&i.UnitPrice,
		&i.PrescriptionRequired,
		&i.FulfillmentMethod,
		&i.TimeSlotStart,
		&i.PaidAt,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryOrderItems(ctx context.Context, sql string, args ...interface{}) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, service_id, service_name, service_type, provider_id, provider_name,
    provider_address, quantity, unit_price, prescription_required
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID              uuid.UUID   `json:"order_id"`
	ServiceID            string      `json:"service_id"`
	ServiceName          string      `json:"service_name"`
	ServiceType          string      `json:"service_type"`
	ProviderID           string      `json:"provider_id"`
	ProviderName         string      `json:"provider_name"`
	ProviderAddress      pgtype.Text `json:"provider_address"`
	Quantity             int32       `json:"quantity"`
	UnitPrice            int64       `json:"unit_price"`
	PrescriptionRequired bool        `json:"prescription_required"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ServiceID,
		arg.ServiceName,
		arg.ServiceType,
		arg.ProviderID,
		arg.ProviderName,
		arg.ProviderAddress,
		arg.Quantity,
		arg.UnitPrice,
		arg.PrescriptionRequired,
	)
	return scanOrderItem(row)
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY position
`

// ListOrderItemsByOrders returns the items of the given orders in the order
// they were first added.
func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByOrders, orderIds)
}

const deleteOrderItem = `-- name: DeleteOrderItem :execrows
DELETE FROM order_items WHERE id = $1 AND order_id = $2
`

type DeleteOrderItemParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderItem, arg.ID, arg.OrderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateOrderItemQuantity = `-- name: UpdateOrderItemQuantity :one
UPDATE order_items SET quantity = $2
WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemQuantityParams struct {
	ID       uuid.UUID `json:"id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemQuantity, arg.ID, arg.Quantity))
}

const updateOrderItemFulfillment = `-- name: UpdateOrderItemFulfillment :one
UPDATE order_items SET fulfillment_method = $2, time_slot_start = $3
WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemFulfillmentParams struct {
	ID                uuid.UUID          `json:"id"`
	FulfillmentMethod pgtype.Text        `json:"fulfillment_method"`
	TimeSlotStart     pgtype.Timestamptz `json:"time_slot_start"`
}

func (q *Queries) UpdateOrderItemFulfillment(ctx context.Context, arg UpdateOrderItemFulfillmentParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, updateOrderItemFulfillment, arg.ID, arg.FulfillmentMethod, arg.TimeSlotStart))
}

const moveOrderItems = `-- name: MoveOrderItems :execrows
UPDATE order_items SET order_id = $1
WHERE id = ANY($2::uuid[]) AND order_id = $3
`

type MoveOrderItemsParams struct {
	ToOrderID   uuid.UUID   `json:"to_order_id"`
	Ids         []uuid.UUID `json:"ids"`
	FromOrderID uuid.UUID   `json:"from_order_id"`
}

func (q *Queries) MoveOrderItems(ctx context.Context, arg MoveOrderItemsParams) (int64, error) {
	result, err := q.db.Exec(ctx, moveOrderItems, arg.ToOrderID, arg.Ids, arg.FromOrderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markOrderItemsPaid = `-- name: MarkOrderItemsPaid :execrows
UPDATE order_items SET paid_at = now()
WHERE id = ANY($1::uuid[]) AND paid_at IS NULL
`

func (q *Queries) MarkOrderItemsPaid(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markOrderItemsPaid, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getItemOrderID = `-- name: GetItemOrderID :one
SELECT oi.order_id
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.id = $1 AND o.guest_id = $2
`

type GetItemOrderIDParams struct {
	ID      uuid.UUID `json:"id"`
	GuestID string    `json:"guest_id"`
}

// GetItemOrderID finds which of the guest's orders currently holds the item.
func (q *Queries) GetItemOrderID(ctx context.Context, arg GetItemOrderIDParams) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := q.db.QueryRow(ctx, getItemOrderID, arg.ID, arg.GuestID).Scan(&orderID)
	return orderID, err
}
