package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, guest_id, user_id, status, delivery_method, address, customer_name, customer_email, customer_phone, parent_order_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.GuestID,
		&i.UserID,
		&i.Status,
		&i.DeliveryMethod,
		&i.Address,
		&i.CustomerName,
		&i.CustomerEmail,
		&i.CustomerPhone,
		&i.ParentOrderID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const setLockTimeout = `-- name: SetLockTimeout :one
SELECT set_config('lock_timeout', $1, true)
`

// SetLockTimeout is SET LOCAL lock_timeout for the current transaction.
func (q *Queries) SetLockTimeout(ctx context.Context, timeout string) error {
	var applied string
	return q.db.QueryRow(ctx, setLockTimeout, timeout).Scan(&applied)
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (guest_id, user_id, status, parent_order_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	GuestID       string      `json:"guest_id"`
	UserID        pgtype.Text `json:"user_id"`
	Status        string      `json:"status"`
	ParentOrderID pgtype.UUID `json:"parent_order_id"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.GuestID,
		arg.UserID,
		arg.Status,
		arg.ParentOrderID,
	)
	return scanOrder(row)
}

const getCart = `-- name: GetCart :one
SELECT ` + orderColumns + `
FROM orders
WHERE guest_id = $1 AND status = 'cart'
`

func (q *Queries) GetCart(ctx context.Context, guestID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getCart, guestID))
}

const getCartForUpdate = `-- name: GetCartForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE guest_id = $1 AND status = 'cart'
FOR UPDATE
`

func (q *Queries) GetCartForUpdate(ctx context.Context, guestID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getCartForUpdate, guestID))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND guest_id = $2
`

type GetOrderParams struct {
	ID      uuid.UUID `json:"id"`
	GuestID string    `json:"guest_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.GuestID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND guest_id = $2
FOR UPDATE
`

type GetOrderForUpdateParams struct {
	ID      uuid.UUID `json:"id"`
	GuestID string    `json:"guest_id"`
}

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.GuestID))
}

const lockOrders = `-- name: LockOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE id = ANY($1::uuid[])
ORDER BY id
FOR UPDATE
`

// LockOrders row-locks the given orders in ascending id order.
func (q *Queries) LockOrders(ctx context.Context, ids []uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, lockOrders, ids)
}

const listRelatedOrdersForUpdate = `-- name: ListRelatedOrdersForUpdate :many
WITH target AS (
    SELECT id, parent_order_id FROM orders WHERE id = $1 AND guest_id = $2
)
SELECT ` + orderColumns + `
FROM orders o
WHERE o.guest_id = $2
  AND (
    o.id = (SELECT id FROM target)
    OR o.parent_order_id = (SELECT id FROM target)
    OR o.id = (SELECT parent_order_id FROM target)
    OR o.parent_order_id = (SELECT parent_order_id FROM target)
  )
ORDER BY o.id
FOR UPDATE OF o
`

type ListRelatedOrdersForUpdateParams struct {
	ID      uuid.UUID `json:"id"`
	GuestID string    `json:"guest_id"`
}

// ListRelatedOrdersForUpdate locks an order together with the orders it was
// split from or into.
func (q *Queries) ListRelatedOrdersForUpdate(ctx context.Context, arg ListRelatedOrdersForUpdateParams) ([]Order, error) {
	return q.queryOrders(ctx, listRelatedOrdersForUpdate, arg.ID, arg.GuestID)
}

const listOrdersByGuest = `-- name: ListOrdersByGuest :many
SELECT ` + orderColumns + `
FROM orders
WHERE guest_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

type ListOrdersByGuestParams struct {
	GuestID string `json:"guest_id"`
	Limit   int32  `json:"limit"`
	Offset  int32  `json:"offset"`
}

func (q *Queries) ListOrdersByGuest(ctx context.Context, arg ListOrdersByGuestParams) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersByGuest, arg.GuestID, arg.Limit, arg.Offset)
}

const listOrdersByIDs = `-- name: ListOrdersByIDs :many
SELECT ` + orderColumns + `
FROM orders
WHERE id = ANY($1::uuid[])
ORDER BY id
`

func (q *Queries) ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersByIDs, ids)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const updateOrderCheckout = `-- name: UpdateOrderCheckout :one
UPDATE orders SET
    status = $2,
    delivery_method = $3,
    address = $4,
    customer_name = $5,
    customer_email = $6,
    customer_phone = $7,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderCheckoutParams struct {
	ID             uuid.UUID   `json:"id"`
	Status         string      `json:"status"`
	DeliveryMethod pgtype.Text `json:"delivery_method"`
	Address        pgtype.Text `json:"address"`
	CustomerName   pgtype.Text `json:"customer_name"`
	CustomerEmail  pgtype.Text `json:"customer_email"`
	CustomerPhone  pgtype.Text `json:"customer_phone"`
}

func (q *Queries) UpdateOrderCheckout(ctx context.Context, arg UpdateOrderCheckoutParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderCheckout,
		arg.ID,
		arg.Status,
		arg.DeliveryMethod,
		arg.Address,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
	)
	return scanOrder(row)
}

const deleteOrder = `-- name: DeleteOrder :exec
DELETE FROM orders WHERE id = $1
`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrder, id)
	return err
}
