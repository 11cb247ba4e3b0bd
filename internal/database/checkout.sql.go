package database

import (
	"context"

	"github.com/google/uuid"
)

const checkoutTransactionColumns = `reference, guest_id, session_id, payable_total, payer_contact, status, result, created_at, reconciled_at`

func scanCheckoutTransaction(row interface{ Scan(...interface{}) error }) (CheckoutTransaction, error) {
	var i CheckoutTransaction
	err := row.Scan(
		&i.Reference,
		&i.GuestID,
		&i.SessionID,
		&i.PayableTotal,
		&i.PayerContact,
		&i.Status,
		&i.Result,
		&i.CreatedAt,
		&i.ReconciledAt,
	)
	return i, err
}

const createCheckoutTransaction = `-- name: CreateCheckoutTransaction :one
INSERT INTO checkout_transactions (reference, guest_id, session_id, payable_total, payer_contact)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + checkoutTransactionColumns

type CreateCheckoutTransactionParams struct {
	Reference    string `json:"reference"`
	GuestID      string `json:"guest_id"`
	SessionID    string `json:"session_id"`
	PayableTotal int64  `json:"payable_total"`
	PayerContact string `json:"payer_contact"`
}

func (q *Queries) CreateCheckoutTransaction(ctx context.Context, arg CreateCheckoutTransactionParams) (CheckoutTransaction, error) {
	row := q.db.QueryRow(ctx, createCheckoutTransaction,
		arg.Reference,
		arg.GuestID,
		arg.SessionID,
		arg.PayableTotal,
		arg.PayerContact,
	)
	return scanCheckoutTransaction(row)
}

const getCheckoutTransaction = `-- name: GetCheckoutTransaction :one
SELECT ` + checkoutTransactionColumns + `
FROM checkout_transactions
WHERE reference = $1
`

func (q *Queries) GetCheckoutTransaction(ctx context.Context, reference string) (CheckoutTransaction, error) {
	return scanCheckoutTransaction(q.db.QueryRow(ctx, getCheckoutTransaction, reference))
}

const getCheckoutTransactionForUpdate = `-- name: GetCheckoutTransactionForUpdate :one
SELECT ` + checkoutTransactionColumns + `
FROM checkout_transactions
WHERE reference = $1
FOR UPDATE
`

func (q *Queries) GetCheckoutTransactionForUpdate(ctx context.Context, reference string) (CheckoutTransaction, error) {
	return scanCheckoutTransaction(q.db.QueryRow(ctx, getCheckoutTransactionForUpdate, reference))
}

const completeCheckoutTransaction = `-- name: CompleteCheckoutTransaction :one
UPDATE checkout_transactions
SET status = $2, result = $3, reconciled_at = now()
WHERE reference = $1 AND status = 'pending'
RETURNING ` + checkoutTransactionColumns

type CompleteCheckoutTransactionParams struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Result    []byte `json:"result"`
}

func (q *Queries) CompleteCheckoutTransaction(ctx context.Context, arg CompleteCheckoutTransactionParams) (CheckoutTransaction, error) {
	return scanCheckoutTransaction(q.db.QueryRow(ctx, completeCheckoutTransaction, arg.Reference, arg.Status, arg.Result))
}

const paymentReferenceColumns = `reference, transaction_reference, order_id, amount, item_ids, status, created_at`

func scanPaymentReference(row interface{ Scan(...interface{}) error }) (PaymentReference, error) {
	var i PaymentReference
	err := row.Scan(
		&i.Reference,
		&i.TransactionReference,
		&i.OrderID,
		&i.Amount,
		&i.ItemIds,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const createPaymentReference = `-- name: CreatePaymentReference :one
INSERT INTO payment_references (reference, transaction_reference, order_id, amount, item_ids)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + paymentReferenceColumns

type CreatePaymentReferenceParams struct {
	Reference            string      `json:"reference"`
	TransactionReference string      `json:"transaction_reference"`
	OrderID              uuid.UUID   `json:"order_id"`
	Amount               int64       `json:"amount"`
	ItemIds              []uuid.UUID `json:"item_ids"`
}

func (q *Queries) CreatePaymentReference(ctx context.Context, arg CreatePaymentReferenceParams) (PaymentReference, error) {
	row := q.db.QueryRow(ctx, createPaymentReference,
		arg.Reference,
		arg.TransactionReference,
		arg.OrderID,
		arg.Amount,
		arg.ItemIds,
	)
	return scanPaymentReference(row)
}

const listPaymentReferencesByTransaction = `-- name: ListPaymentReferencesByTransaction :many
SELECT ` + paymentReferenceColumns + `
FROM payment_references
WHERE transaction_reference = $1
ORDER BY order_id
`

func (q *Queries) ListPaymentReferencesByTransaction(ctx context.Context, transactionReference string) ([]PaymentReference, error) {
	rows, err := q.db.Query(ctx, listPaymentReferencesByTransaction, transactionReference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PaymentReference{}
	for rows.Next() {
		i, err := scanPaymentReference(rows)
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

const getLatestPaymentReference = `-- name: GetLatestPaymentReference :one
SELECT ` + paymentReferenceColumns + `
FROM payment_references
WHERE order_id = $1
ORDER BY created_at DESC, reference DESC
LIMIT 1
`

func (q *Queries) GetLatestPaymentReference(ctx context.Context, orderID uuid.UUID) (PaymentReference, error) {
	return scanPaymentReference(q.db.QueryRow(ctx, getLatestPaymentReference, orderID))
}

const countPendingPaymentReferences = `-- name: CountPendingPaymentReferences :one
SELECT count(*) FROM payment_references
WHERE order_id = $1 AND status = 'pending'
`

func (q *Queries) CountPendingPaymentReferences(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countPendingPaymentReferences, orderID).Scan(&count)
	return count, err
}

const markPaymentReferencesPaid = `-- name: MarkPaymentReferencesPaid :execrows
UPDATE payment_references SET status = 'paid'
WHERE transaction_reference = $1 AND status <> 'paid'
`

// MarkPaymentReferencesPaid also settles references that a resumed checkout
// superseded, so a late success for an older attempt is not lost.
func (q *Queries) MarkPaymentReferencesPaid(ctx context.Context, transactionReference string) (int64, error) {
	result, err := q.db.Exec(ctx, markPaymentReferencesPaid, transactionReference)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const failPaymentReferences = `-- name: FailPaymentReferences :execrows
UPDATE payment_references SET status = 'failed'
WHERE transaction_reference = $1 AND status = 'pending'
`

func (q *Queries) FailPaymentReferences(ctx context.Context, transactionReference string) (int64, error) {
	result, err := q.db.Exec(ctx, failPaymentReferences, transactionReference)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const supersedePaymentReferences = `-- name: SupersedePaymentReferences :execrows
UPDATE payment_references SET status = 'failed'
WHERE order_id = ANY($1::uuid[]) AND status = 'pending'
`

func (q *Queries) SupersedePaymentReferences(ctx context.Context, orderIds []uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, supersedePaymentReferences, orderIds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
