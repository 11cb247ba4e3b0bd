package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createPrescription = `-- name: CreatePrescription :one
INSERT INTO prescriptions (order_item_id, status, file_ref, external_id)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, status, reject_reason, file_ref, external_id, uploaded_at
`

type CreatePrescriptionParams struct {
	OrderItemID uuid.UUID   `json:"order_item_id"`
	Status      string      `json:"status"`
	FileRef     string      `json:"file_ref"`
	ExternalID  pgtype.Text `json:"external_id"`
}

func (q *Queries) CreatePrescription(ctx context.Context, arg CreatePrescriptionParams) (Prescription, error) {
	row := q.db.QueryRow(ctx, createPrescription,
		arg.OrderItemID,
		arg.Status,
		arg.FileRef,
		arg.ExternalID,
	)
	var i Prescription
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.Status,
		&i.RejectReason,
		&i.FileRef,
		&i.ExternalID,
		&i.UploadedAt,
	)
	return i, err
}

const listPrescriptionsByOrders = `-- name: ListPrescriptionsByOrders :many
SELECT p.id, p.order_item_id, p.status, p.reject_reason, p.file_ref, p.external_id, p.uploaded_at
FROM prescriptions p
JOIN order_items oi ON oi.id = p.order_item_id
WHERE oi.order_id = ANY($1::uuid[])
ORDER BY p.uploaded_at, p.id
`

func (q *Queries) ListPrescriptionsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]Prescription, error) {
	rows, err := q.db.Query(ctx, listPrescriptionsByOrders, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Prescription{}
	for rows.Next() {
		var i Prescription
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.Status,
			&i.RejectReason,
			&i.FileRef,
			&i.ExternalID,
			&i.UploadedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const refreshPrescriptionStatus = `-- name: RefreshPrescriptionStatus :execrows
UPDATE prescriptions p SET status = $3, reject_reason = $4
FROM order_items oi
WHERE oi.id = p.order_item_id
  AND oi.order_id = $1
  AND oi.service_id = $2
  AND p.status = 'pending'
`

type RefreshPrescriptionStatusParams struct {
	OrderID      uuid.UUID   `json:"order_id"`
	ServiceID    string      `json:"service_id"`
	Status       string      `json:"status"`
	RejectReason pgtype.Text `json:"reject_reason"`
}

// RefreshPrescriptionStatus applies a document store decision to the
// documents of an order still under review. Decided documents are final.
func (q *Queries) RefreshPrescriptionStatus(ctx context.Context, arg RefreshPrescriptionStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, refreshPrescriptionStatus,
		arg.OrderID,
		arg.ServiceID,
		arg.Status,
		arg.RejectReason,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
