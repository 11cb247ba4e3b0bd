package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CheckoutTransaction struct {
	Reference    string             `json:"reference"`
	GuestID      string             `json:"guest_id"`
	SessionID    string             `json:"session_id"`
	PayableTotal int64              `json:"payable_total"`
	PayerContact string             `json:"payer_contact"`
	Status       string             `json:"status"`
	Result       []byte             `json:"result"`
	CreatedAt    time.Time          `json:"created_at"`
	ReconciledAt pgtype.Timestamptz `json:"reconciled_at"`
}

type Order struct {
	ID             uuid.UUID   `json:"id"`
	GuestID        string      `json:"guest_id"`
	UserID         pgtype.Text `json:"user_id"`
	Status         string      `json:"status"`
	DeliveryMethod pgtype.Text `json:"delivery_method"`
	Address        pgtype.Text `json:"address"`
	CustomerName   pgtype.Text `json:"customer_name"`
	CustomerEmail  pgtype.Text `json:"customer_email"`
	CustomerPhone  pgtype.Text `json:"customer_phone"`
	ParentOrderID  pgtype.UUID `json:"parent_order_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID                   uuid.UUID          `json:"id"`
	OrderID              uuid.UUID          `json:"order_id"`
	Position             int64              `json:"position"`
	ServiceID            string             `json:"service_id"`
	ServiceName          string             `json:"service_name"`
	ServiceType          string             `json:"service_type"`
	ProviderID           string             `json:"provider_id"`
	ProviderName         string             `json:"provider_name"`
	ProviderAddress      pgtype.Text        `json:"provider_address"`
	Quantity             int32              `json:"quantity"`
	UnitPrice            int64              `json:"unit_price"`
	PrescriptionRequired bool               `json:"prescription_required"`
	FulfillmentMethod    pgtype.Text        `json:"fulfillment_method"`
	TimeSlotStart        pgtype.Timestamptz `json:"time_slot_start"`
	PaidAt               pgtype.Timestamptz `json:"paid_at"`
	CreatedAt            time.Time          `json:"created_at"`
}

type Outbox struct {
	ID        int64              `json:"id"`
	EventID   string             `json:"event_id"`
	Topic     string             `json:"topic"`
	Key       string             `json:"key"`
	Payload   []byte             `json:"payload"`
	CreatedAt time.Time          `json:"created_at"`
	SentAt    pgtype.Timestamptz `json:"sent_at"`
}

type PaymentReference struct {
	Reference            string      `json:"reference"`
	TransactionReference string      `json:"transaction_reference"`
	OrderID              uuid.UUID   `json:"order_id"`
	Amount               int64       `json:"amount"`
	ItemIds              []uuid.UUID `json:"item_ids"`
	Status               string      `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}

type Prescription struct {
	ID           uuid.UUID   `json:"id"`
	OrderItemID  uuid.UUID   `json:"order_item_id"`
	Status       string      `json:"status"`
	RejectReason pgtype.Text `json:"reject_reason"`
	FileRef      string      `json:"file_ref"`
	ExternalID   pgtype.Text `json:"external_id"`
	UploadedAt   time.Time   `json:"uploaded_at"`
}

type SlotBooking struct {
	ID          uuid.UUID `json:"id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	ProviderID  string    `json:"provider_id"`
	ServiceID   string    `json:"service_id"`
	SlotStart   time.Time `json:"slot_start"`
	CreatedAt   time.Time `json:"created_at"`
}
