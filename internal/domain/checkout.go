package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomerInfo is the contact and delivery data collected at checkout.
type CustomerInfo struct {
	Name           string `json:"name" validate:"required,max=120"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,e164"`
	DeliveryMethod string `json:"delivery_method" validate:"required,oneof=pickup delivery lab_visit home_collection"`
	Address        string `json:"address" validate:"required_if=DeliveryMethod delivery,required_if=DeliveryMethod home_collection,max=500"`
}

// Contact returns the preferred contact channel.
func (c CustomerInfo) Contact() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Phone
}

// PaymentReference is the part of a transaction that pays for one order.
type PaymentReference struct {
	Reference string
	OrderID   uuid.UUID
	Amount    int64
	ItemIDs   []uuid.UUID
	Status    string
}

// CheckoutResult is handed back to the caller, which drives the payment
// gateway with it. TransactionReference is empty when nothing is payable.
type CheckoutResult struct {
	TransactionReference string
	PaymentReferences    []PaymentReference
	CheckoutSessionID    string
	PayableTotal         int64
	PayerContact         string
	OrderStatus          string
}

// StatusChange records one order moving between statuses.
type StatusChange struct {
	OrderID uuid.UUID `json:"order_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

// ReconcileResult is the outcome of applying a payment callback. It is
// stored with the transaction and returned verbatim on replays.
type ReconcileResult struct {
	TransactionReference string         `json:"transaction_reference"`
	Outcome              string         `json:"outcome"`
	Status               string         `json:"status"`
	Changes              []StatusChange `json:"changes"`
	ReconciledAt         time.Time      `json:"reconciled_at"`
	Replayed             bool           `json:"-"`
}

// Offer is one provider's listing of a service in the catalog.
type Offer struct {
	ServiceID            string
	ServiceName          string
	ServiceType          string
	PrescriptionRequired bool
	ProviderID           string
	ProviderName         string
	ProviderAddress      *string
	Price                int64
	DistanceKM           *float64
	Availability         string
}

// Slot is a bookable start time.
type Slot struct {
	Start        time.Time `json:"start"`
	Availability string    `json:"availability"`
}

// DocumentStatus is the verification state reported by the document store.
type DocumentStatus struct {
	Status       string
	RejectReason *string
}

// Attachment is the document store's receipt for an upload.
type Attachment struct {
	PrescriptionID string
	Status         string
}

// SlotQuery identifies the schedule of one diagnostic service at one
// provider on one day.
type SlotQuery struct {
	ProviderID      string
	ServiceID       string
	FulfillmentType string
	Date            time.Time
}

// AttachRequest hands an uploaded document to the document store for the
// given item.
type AttachRequest struct {
	GuestID   string
	ItemID    uuid.UUID
	ServiceID string
	FileRef   string
	Contact   string
}
