package service

import (
	"context"
	"time"

	"github.com/carehub-id/api/internal/auth"
	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/metrics"
	"github.com/carehub-id/api/internal/retry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// orderReader loads the rows an order aggregate is built from.
type orderReader interface {
	ListOrderItemsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.OrderItem, error)
	ListPrescriptionsByOrders(ctx context.Context, orderIds []uuid.UUID) ([]database.Prescription, error)
}

// OrderStore defines the DB methods needed by cart mutations and reads.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	orderReader
	SetLockTimeout(ctx context.Context, timeout string) error
	GetCart(ctx context.Context, guestID string) (database.Order, error)
	GetCartForUpdate(ctx context.Context, guestID string) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	ListOrdersByGuest(ctx context.Context, arg database.ListOrdersByGuestParams) ([]database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetItemOrderID(ctx context.Context, arg database.GetItemOrderIDParams) (uuid.UUID, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) (int64, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	UpdateOrderItemFulfillment(ctx context.Context, arg database.UpdateOrderItemFulfillmentParams) (database.OrderItem, error)
	CountPendingPaymentReferences(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateSlotBooking(ctx context.Context, arg database.CreateSlotBookingParams) (database.SlotBooking, error)
	DeleteSlotBookingByItem(ctx context.Context, orderItemID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CheckoutStore defines the DB methods needed by splitting, checkout and
// payment reconciliation.
type CheckoutStore interface {
	orderReader
	SetLockTimeout(ctx context.Context, timeout string) error
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	LockOrders(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	ListRelatedOrdersForUpdate(ctx context.Context, arg database.ListRelatedOrdersForUpdateParams) ([]database.Order, error)
	ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderCheckout(ctx context.Context, arg database.UpdateOrderCheckoutParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	MoveOrderItems(ctx context.Context, arg database.MoveOrderItemsParams) (int64, error)
	MarkOrderItemsPaid(ctx context.Context, ids []uuid.UUID) (int64, error)
	CreatePrescription(ctx context.Context, arg database.CreatePrescriptionParams) (database.Prescription, error)
	RefreshPrescriptionStatus(ctx context.Context, arg database.RefreshPrescriptionStatusParams) (int64, error)
	CreateCheckoutTransaction(ctx context.Context, arg database.CreateCheckoutTransactionParams) (database.CheckoutTransaction, error)
	GetCheckoutTransaction(ctx context.Context, reference string) (database.CheckoutTransaction, error)
	GetCheckoutTransactionForUpdate(ctx context.Context, reference string) (database.CheckoutTransaction, error)
	CompleteCheckoutTransaction(ctx context.Context, arg database.CompleteCheckoutTransactionParams) (database.CheckoutTransaction, error)
	CreatePaymentReference(ctx context.Context, arg database.CreatePaymentReferenceParams) (database.PaymentReference, error)
	ListPaymentReferencesByTransaction(ctx context.Context, transactionReference string) ([]database.PaymentReference, error)
	GetLatestPaymentReference(ctx context.Context, orderID uuid.UUID) (database.PaymentReference, error)
	CountPendingPaymentReferences(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkPaymentReferencesPaid(ctx context.Context, transactionReference string) (int64, error)
	FailPaymentReferences(ctx context.Context, transactionReference string) (int64, error)
	SupersedePaymentReferences(ctx context.Context, orderIds []uuid.UUID) (int64, error)
	InsertOutboxEvent(ctx context.Context, arg database.InsertOutboxEventParams) error
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// SlotStore reads local slot claims.
type SlotStore interface {
	ListBookedSlots(ctx context.Context, arg database.ListBookedSlotsParams) ([]time.Time, error)
}

// Catalog resolves a service to the providers offering it.
type Catalog interface {
	Lookup(ctx context.Context, serviceID string) ([]domain.Offer, error)
}

// DocumentStore tracks uploaded prescriptions and their verification.
type DocumentStore interface {
	Attach(ctx context.Context, req domain.AttachRequest) (domain.Attachment, error)
	Statuses(ctx context.Context, guestID string, serviceIDs []string) (map[string]domain.DocumentStatus, error)
}

// Schedule is the provider scheduling system.
type Schedule interface {
	Slots(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error)
}

// Notifier pushes live order updates to a guest.
type Notifier interface {
	Notify(guestID, eventType string, payload any)
}

// SessionSigner issues and verifies checkout session ids.
type SessionSigner interface {
	Sign(txnRef, guestID string, orderIDs []uuid.UUID) (string, error)
	Verify(sessionID string) (*auth.Session, error)
}

// Env carries the cross-cutting dependencies every service shares. The zero
// value is usable: nil logger, metrics and notifier are replaced by no-ops.
type Env struct {
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Notifier    Notifier
	LockTimeout time.Duration
	Retry       retry.Config
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Notifier == nil {
		e.Notifier = nopNotifier{}
	}
	return e
}
