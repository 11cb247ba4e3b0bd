package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// AddItemRequest is the validated input for adding an item to the cart.
type AddItemRequest struct {
	GuestID     string
	UserID      string
	ServiceID   string
	ProviderID  string
	ServiceType string
	Quantity    int32
}

// OrderService owns cart contents: adding, removing and editing items, and
// the read views over a guest's orders.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	catalog  Catalog
	slots    *SlotResolver
	env      Env
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, catalog Catalog, slots *SlotResolver, env Env) *OrderService {
	return &OrderService{
		pool:     pool,
		newStore: newStore,
		catalog:  catalog,
		slots:    slots,
		env:      env.withDefaults(),
	}
}

// AddItem appends an item to the guest's cart, creating the cart on first
// use. The unit price and provider details are copied from the catalog offer
// at this moment and never re-read.
func (s *OrderService) AddItem(ctx context.Context, req AddItemRequest) (domain.Order, error) {
	if req.GuestID == "" {
		return domain.Order{}, domain.NewValidationError("guest_id", "is required")
	}
	if req.ServiceID == "" || req.ProviderID == "" {
		return domain.Order{}, fmt.Errorf("service_id and provider_id are required: %w", domain.ErrInvalidReference)
	}
	if req.ServiceType != "" && !domain.IsValidServiceType(req.ServiceType) {
		return domain.Order{}, domain.NewValidationError("service_type", "must be medication, diagnostic or diagnostic_package")
	}

	offer, err := s.resolveOffer(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}

	qty := req.Quantity
	if offer.ServiceType != enum.ServiceTypeMedication {
		qty = 1
	} else if qty < 1 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}

	order, err := inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Order, error) {
		cart, err := store.GetCartForUpdate(ctx, req.GuestID)
		if errors.Is(err, pgx.ErrNoRows) {
			cart, err = store.CreateOrder(ctx, database.CreateOrderParams{
				GuestID: req.GuestID,
				UserID:  text(req.UserID),
				Status:  enum.OrderStatusCart,
			})
			if err != nil {
				return domain.Order{}, fmt.Errorf("create cart: %w", err)
			}
		} else if err != nil {
			return domain.Order{}, fmt.Errorf("get cart: %w", err)
		}

		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:              cart.ID,
			ServiceID:            offer.ServiceID,
			ServiceName:          offer.ServiceName,
			ServiceType:          offer.ServiceType,
			ProviderID:           offer.ProviderID,
			ProviderName:         offer.ProviderName,
			ProviderAddress:      textFromPtr(offer.ProviderAddress),
			Quantity:             qty,
			UnitPrice:            offer.Price,
			PrescriptionRequired: offer.PrescriptionRequired,
		}); err != nil {
			return domain.Order{}, fmt.Errorf("create order item: %w", err)
		}

		return loadOrder(ctx, store, cart)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.env.Logger.Info("item added",
		zap.String("guest_id", req.GuestID),
		zap.String("order_id", order.ID.String()),
		zap.String("service_id", offer.ServiceID),
		zap.String("provider_id", offer.ProviderID),
	)
	return order, nil
}

func (s *OrderService) resolveOffer(ctx context.Context, req AddItemRequest) (domain.Offer, error) {
	offers, err := s.catalog.Lookup(ctx, req.ServiceID)
	if err != nil {
		return domain.Offer{}, fmt.Errorf("catalog lookup: %w", err)
	}
	for _, o := range offers {
		if o.ProviderID != req.ProviderID {
			continue
		}
		if req.ServiceType != "" && o.ServiceType != req.ServiceType {
			return domain.Offer{}, fmt.Errorf("service %s is a %s: %w", req.ServiceID, o.ServiceType, domain.ErrInvalidReference)
		}
		return o, nil
	}
	return domain.Offer{}, fmt.Errorf("provider %s does not offer %s: %w", req.ProviderID, req.ServiceID, domain.ErrInvalidReference)
}

// RemoveItem deletes an item. An order left without items is deleted with
// it, in which case the returned order is nil. Removing an item twice fails
// with ErrNotFound the second time.
func (s *OrderService) RemoveItem(ctx context.Context, guestID string, itemID uuid.UUID) (*domain.Order, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (*domain.Order, error) {
		order, _, err := lockItemOrder(ctx, store, guestID, itemID)
		if err != nil {
			return nil, err
		}

		n, err := store.DeleteOrderItem(ctx, database.DeleteOrderItemParams{ID: itemID, OrderID: order.ID})
		if err != nil {
			return nil, fmt.Errorf("delete order item: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
		}

		if order.ItemCount() == 1 {
			if err := store.DeleteOrder(ctx, order.ID); err != nil {
				return nil, fmt.Errorf("delete empty order: %w", err)
			}
			return nil, nil
		}

		row, err := store.GetOrder(ctx, database.GetOrderParams{ID: order.ID, GuestID: guestID})
		if err != nil {
			return nil, notFound(err, "order")
		}
		updated, err := loadOrder(ctx, store, row)
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
}

// SetQuantity changes a medication's quantity. Diagnostics reject every
// call, whatever the quantity, so the item is loaded before qty is checked.
func (s *OrderService) SetQuantity(ctx context.Context, guestID string, itemID uuid.UUID, qty int32) (domain.Order, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Order, error) {
		order, item, err := lockItemOrder(ctx, store, guestID, itemID)
		if err != nil {
			return domain.Order{}, err
		}
		if item.IsDiagnostic() {
			return domain.Order{}, fmt.Errorf("quantity of a %s is fixed: %w", item.ServiceType, domain.ErrUnsupportedOperation)
		}
		if qty < 1 {
			return domain.Order{}, domain.ErrInvalidQuantity
		}

		if _, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{ID: itemID, Quantity: qty}); err != nil {
			return domain.Order{}, fmt.Errorf("update quantity: %w", err)
		}
		return reloadOrder(ctx, store, guestID, order.ID)
	})
}

// SetFulfillmentDetail records how an item is fulfilled. For diagnostics a
// slot may be given; it is re-checked against the schedule and claimed
// exclusively, so two items can never hold the same slot.
func (s *OrderService) SetFulfillmentDetail(ctx context.Context, guestID string, itemID uuid.UUID, method string, slotStart *time.Time) (domain.Order, error) {
	current, err := s.findItem(ctx, guestID, itemID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkFulfillment(current, method, slotStart); err != nil {
		return domain.Order{}, err
	}

	// The schedule is consulted outside the transaction; the unique slot
	// index is what finally decides a race between two claims.
	if slotStart != nil {
		q := domain.SlotQuery{
			ProviderID:      current.Provider.ID,
			ServiceID:       current.ServiceID,
			FulfillmentType: method,
		}
		if err := s.slots.Confirm(ctx, q, *slotStart, itemID); err != nil {
			return domain.Order{}, err
		}
	}

	order, err := inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Order, error) {
		order, item, err := lockItemOrder(ctx, store, guestID, itemID)
		if err != nil {
			return domain.Order{}, err
		}
		if item.Provider.ID != current.Provider.ID || item.ServiceID != current.ServiceID {
			return domain.Order{}, fmt.Errorf("item %s changed: %w", itemID, domain.ErrConflictRetry)
		}

		if err := store.DeleteSlotBookingByItem(ctx, itemID); err != nil {
			return domain.Order{}, fmt.Errorf("release slot: %w", err)
		}
		if slotStart != nil {
			if _, err := store.CreateSlotBooking(ctx, database.CreateSlotBookingParams{
				OrderItemID: itemID,
				ProviderID:  item.Provider.ID,
				ServiceID:   item.ServiceID,
				SlotStart:   *slotStart,
			}); err != nil {
				return domain.Order{}, fmt.Errorf("claim slot: %w", err)
			}
		}

		if _, err := store.UpdateOrderItemFulfillment(ctx, database.UpdateOrderItemFulfillmentParams{
			ID:                itemID,
			FulfillmentMethod: text(method),
			TimeSlotStart:     timestamptz(slotStart),
		}); err != nil {
			return domain.Order{}, fmt.Errorf("update fulfillment: %w", err)
		}
		return reloadOrder(ctx, store, guestID, order.ID)
	})
	if err != nil {
		return domain.Order{}, err
	}

	if slotStart != nil {
		s.env.Logger.Info("slot claimed",
			zap.String("order_id", order.ID.String()),
			zap.String("item_id", itemID.String()),
			zap.Time("slot_start", *slotStart),
		)
	}
	return order, nil
}

func checkFulfillment(item domain.Item, method string, slotStart *time.Time) error {
	if !domain.ValidFulfillment(item.ServiceType, method) {
		return domain.NewValidationError("fulfillment_method", fmt.Sprintf("%q is not available for %s", method, item.ServiceType))
	}
	if domain.IsOnSite(method) && item.Provider.Address == nil {
		return domain.NewValidationError("fulfillment_method", "provider has no address for on-site fulfillment")
	}
	if slotStart != nil && !item.IsDiagnostic() {
		return fmt.Errorf("time slots apply to diagnostics only: %w", domain.ErrUnsupportedOperation)
	}
	return nil
}

// GetCart returns the guest's cart, or ErrNotFound when there is none.
func (s *OrderService) GetCart(ctx context.Context, guestID string) (domain.Order, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Order, error) {
		row, err := store.GetCart(ctx, guestID)
		if err != nil {
			return domain.Order{}, notFound(err, "cart")
		}
		return loadOrder(ctx, store, row)
	})
}

// GetOrder returns one of the guest's orders.
func (s *OrderService) GetOrder(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Order, error) {
		return reloadOrder(ctx, store, guestID, orderID)
	})
}

// ListOrders returns the guest's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, guestID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) ([]domain.Order, error) {
		rows, err := store.ListOrdersByGuest(ctx, database.ListOrdersByGuestParams{
			GuestID: guestID,
			Limit:   int32(limit),
			Offset:  int32(offset),
		})
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		return loadOrders(ctx, store, rows)
	})
}

func (s *OrderService) findItem(ctx context.Context, guestID string, itemID uuid.UUID) (domain.Item, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store OrderStore) (domain.Item, error) {
		orderID, err := store.GetItemOrderID(ctx, database.GetItemOrderIDParams{ID: itemID, GuestID: guestID})
		if err != nil {
			return domain.Item{}, notFound(err, "item")
		}
		order, err := reloadOrder(ctx, store, guestID, orderID)
		if err != nil {
			return domain.Item{}, err
		}
		item, ok := order.FindItem(itemID)
		if !ok {
			return domain.Item{}, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
		}
		return item, nil
	})
}

// lockItemOrder locks the order holding the item and checks the item may
// still be edited: the order is open, no payment for it is in flight, and
// the item itself is not paid.
func lockItemOrder(ctx context.Context, store OrderStore, guestID string, itemID uuid.UUID) (domain.Order, domain.Item, error) {
	orderID, err := store.GetItemOrderID(ctx, database.GetItemOrderIDParams{ID: itemID, GuestID: guestID})
	if err != nil {
		return domain.Order{}, domain.Item{}, notFound(err, "item")
	}

	row, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, GuestID: guestID})
	if errors.Is(err, pgx.ErrNoRows) {
		// Deleted between lookup and lock; the retry sees the outcome.
		return domain.Order{}, domain.Item{}, fmt.Errorf("order %s vanished: %w", orderID, domain.ErrConflictRetry)
	}
	if err != nil {
		return domain.Order{}, domain.Item{}, fmt.Errorf("lock order: %w", err)
	}

	order, err := loadOrder(ctx, store, row)
	if err != nil {
		return domain.Order{}, domain.Item{}, err
	}
	item, ok := order.FindItem(itemID)
	if !ok {
		return domain.Order{}, domain.Item{}, fmt.Errorf("item %s moved: %w", itemID, domain.ErrConflictRetry)
	}

	if !domain.IsMutable(order.Status) {
		return domain.Order{}, domain.Item{}, fmt.Errorf("order is %s: %w", order.Status, domain.ErrUnsupportedOperation)
	}
	if item.IsPaid() {
		return domain.Order{}, domain.Item{}, fmt.Errorf("item is paid: %w", domain.ErrUnsupportedOperation)
	}
	pending, err := store.CountPendingPaymentReferences(ctx, order.ID)
	if err != nil {
		return domain.Order{}, domain.Item{}, fmt.Errorf("count pending payments: %w", err)
	}
	if pending > 0 {
		return domain.Order{}, domain.Item{}, fmt.Errorf("payment in progress: %w", domain.ErrUnsupportedOperation)
	}
	return order, item, nil
}

func reloadOrder(ctx context.Context, store interface {
	orderReader
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
}, guestID string, orderID uuid.UUID) (domain.Order, error) {
	row, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, GuestID: guestID})
	if err != nil {
		return domain.Order{}, notFound(err, "order")
	}
	return loadOrder(ctx, store, row)
}
