package service

import (
	"context"
	"testing"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/carehub-id/api/internal/outbox"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mixedCart builds a cart with 2x paracetamol (payable) and one amoxicillin
// that still needs a prescription, both set up for pickup.
func mixedCart(t *testing.T, h *harness) (otcID, rxID uuid.UUID) {
	t.Helper()
	otcID = h.add(t, "paracetamol", pharmacyA, 2)
	rxID = h.add(t, "amoxicillin", pharmacyA, 1)
	h.fulfil(t, otcID, enum.DeliveryMethodPickup)
	h.fulfil(t, rxID, enum.DeliveryMethodPickup)
	return otcID, rxID
}

func TestEligibility_RefreshesDocumentStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, rxID := mixedCart(t, h)
	cart := h.cart(t)

	_, elig, err := h.checkout.Eligibility(ctx, guest, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), elig.PayableTotal)

	h.store.setPrescription(rxID, enum.PrescriptionStatusPending)
	h.docs.statuses["amoxicillin"] = domain.DocumentStatus{Status: enum.PrescriptionStatusVerified}

	order, elig, err := h.checkout.Eligibility(ctx, guest, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), elig.PayableTotal)
	item, _ := order.FindItem(rxID)
	assert.Equal(t, enum.PrescriptionStatusVerified, item.PrescriptionState())
}

func TestEligibility_RejectedDecisionIsFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, rxID := mixedCart(t, h)
	cart := h.cart(t)

	h.store.setPrescription(rxID, enum.PrescriptionStatusRejected)
	h.docs.statuses["amoxicillin"] = domain.DocumentStatus{Status: enum.PrescriptionStatusVerified}

	_, elig, err := h.checkout.Eligibility(ctx, guest, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), elig.PayableTotal)
	assert.Equal(t, []uuid.UUID{rxID}, elig.NeedsDocument())
}

func TestPartialCheckout_SplitsPayableItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	otcID, rxID := mixedCart(t, h)
	source := h.cart(t)

	res, err := h.checkout.PartialCheckout(ctx, guest, source.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{otcID}, res.MovedItemIDs)
	assert.Equal(t, int64(3000), res.MovedTotal)
	assert.False(t, res.SourceDeleted)

	newOrder, err := h.orders.GetOrder(ctx, guest, res.NewOrderID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCart, newOrder.Status)
	require.NotNil(t, newOrder.ParentOrderID)
	assert.Equal(t, source.ID, *newOrder.ParentOrderID)
	_, ok := newOrder.FindItem(otcID)
	assert.True(t, ok)

	rest, err := h.orders.GetOrder(ctx, guest, source.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPendingPrescription, rest.Status)
	_, ok = rest.FindItem(rxID)
	assert.True(t, ok)
	assert.Equal(t, 1, rest.ItemCount())

	// No item lost or duplicated; the cart is now the split-off order.
	assert.Equal(t, source.Total(), newOrder.Total()+rest.Total())
	assert.Equal(t, res.NewOrderID, h.cart(t).ID)

	assert.Equal(t, []string{outbox.EventOrderSplit}, h.store.events())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PartialCheckouts))
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, notification{guestID: guest, event: outbox.EventOrderSplit}, h.notifier.sent[0])
}

func TestPartialCheckout_NothingPayable(t *testing.T) {
	h := newHarness(t)
	h.add(t, "amoxicillin", pharmacyA, 1)
	cart := h.cart(t)

	_, err := h.checkout.PartialCheckout(context.Background(), guest, cart.ID)
	require.ErrorIs(t, err, domain.ErrNoEligibleItems)
	assert.Equal(t, enum.OrderStatusCart, h.cart(t).Status)
	assert.Len(t, h.store.orders, 1)
	assert.Empty(t, h.store.events())
}

func TestPartialCheckout_AllPayableDeletesSource(t *testing.T) {
	h := newHarness(t)
	h.add(t, "paracetamol", pharmacyA, 1)
	h.add(t, "blood-panel", labC, 1)
	source := h.cart(t)

	res, err := h.checkout.PartialCheckout(context.Background(), guest, source.ID)
	require.NoError(t, err)
	assert.True(t, res.SourceDeleted)
	assert.Len(t, h.store.orders, 1)

	cart := h.cart(t)
	assert.Equal(t, res.NewOrderID, cart.ID)
	assert.Equal(t, 2, cart.ItemCount())
	assert.Equal(t, source.Total(), cart.Total())
}

func TestPartialCheckout_UnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.checkout.PartialCheckout(context.Background(), guest, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitCheckout_Validation(t *testing.T) {
	h := newHarness(t)
	mixedCart(t, h)
	cart := h.cart(t)

	customer := pickupCustomer()
	customer.Name = ""
	customer.Email = "not-an-email"
	_, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: customer})
	require.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
}

func TestSubmitCheckout_DeliveryNeedsAddress(t *testing.T) {
	h := newHarness(t)
	mixedCart(t, h)
	cart := h.cart(t)

	customer := pickupCustomer()
	customer.DeliveryMethod = enum.DeliveryMethodDelivery
	_, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: customer})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "address")
}

func TestSubmitCheckout_RequiresFulfillment(t *testing.T) {
	h := newHarness(t)
	h.add(t, "paracetamol", pharmacyA, 1)
	cart := h.cart(t)

	_, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer()})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, h.store.txns)
}

func TestSubmitCheckout_IncompatibleDeliveryMethod(t *testing.T) {
	h := newHarness(t)
	lab := h.add(t, "blood-panel", labC, 1)
	h.fulfil(t, lab, enum.DeliveryMethodLabVisit)
	cart := h.cart(t)

	_, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer()})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "delivery_method")
}

func TestSubmitCheckout_DocumentRequired(t *testing.T) {
	h := newHarness(t)
	mixedCart(t, h)
	cart := h.cart(t)

	_, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer()})
	require.ErrorIs(t, err, domain.ErrDocumentRequired)
	assert.Empty(t, h.store.txns)
	assert.Equal(t, enum.OrderStatusCart, h.cart(t).Status)
}

func TestSubmitCheckout_MixedCartPaysWhatIsReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	otcID, rxID := mixedCart(t, h)
	cart := h.cart(t)

	res, err := h.checkout.SubmitCheckout(ctx, SubmitCheckoutRequest{
		GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer(), DocumentRef: "uploads/rx-1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPartiallyCompleted, res.OrderStatus)
	assert.NotEmpty(t, res.TransactionReference)
	assert.NotEmpty(t, res.CheckoutSessionID)
	assert.Equal(t, int64(3000), res.PayableTotal)
	assert.Equal(t, "siti@example.com", res.PayerContact)
	require.Len(t, res.PaymentReferences, 1)
	assert.Equal(t, []uuid.UUID{otcID}, res.PaymentReferences[0].ItemIDs)

	require.Len(t, h.docs.attached, 1)
	assert.Equal(t, rxID, h.docs.attached[0].ItemID)

	order, err := h.orders.GetOrder(ctx, guest, cart.ID)
	require.NoError(t, err)
	item, _ := order.FindItem(rxID)
	assert.Equal(t, enum.PrescriptionStatusPending, item.PrescriptionState())
	require.NotNil(t, order.CustomerName)
	assert.Equal(t, "Siti", *order.CustomerName)

	assert.Equal(t, []string{outbox.EventPaymentRequested, outbox.EventCheckoutSubmitted}, h.store.events())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CheckoutSubmissions.WithLabelValues("payment_requested")))

	// The order is locked until the payment settles.
	_, err = h.orders.SetQuantity(ctx, guest, otcID, 5)
	require.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	_, err = h.checkout.SubmitCheckout(ctx, SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer()})
	require.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}

func TestSubmitCheckout_NothingPayableWaits(t *testing.T) {
	h := newHarness(t)
	rxID := h.add(t, "amoxicillin", pharmacyA, 1)
	h.fulfil(t, rxID, enum.DeliveryMethodPickup)
	cart := h.cart(t)

	res, err := h.checkout.SubmitCheckout(context.Background(), SubmitCheckoutRequest{
		GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer(), DocumentRef: "uploads/rx-1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPendingPrescription, res.OrderStatus)
	assert.Empty(t, res.TransactionReference)
	assert.Empty(t, h.store.txns)
	assert.Equal(t, []string{outbox.EventCheckoutSubmitted}, h.store.events())
}

func TestGetCheckoutSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	otcID := h.add(t, "paracetamol", pharmacyA, 1)
	h.fulfil(t, otcID, enum.DeliveryMethodPickup)
	cart := h.cart(t)

	res, err := h.checkout.SubmitCheckout(ctx, SubmitCheckoutRequest{GuestID: guest, OrderID: cart.ID, Customer: pickupCustomer()})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusConfirmed, res.OrderStatus)

	sess, err := h.checkout.GetCheckoutSession(ctx, res.CheckoutSessionID)
	require.NoError(t, err)
	assert.Equal(t, res.TransactionReference, sess.TransactionReference)
	assert.Equal(t, enum.TransactionStatusPending, sess.Status)
	require.Len(t, sess.Orders, 1)
	assert.Equal(t, cart.ID, sess.Orders[0].ID)

	_, err = h.checkout.GetCheckoutSession(ctx, res.CheckoutSessionID+"x")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
