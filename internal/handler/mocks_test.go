package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/carehub-id/api/internal/service"
	"github.com/google/uuid"
)

const testGuest = "guest-1"

// --- Mock CartServicer ---

type mockCartService struct {
	addItemFn        func(ctx context.Context, req service.AddItemRequest) (domain.Order, error)
	removeItemFn     func(ctx context.Context, guestID string, itemID uuid.UUID) (*domain.Order, error)
	setQuantityFn    func(ctx context.Context, guestID string, itemID uuid.UUID, qty int32) (domain.Order, error)
	setFulfillmentFn func(ctx context.Context, guestID string, itemID uuid.UUID, method string, slot *time.Time) (domain.Order, error)
	getCartFn        func(ctx context.Context, guestID string) (domain.Order, error)
	getOrderFn       func(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error)
	listOrdersFn     func(ctx context.Context, guestID string, limit, offset int) ([]domain.Order, error)
}

func (m *mockCartService) AddItem(ctx context.Context, req service.AddItemRequest) (domain.Order, error) {
	return m.addItemFn(ctx, req)
}

func (m *mockCartService) RemoveItem(ctx context.Context, guestID string, itemID uuid.UUID) (*domain.Order, error) {
	return m.removeItemFn(ctx, guestID, itemID)
}

func (m *mockCartService) SetQuantity(ctx context.Context, guestID string, itemID uuid.UUID, qty int32) (domain.Order, error) {
	return m.setQuantityFn(ctx, guestID, itemID, qty)
}

func (m *mockCartService) SetFulfillmentDetail(ctx context.Context, guestID string, itemID uuid.UUID, method string, slot *time.Time) (domain.Order, error) {
	return m.setFulfillmentFn(ctx, guestID, itemID, method, slot)
}

func (m *mockCartService) GetCart(ctx context.Context, guestID string) (domain.Order, error) {
	return m.getCartFn(ctx, guestID)
}

func (m *mockCartService) GetOrder(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error) {
	return m.getOrderFn(ctx, guestID, orderID)
}

func (m *mockCartService) ListOrders(ctx context.Context, guestID string, limit, offset int) ([]domain.Order, error) {
	return m.listOrdersFn(ctx, guestID, limit, offset)
}

// --- Mock CheckoutServicer ---

type mockCheckoutService struct {
	eligibilityFn func(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, domain.Eligibility, error)
	partialFn     func(ctx context.Context, guestID string, orderID uuid.UUID) (service.SplitResult, error)
	submitFn      func(ctx context.Context, req service.SubmitCheckoutRequest) (domain.CheckoutResult, error)
	resumeFn      func(ctx context.Context, guestID string, orderID uuid.UUID, contact string) (domain.CheckoutResult, error)
	sessionFn     func(ctx context.Context, sessionID string) (service.CheckoutSession, error)
	reconcileFn   func(ctx context.Context, cb service.PaymentCallback) (domain.ReconcileResult, error)
}

func (m *mockCheckoutService) Eligibility(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, domain.Eligibility, error) {
	return m.eligibilityFn(ctx, guestID, orderID)
}

func (m *mockCheckoutService) PartialCheckout(ctx context.Context, guestID string, orderID uuid.UUID) (service.SplitResult, error) {
	return m.partialFn(ctx, guestID, orderID)
}

func (m *mockCheckoutService) SubmitCheckout(ctx context.Context, req service.SubmitCheckoutRequest) (domain.CheckoutResult, error) {
	return m.submitFn(ctx, req)
}

func (m *mockCheckoutService) ResumeCheckout(ctx context.Context, guestID string, orderID uuid.UUID, contact string) (domain.CheckoutResult, error) {
	return m.resumeFn(ctx, guestID, orderID, contact)
}

func (m *mockCheckoutService) GetCheckoutSession(ctx context.Context, sessionID string) (service.CheckoutSession, error) {
	return m.sessionFn(ctx, sessionID)
}

func (m *mockCheckoutService) ReconcilePaymentCallback(ctx context.Context, cb service.PaymentCallback) (domain.ReconcileResult, error) {
	return m.reconcileFn(ctx, cb)
}

// --- Mock SlotServicer ---

type mockSlotService struct {
	slotsFn func(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error)
	rangeFn func(ctx context.Context, q domain.SlotQuery, from time.Time, days int) ([]service.DaySlots, error)
}

func (m *mockSlotService) Slots(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error) {
	return m.slotsFn(ctx, q)
}

func (m *mockSlotService) SlotsForRange(ctx context.Context, q domain.SlotQuery, from time.Time, days int) ([]service.DaySlots, error) {
	return m.rangeFn(ctx, q, from, days)
}

// --- Test helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Guest-ID", testGuest)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Test data ---

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// testOrder has one payable medication at pharmacy A and one diagnostic
// awaiting a prescription at lab C.
func testOrder() domain.Order {
	orderID := uuid.New()
	items := []domain.Item{
		{
			ID:          uuid.New(),
			OrderID:     orderID,
			ServiceID:   "paracetamol",
			ServiceName: "Paracetamol 500mg",
			ServiceType: enum.ServiceTypeMedication,
			Provider:    domain.Provider{ID: "pharmacy-a", Name: "Pharmacy A", Address: strPtr("Jl. Sudirman 1")},
			Quantity:    2,
			UnitPrice:   1500,
			AddedAt:     testTime,
		},
		{
			ID:                   uuid.New(),
			OrderID:              orderID,
			ServiceID:            "blood-panel",
			ServiceName:          "Blood Panel",
			ServiceType:          enum.ServiceTypeDiagnostic,
			Provider:             domain.Provider{ID: "lab-c", Name: "Lab C"},
			Quantity:             1,
			UnitPrice:            250000,
			PrescriptionRequired: true,
			Prescriptions: []domain.Prescription{
				{ID: uuid.New(), Status: enum.PrescriptionStatusPending, UploadedAt: testTime},
			},
			AddedAt: testTime.Add(time.Minute),
		},
	}
	return domain.Order{
		ID:        orderID,
		GuestID:   testGuest,
		Status:    enum.OrderStatusCart,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}.WithItems(items)
}

func newRequestWithoutGuest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
