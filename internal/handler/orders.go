package handler

import (
	"context"
	"net/http"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/middleware"
	"github.com/carehub-id/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutServicer defines the checkout operations used by order handlers.
// Satisfied by *service.CheckoutService.
type CheckoutServicer interface {
	Eligibility(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, domain.Eligibility, error)
	PartialCheckout(ctx context.Context, guestID string, orderID uuid.UUID) (service.SplitResult, error)
	SubmitCheckout(ctx context.Context, req service.SubmitCheckoutRequest) (domain.CheckoutResult, error)
	ResumeCheckout(ctx context.Context, guestID string, orderID uuid.UUID, contact string) (domain.CheckoutResult, error)
}

// OrderHandler handles order history and checkout endpoints.
type OrderHandler struct {
	orders   CartServicer
	checkout CheckoutServicer
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders CartServicer, checkout CheckoutServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkout, logger: logger}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at
// /orders inside a RequireGuest group.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/eligibility", h.Eligibility)
		r.Post("/partial-checkout", h.PartialCheckout)
		r.Post("/checkout", h.Submit)
		r.Post("/resume", h.Resume)
	})
}

type submitCheckoutRequest struct {
	Customer    domain.CustomerInfo `json:"customer"`
	DocumentRef string              `json:"document_ref"`
}

type resumeRequest struct {
	Contact string `json:"contact"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type splitResponse struct {
	NewOrderID    uuid.UUID   `json:"new_order_id"`
	SourceOrderID uuid.UUID   `json:"source_order_id"`
	SourceDeleted bool        `json:"source_deleted"`
	MovedItemIDs  []uuid.UUID `json:"moved_item_ids"`
	MovedTotal    string      `json:"moved_total"`
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)

	orders, err := h.orders.ListOrders(r.Context(), middleware.GuestFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(h.logger, w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), middleware.GuestFromContext(r.Context()), orderID)
	if err != nil {
		writeError(h.logger, w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Eligibility handles GET /orders/{id}/eligibility. Although a GET, it
// stores any verification decisions the document store reports since the
// last look, so repeated calls are idempotent but not free of writes.
func (h *OrderHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}

	order, elig, err := h.checkout.Eligibility(r.Context(), middleware.GuestFromContext(r.Context()), orderID)
	if err != nil {
		writeError(h.logger, w, "eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityResponse(order, elig))
}

// PartialCheckout handles POST /orders/{id}/partial-checkout.
func (h *OrderHandler) PartialCheckout(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}

	res, err := h.checkout.PartialCheckout(r.Context(), middleware.GuestFromContext(r.Context()), orderID)
	if err != nil {
		writeError(h.logger, w, "partial checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, splitResponse{
		NewOrderID:    res.NewOrderID,
		SourceOrderID: res.SourceOrderID,
		SourceDeleted: res.SourceDeleted,
		MovedItemIDs:  res.MovedItemIDs,
		MovedTotal:    money(res.MovedTotal),
	})
}

// Submit handles POST /orders/{id}/checkout.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req submitCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.checkout.SubmitCheckout(r.Context(), service.SubmitCheckoutRequest{
		GuestID:     middleware.GuestFromContext(r.Context()),
		OrderID:     orderID,
		Customer:    req.Customer,
		DocumentRef: req.DocumentRef,
	})
	if err != nil {
		writeError(h.logger, w, "submit checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckoutResponse(res))
}

// Resume handles POST /orders/{id}/resume. The body is optional.
func (h *OrderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "order ID")
	if !ok {
		return
	}
	var req resumeRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.checkout.ResumeCheckout(r.Context(), middleware.GuestFromContext(r.Context()), orderID, req.Contact)
	if err != nil {
		writeError(h.logger, w, "resume checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, toCheckoutResponse(res))
}
