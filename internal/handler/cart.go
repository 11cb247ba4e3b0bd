package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/middleware"
	"github.com/carehub-id/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartServicer defines the order operations used by cart and order handlers.
// Satisfied by *service.OrderService.
type CartServicer interface {
	AddItem(ctx context.Context, req service.AddItemRequest) (domain.Order, error)
	RemoveItem(ctx context.Context, guestID string, itemID uuid.UUID) (*domain.Order, error)
	SetQuantity(ctx context.Context, guestID string, itemID uuid.UUID, qty int32) (domain.Order, error)
	SetFulfillmentDetail(ctx context.Context, guestID string, itemID uuid.UUID, method string, slotStart *time.Time) (domain.Order, error)
	GetCart(ctx context.Context, guestID string) (domain.Order, error)
	GetOrder(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error)
	ListOrders(ctx context.Context, guestID string, limit, offset int) ([]domain.Order, error)
}

// CartHandler handles the guest's cart.
type CartHandler struct {
	svc    CartServicer
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(svc CartServicer, logger *zap.Logger) *CartHandler {
	return &CartHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers cart endpoints. Expected to be mounted at /cart
// inside a RequireGuest group.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/items", h.AddItem)
	r.Delete("/items/{itemID}", h.RemoveItem)
	r.Patch("/items/{itemID}/quantity", h.SetQuantity)
	r.Put("/items/{itemID}/fulfillment", h.SetFulfillment)
}

type addItemRequest struct {
	ServiceID   string `json:"service_id"`
	ProviderID  string `json:"provider_id"`
	ServiceType string `json:"service_type"`
	Quantity    int32  `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type setFulfillmentRequest struct {
	Method        string     `json:"fulfillment_method"`
	TimeSlotStart *time.Time `json:"time_slot_start"`
}

// Get handles GET /cart. A guest without a cart gets an empty one.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetCart(r.Context(), middleware.GuestFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, emptyCart())
			return
		}
		writeError(h.logger, w, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// AddItem handles POST /cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	order, err := h.svc.AddItem(r.Context(), service.AddItemRequest{
		GuestID:     middleware.GuestFromContext(r.Context()),
		UserID:      middleware.UserFromContext(r.Context()),
		ServiceID:   req.ServiceID,
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(h.logger, w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// RemoveItem handles DELETE /cart/items/{itemID}. Removing the last item
// deletes the cart and answers 204.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(w, chi.URLParam(r, "itemID"), "item ID")
	if !ok {
		return
	}

	order, err := h.svc.RemoveItem(r.Context(), middleware.GuestFromContext(r.Context()), itemID)
	if err != nil {
		writeError(h.logger, w, "remove item", err)
		return
	}
	if order == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// SetQuantity handles PATCH /cart/items/{itemID}/quantity.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(w, chi.URLParam(r, "itemID"), "item ID")
	if !ok {
		return
	}
	var req setQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.SetQuantity(r.Context(), middleware.GuestFromContext(r.Context()), itemID, req.Quantity)
	if err != nil {
		writeError(h.logger, w, "set quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetFulfillment handles PUT /cart/items/{itemID}/fulfillment.
func (h *CartHandler) SetFulfillment(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseUUIDParam(w, chi.URLParam(r, "itemID"), "item ID")
	if !ok {
		return
	}
	var req setFulfillmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fulfillment_method is required"})
		return
	}

	order, err := h.svc.SetFulfillmentDetail(r.Context(), middleware.GuestFromContext(r.Context()), itemID, req.Method, req.TimeSlotStart)
	if err != nil {
		writeError(h.logger, w, "set fulfillment", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
