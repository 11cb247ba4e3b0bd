package handler

import (
	"context"
	"net/http"

	"github.com/carehub-id/api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionResolver is satisfied by *service.CheckoutService.
type SessionResolver interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (service.CheckoutSession, error)
}

// SessionHandler resolves the checkout session id the payment page
// redirects back with. The signed id is the credential, so no guest header
// is required.
type SessionHandler struct {
	svc    SessionResolver
	logger *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc SessionResolver, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers session endpoints at /checkout-sessions.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{sid}", h.Get)
}

type sessionResponse struct {
	TransactionReference string          `json:"transaction_reference"`
	Status               string          `json:"status"`
	Orders               []orderResponse `json:"orders"`
}

// Get handles GET /checkout-sessions/{sid}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetCheckoutSession(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		writeError(h.logger, w, "get checkout session", err)
		return
	}

	resp := sessionResponse{
		TransactionReference: sess.TransactionReference,
		Status:               sess.Status,
		Orders:               make([]orderResponse, len(sess.Orders)),
	}
	for i, o := range sess.Orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
