package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/middleware"
	"github.com/carehub-id/api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PaymentReconciler is satisfied by *service.CheckoutService.
type PaymentReconciler interface {
	ReconcilePaymentCallback(ctx context.Context, cb service.PaymentCallback) (domain.ReconcileResult, error)
}

// PaymentHandler receives payment gateway callbacks.
type PaymentHandler struct {
	svc    PaymentReconciler
	secret string
	logger *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. Callbacks must carry an
// X-Signature computed with secret.
func NewPaymentHandler(svc PaymentReconciler, secret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, secret: secret, logger: logger}
}

// RegisterRoutes registers payment endpoints at /payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.VerifySignature(h.secret)).Post("/callback", h.Callback)
}

type callbackRequest struct {
	TransactionReference string `json:"transaction_reference"`
	Outcome              string `json:"outcome"`
}

type callbackResponse struct {
	TransactionReference string                `json:"transaction_reference"`
	Outcome              string                `json:"outcome"`
	Status               string                `json:"status"`
	Changes              []domain.StatusChange `json:"changes"`
	ReconciledAt         time.Time             `json:"reconciled_at"`
	Replayed             bool                  `json:"replayed"`
}

// Callback handles POST /payments/callback. A replayed callback answers 200
// with the stored result so the gateway stops retrying.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.ReconcilePaymentCallback(r.Context(), service.PaymentCallback{
		TransactionReference: req.TransactionReference,
		Outcome:              req.Outcome,
	})
	if err != nil {
		writeError(h.logger, w, "reconcile payment", err)
		return
	}

	changes := res.Changes
	if changes == nil {
		changes = []domain.StatusChange{}
	}
	writeJSON(w, http.StatusOK, callbackResponse{
		TransactionReference: res.TransactionReference,
		Outcome:              res.Outcome,
		Status:               res.Status,
		Changes:              changes,
		ReconciledAt:         res.ReconciledAt,
		Replayed:             res.Replayed,
	})
}
