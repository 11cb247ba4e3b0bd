package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// writeError maps engine errors to HTTP statuses. Anything unrecognised is
// logged and reported as 500 without detail.
func writeError(logger *zap.Logger, w http.ResponseWriter, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  domain.ErrValidation.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": domain.ErrSlotUnavailable.Error()})
	case errors.Is(err, domain.ErrConflictRetry):
		writeJSON(w, http.StatusConflict, map[string]string{"error": domain.ErrConflictRetry.Error()})
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrNoEligibleItems),
		errors.Is(err, domain.ErrUnsupportedOperation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrDocumentRequired):
		writeJSON(w, http.StatusFailedDependency, map[string]string{"error": domain.ErrDocumentRequired.Error()})
	case errors.Is(err, domain.ErrExternalService):
		logger.Warn(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": domain.ErrExternalService.Error()})
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func parseUUIDParam(w http.ResponseWriter, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + what})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}

// money renders minor units as a fixed two-decimal string.
func money(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// --- Response types ---

type providerResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

type prescriptionResponse struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	RejectReason *string   `json:"reject_reason"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type itemResponse struct {
	ID                   uuid.UUID              `json:"id"`
	ServiceID            string                 `json:"service_id"`
	ServiceName          string                 `json:"service_name"`
	ServiceType          string                 `json:"service_type"`
	ProviderID           string                 `json:"provider_id"`
	Quantity             int32                  `json:"quantity"`
	UnitPrice            string                 `json:"unit_price"`
	Total                string                 `json:"total"`
	PrescriptionRequired bool                   `json:"prescription_required"`
	PrescriptionStatus   string                 `json:"prescription_status"`
	Prescriptions        []prescriptionResponse `json:"prescriptions"`
	FulfillmentMethod    *string                `json:"fulfillment_method"`
	TimeSlotStart        *time.Time             `json:"time_slot_start"`
	Payable              bool                   `json:"payable"`
	PaidAt               *time.Time             `json:"paid_at"`
	AddedAt              time.Time              `json:"added_at"`
}

type groupResponse struct {
	Provider providerResponse `json:"provider"`
	Items    []itemResponse   `json:"items"`
	Subtotal string           `json:"subtotal"`
}

type summaryResponse struct {
	Kind  string `json:"kind"`
	Ready int    `json:"ready"`
	Total int    `json:"total"`
}

type orderResponse struct {
	ID             uuid.UUID       `json:"id"`
	Status         string          `json:"status"`
	ParentOrderID  *uuid.UUID      `json:"parent_order_id"`
	DeliveryMethod *string         `json:"delivery_method"`
	Address        *string         `json:"address"`
	CustomerName   *string         `json:"customer_name"`
	CustomerEmail  *string         `json:"customer_email"`
	CustomerPhone  *string         `json:"customer_phone"`
	Groups         []groupResponse `json:"groups"`
	ItemCount      int             `json:"item_count"`
	Total          string          `json:"total"`
	Summary        summaryResponse `json:"summary"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type eligibilityItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	IsPayable bool      `json:"is_payable"`
	Reason    string    `json:"reason"`
	Total     string    `json:"total"`
}

type eligibilityResponse struct {
	OrderID      uuid.UUID                 `json:"order_id"`
	Items        []eligibilityItemResponse `json:"items"`
	PayableTotal string                    `json:"payable_total"`
	Summary      summaryResponse           `json:"summary"`
}

type paymentReferenceResponse struct {
	Reference string      `json:"reference"`
	OrderID   uuid.UUID   `json:"order_id"`
	Amount    string      `json:"amount"`
	ItemIDs   []uuid.UUID `json:"item_ids"`
	Status    string      `json:"status"`
}

type checkoutResponse struct {
	TransactionReference string                     `json:"transaction_reference"`
	PaymentReferences    []paymentReferenceResponse `json:"payment_references"`
	CheckoutSessionID    string                     `json:"checkout_session_id"`
	PayableTotal         string                     `json:"payable_total"`
	PayerContact         string                     `json:"payer_contact"`
	OrderStatus          string                     `json:"order_status"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := o.Items()
	sum := domain.StatusSummary(items)
	resp := orderResponse{
		ID:             o.ID,
		Status:         o.Status,
		ParentOrderID:  o.ParentOrderID,
		DeliveryMethod: o.DeliveryMethod,
		Address:        o.Address,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		CustomerPhone:  o.CustomerPhone,
		Groups:         make([]groupResponse, len(o.Groups)),
		ItemCount:      len(items),
		Total:          money(o.Total()),
		Summary:        summaryResponse{Kind: sum.Kind, Ready: sum.Ready, Total: sum.Total},
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for i, g := range o.Groups {
		gr := groupResponse{
			Provider: providerResponse{ID: g.Provider.ID, Name: g.Provider.Name, Address: g.Provider.Address},
			Items:    make([]itemResponse, len(g.Items)),
			Subtotal: money(g.Subtotal()),
		}
		for j, it := range g.Items {
			gr.Items[j] = toItemResponse(it)
		}
		resp.Groups[i] = gr
	}
	return resp
}

func toItemResponse(it domain.Item) itemResponse {
	resp := itemResponse{
		ID:                   it.ID,
		ServiceID:            it.ServiceID,
		ServiceName:          it.ServiceName,
		ServiceType:          it.ServiceType,
		ProviderID:           it.Provider.ID,
		Quantity:             it.Quantity,
		UnitPrice:            money(it.UnitPrice),
		Total:                money(it.Total()),
		PrescriptionRequired: it.PrescriptionRequired,
		PrescriptionStatus:   it.PrescriptionState(),
		Prescriptions:        make([]prescriptionResponse, len(it.Prescriptions)),
		FulfillmentMethod:    it.FulfillmentMethod,
		TimeSlotStart:        it.TimeSlotStart,
		Payable:              it.Payable() && !it.IsPaid(),
		PaidAt:               it.PaidAt,
		AddedAt:              it.AddedAt,
	}
	for i, p := range it.Prescriptions {
		resp.Prescriptions[i] = prescriptionResponse{
			ID:           p.ID,
			Status:       p.Status,
			RejectReason: p.RejectReason,
			UploadedAt:   p.UploadedAt,
		}
	}
	return resp
}

// emptyCart is rendered when the guest has no cart yet.
func emptyCart() orderResponse {
	return orderResponse{
		Groups:  []groupResponse{},
		Total:   money(0),
		Summary: summaryResponse{Kind: domain.StatusSummary(nil).Kind},
	}
}

func toEligibilityResponse(o domain.Order, e domain.Eligibility) eligibilityResponse {
	sum := domain.StatusSummary(o.Items())
	resp := eligibilityResponse{
		OrderID:      o.ID,
		Items:        make([]eligibilityItemResponse, len(e.Items)),
		PayableTotal: money(e.PayableTotal),
		Summary:      summaryResponse{Kind: sum.Kind, Ready: sum.Ready, Total: sum.Total},
	}
	for i, it := range e.Items {
		resp.Items[i] = eligibilityItemResponse{
			ItemID:    it.ItemID,
			IsPayable: it.IsPayable,
			Reason:    it.Reason,
			Total:     money(it.Total),
		}
	}
	return resp
}

func toCheckoutResponse(res domain.CheckoutResult) checkoutResponse {
	resp := checkoutResponse{
		TransactionReference: res.TransactionReference,
		PaymentReferences:    make([]paymentReferenceResponse, len(res.PaymentReferences)),
		CheckoutSessionID:    res.CheckoutSessionID,
		PayableTotal:         money(res.PayableTotal),
		PayerContact:         res.PayerContact,
		OrderStatus:          res.OrderStatus,
	}
	for i, ref := range res.PaymentReferences {
		resp.PaymentReferences[i] = paymentReferenceResponse{
			Reference: ref.Reference,
			OrderID:   ref.OrderID,
			Amount:    money(ref.Amount),
			ItemIDs:   ref.ItemIDs,
			Status:    ref.Status,
		}
	}
	return resp
}
