package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SlotServicer is satisfied by *service.SlotResolver.
type SlotServicer interface {
	Slots(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error)
	SlotsForRange(ctx context.Context, q domain.SlotQuery, from time.Time, days int) ([]service.DaySlots, error)
}

// SlotHandler serves diagnostic appointment slots.
type SlotHandler struct {
	svc    SlotServicer
	logger *zap.Logger
}

// NewSlotHandler creates a new SlotHandler.
func NewSlotHandler(svc SlotServicer, logger *zap.Logger) *SlotHandler {
	return &SlotHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers slot endpoints at /slots.
func (h *SlotHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type slotListResponse struct {
	Date  string        `json:"date"`
	Slots []domain.Slot `json:"slots"`
}

// List handles GET /slots?provider_id=&service_id=&fulfillment_type=&date=YYYY-MM-DD[&days=n].
// With days the response is one entry per day.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	date, err := time.Parse("2006-01-02", qs.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}
	q := domain.SlotQuery{
		ProviderID:      qs.Get("provider_id"),
		ServiceID:       qs.Get("service_id"),
		FulfillmentType: qs.Get("fulfillment_type"),
		Date:            date,
	}

	if qs.Has("days") {
		days := queryInt(r, "days", 0)
		ranged, err := h.svc.SlotsForRange(r.Context(), q, date, days)
		if err != nil {
			writeError(h.logger, w, "slots for range", err)
			return
		}
		resp := make([]slotListResponse, len(ranged))
		for i, d := range ranged {
			resp[i] = slotListResponse{Date: d.Date.Format("2006-01-02"), Slots: nonNilSlots(d.Slots)}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	slots, err := h.svc.Slots(r.Context(), q)
	if err != nil {
		writeError(h.logger, w, "slots", err)
		return
	}
	writeJSON(w, http.StatusOK, slotListResponse{Date: date.Format("2006-01-02"), Slots: nonNilSlots(slots)})
}

func nonNilSlots(s []domain.Slot) []domain.Slot {
	if s == nil {
		return []domain.Slot{}
	}
	return s
}
