package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxRangeDays caps SlotsForRange fan-out.
const maxRangeDays = 14

// DaySlots is the schedule of one day.
type DaySlots struct {
	Date  time.Time     `json:"date"`
	Slots []domain.Slot `json:"slots"`
}

// SlotResolver answers slot queries for diagnostic items by merging the
// provider schedule with the slots this engine has already handed out.
type SlotResolver struct {
	schedule Schedule
	store    SlotStore
	logger   *zap.Logger
}

func NewSlotResolver(schedule Schedule, store SlotStore, env Env) *SlotResolver {
	env = env.withDefaults()
	return &SlotResolver{schedule: schedule, store: store, logger: env.Logger}
}

// Slots returns the day's slots in start order. A slot already claimed by an
// item here is reported booked whatever the schedule says.
func (r *SlotResolver) Slots(ctx context.Context, q domain.SlotQuery) ([]domain.Slot, error) {
	return r.slots(ctx, q, uuid.Nil)
}

// slots merges the schedule with local claims, ignoring the claim held by
// excludeItem.
func (r *SlotResolver) slots(ctx context.Context, q domain.SlotQuery, excludeItem uuid.UUID) ([]domain.Slot, error) {
	if err := validateSlotQuery(q); err != nil {
		return nil, err
	}
	day := startOfDay(q.Date)
	q.Date = day

	slots, err := r.schedule.Slots(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("schedule slots: %w", err)
	}

	booked, err := r.store.ListBookedSlots(ctx, database.ListBookedSlotsParams{
		ProviderID:    q.ProviderID,
		ServiceID:     q.ServiceID,
		From:          day,
		To:            day.AddDate(0, 0, 1),
		ExcludeItemID: excludeItem,
	})
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	claimed := make(map[int64]bool, len(booked))
	for _, b := range booked {
		claimed[b.UnixNano()] = true
	}

	out := make([]domain.Slot, 0, len(slots))
	for _, s := range slots {
		if claimed[s.Start.UnixNano()] {
			s.Availability = enum.SlotBooked
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Confirm re-checks a slot right before itemID claims it. A slot that is
// gone or booked by another item fails with ErrSlotUnavailable; the item's
// own current booking does not count.
func (r *SlotResolver) Confirm(ctx context.Context, q domain.SlotQuery, start time.Time, itemID uuid.UUID) error {
	q.Date = start
	slots, err := r.slots(ctx, q, itemID)
	if err != nil {
		return err
	}
	for _, s := range slots {
		if !s.Start.Equal(start) {
			continue
		}
		if s.Availability == enum.SlotBooked {
			return fmt.Errorf("%s is booked: %w", start.Format(time.RFC3339), domain.ErrSlotUnavailable)
		}
		return nil
	}
	r.logger.Info("slot not offered by schedule",
		zap.String("provider_id", q.ProviderID),
		zap.String("service_id", q.ServiceID),
		zap.Time("start", start),
	)
	return fmt.Errorf("%s is not offered: %w", start.Format(time.RFC3339), domain.ErrSlotUnavailable)
}

// SlotsForRange queries consecutive days concurrently.
func (r *SlotResolver) SlotsForRange(ctx context.Context, q domain.SlotQuery, from time.Time, days int) ([]DaySlots, error) {
	if days < 1 || days > maxRangeDays {
		return nil, domain.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", maxRangeDays))
	}

	out := make([]DaySlots, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < days; i++ {
		day := startOfDay(from).AddDate(0, 0, i)
		g.Go(func() error {
			dq := q
			dq.Date = day
			slots, err := r.Slots(gctx, dq)
			if err != nil {
				return err
			}
			out[i] = DaySlots{Date: day, Slots: slots}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func validateSlotQuery(q domain.SlotQuery) error {
	var verr *domain.ValidationError
	add := func(field, msg string) {
		if verr == nil {
			verr = domain.NewValidationError(field, msg)
			return
		}
		verr.Add(field, msg)
	}
	if q.ProviderID == "" {
		add("provider_id", "is required")
	}
	if q.ServiceID == "" {
		add("service_id", "is required")
	}
	if q.FulfillmentType != enum.DeliveryMethodLabVisit && q.FulfillmentType != enum.DeliveryMethodHomeCollection {
		add("fulfillment_type", "must be lab_visit or home_collection")
	}
	if q.Date.IsZero() {
		add("date", "is required")
	}
	if verr != nil {
		return verr
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
