package domain

import (
	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
)

// SplitPlan describes how a partial checkout divides an order: Moved items
// go to a new order, Remaining items stay on the source.
type SplitPlan struct {
	Moved        []uuid.UUID
	Remaining    []uuid.UUID
	MovedTotal   int64
	SourceStatus string
	TargetStatus string
}

// SourceEmptied reports whether the source order has nothing left.
func (p SplitPlan) SourceEmptied() bool {
	return len(p.Remaining) == 0
}

// PlanSplit partitions the order by current payability. Every item lands in
// exactly one of Moved or Remaining.
func PlanSplit(o Order) (SplitPlan, error) {
	elig := ComputeEligibility(o)
	plan := SplitPlan{MovedTotal: elig.PayableTotal}

	remainderPaid := false
	for _, ie := range elig.Items {
		if ie.IsPayable {
			plan.Moved = append(plan.Moved, ie.ItemID)
			continue
		}
		plan.Remaining = append(plan.Remaining, ie.ItemID)
		if ie.Reason == enum.EligibilityAlreadyPaid {
			remainderPaid = true
		}
	}
	if len(plan.Moved) == 0 {
		return SplitPlan{}, ErrNoEligibleItems
	}

	// The remainder is only items that cannot be paid yet, plus any already
	// paid ones from an earlier partial payment.
	plan.SourceStatus = enum.OrderStatusPendingPrescription
	if remainderPaid {
		plan.SourceStatus = enum.OrderStatusPartiallyCompleted
	}

	// A split cart stays the guest's cart; splitting an order that already
	// went through checkout yields another submitted-but-unpaid order.
	plan.TargetStatus = enum.OrderStatusCart
	if o.Status != enum.OrderStatusCart {
		plan.TargetStatus = enum.OrderStatusPartiallyCompleted
	}
	return plan, nil
}
