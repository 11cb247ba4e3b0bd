package domain

import (
	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
)

// ItemEligibility is the payability decision for one item.
type ItemEligibility struct {
	ItemID    uuid.UUID
	IsPayable bool
	Reason    string
	Total     int64
}

// Eligibility is the payability decision for a whole order.
type Eligibility struct {
	Items        []ItemEligibility
	PayableTotal int64
}

// ComputeEligibility evaluates every item of the order. Items covered by a
// reconciled payment are reported as not payable so they are never charged
// twice. The result depends only on the order passed in.
func ComputeEligibility(o Order) Eligibility {
	var e Eligibility
	for _, it := range o.Items() {
		payable, reason := itemEligibility(it)
		e.Items = append(e.Items, ItemEligibility{
			ItemID:    it.ID,
			IsPayable: payable,
			Reason:    reason,
			Total:     it.Total(),
		})
		if payable {
			e.PayableTotal += it.Total()
		}
	}
	return e
}

func itemEligibility(it Item) (bool, string) {
	if it.IsPaid() {
		return false, enum.EligibilityAlreadyPaid
	}
	if !it.PrescriptionRequired {
		return true, enum.EligibilityNoPrescriptionRequired
	}
	switch it.PrescriptionState() {
	case enum.PrescriptionStatusVerified:
		return true, enum.EligibilityPrescriptionVerified
	case enum.PrescriptionStatusPending:
		return false, enum.EligibilityPrescriptionPending
	case enum.PrescriptionStatusRejected:
		return false, enum.EligibilityPrescriptionRejected
	default:
		return false, enum.EligibilityPrescriptionMissing
	}
}

// PayableIDs lists the items that can be paid now.
func (e Eligibility) PayableIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range e.Items {
		if it.IsPayable {
			ids = append(ids, it.ItemID)
		}
	}
	return ids
}

// PendingIDs lists unpaid items still waiting on a prescription.
func (e Eligibility) PendingIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range e.Items {
		if !it.IsPayable && it.Reason != enum.EligibilityAlreadyPaid {
			ids = append(ids, it.ItemID)
		}
	}
	return ids
}

// NeedsDocument lists unpaid items with no usable document on file: nothing
// uploaded yet, or only rejected uploads.
func (e Eligibility) NeedsDocument() []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range e.Items {
		if it.Reason == enum.EligibilityPrescriptionMissing || it.Reason == enum.EligibilityPrescriptionRejected {
			ids = append(ids, it.ItemID)
		}
	}
	return ids
}

// Summary is the display form of an item list's readiness.
type Summary struct {
	Kind  string
	Ready int
	Total int
}

// StatusSummary counts payable items. A partially ready list is
// n_of_m_ready when every unready item has a document under review, and
// mixed when at least one still needs the guest to upload something.
func StatusSummary(items []Item) Summary {
	s := Summary{Total: len(items)}
	needsAction := false
	for _, it := range items {
		if it.Payable() {
			s.Ready++
			continue
		}
		if it.PrescriptionState() != enum.PrescriptionStatusPending {
			needsAction = true
		}
	}

	switch {
	case s.Ready == 0:
		s.Kind = enum.SummaryAllPending
	case s.Ready == s.Total:
		s.Kind = enum.SummaryAllReady
	case needsAction:
		s.Kind = enum.SummaryMixed
	default:
		s.Kind = enum.SummaryNOfMReady
	}
	return s
}
