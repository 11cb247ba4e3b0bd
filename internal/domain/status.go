package domain

import "github.com/carehub-id/api/internal/enum"

var transitions = map[string][]string{
	enum.OrderStatusCart: {
		enum.OrderStatusPendingPrescription,
		enum.OrderStatusPartiallyCompleted,
		enum.OrderStatusConfirmed,
		enum.OrderStatusCancelled,
	},
	enum.OrderStatusPendingPrescription: {
		enum.OrderStatusPartiallyCompleted,
		enum.OrderStatusConfirmed,
		enum.OrderStatusCancelled,
		enum.OrderStatusRejected,
	},
	enum.OrderStatusPartiallyCompleted: {
		enum.OrderStatusPendingPrescription,
		enum.OrderStatusConfirmed,
		enum.OrderStatusProcessing,
		enum.OrderStatusCancelled,
	},
	enum.OrderStatusConfirmed: {
		enum.OrderStatusProcessing,
		enum.OrderStatusCancelled,
	},
	enum.OrderStatusProcessing: {
		enum.OrderStatusShipped,
		enum.OrderStatusReadyForPickup,
		enum.OrderStatusCancelled,
	},
	enum.OrderStatusShipped:        {enum.OrderStatusDelivered},
	enum.OrderStatusReadyForPickup: {enum.OrderStatusDelivered},
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	if _, ok := transitions[s]; ok {
		return true
	}
	return IsTerminal(s)
}

// IsTerminal reports whether an order in status s can no longer change.
func IsTerminal(s string) bool {
	switch s {
	case enum.OrderStatusDelivered, enum.OrderStatusCancelled, enum.OrderStatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// non-terminal status is always allowed.
func CanTransition(from, to string) bool {
	if IsTerminal(from) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsMutable reports whether items may still be added, removed or edited.
func IsMutable(s string) bool {
	switch s {
	case enum.OrderStatusCart, enum.OrderStatusPendingPrescription, enum.OrderStatusPartiallyCompleted:
		return true
	}
	return false
}

// IsSubmittable reports whether checkout may be (re)submitted.
func IsSubmittable(s string) bool {
	return IsMutable(s)
}

// StatusAfterSubmit maps the size of the payable and still-pending subsets
// at submission time to the order's next status.
func StatusAfterSubmit(payable, pending int) string {
	switch {
	case payable > 0 && pending > 0:
		return enum.OrderStatusPartiallyCompleted
	case payable > 0:
		return enum.OrderStatusConfirmed
	default:
		return enum.OrderStatusPendingPrescription
	}
}

// SettledStatus returns the status an order reaches once a payment covering
// some of its items is reconciled. Confirmed orders move on to processing;
// a partially completed order follows only when nothing is left unpaid.
func SettledStatus(o Order) string {
	switch o.Status {
	case enum.OrderStatusConfirmed:
		return enum.OrderStatusProcessing
	case enum.OrderStatusPartiallyCompleted:
		items := o.Items()
		if len(items) == 0 {
			return o.Status
		}
		for _, it := range items {
			if !it.IsPaid() {
				return o.Status
			}
		}
		return enum.OrderStatusProcessing
	}
	return o.Status
}
