// Package domain holds the order aggregate and the pure rules evaluated over
// it: derived totals, provider grouping, payability and status transitions.
// Nothing here performs I/O.
package domain

import (
	"time"

	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
)

// Provider is the pharmacy or lab fulfilling a group of items. Address is
// nil when the catalog did not report one.
type Provider struct {
	ID      string
	Name    string
	Address *string
}

// Prescription is one uploaded document attached to an item.
type Prescription struct {
	ID           uuid.UUID
	Status       string
	RejectReason *string
	FileRef      string
	ExternalID   string
	UploadedAt   time.Time
}

// Item is a single line of an order. UnitPrice is the catalog price captured
// when the item was added, in minor currency units.
type Item struct {
	ID                   uuid.UUID
	OrderID              uuid.UUID
	ServiceID            string
	ServiceName          string
	ServiceType          string
	Provider             Provider
	Quantity             int32
	UnitPrice            int64
	PrescriptionRequired bool
	Prescriptions        []Prescription
	FulfillmentMethod    *string
	TimeSlotStart        *time.Time
	PaidAt               *time.Time
	AddedAt              time.Time
}

// Total is quantity * unit price.
func (i Item) Total() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// IsDiagnostic reports whether the item is a lab test or test package.
func (i Item) IsDiagnostic() bool {
	return i.ServiceType == enum.ServiceTypeDiagnostic || i.ServiceType == enum.ServiceTypeDiagnosticPackage
}

// IsPaid reports whether a reconciled payment already covers the item.
func (i Item) IsPaid() bool {
	return i.PaidAt != nil
}

// PrescriptionState collapses the item's prescriptions into one status:
// verified if any document is verified, otherwise the status of the most
// recent upload, or none when nothing was uploaded.
func (i Item) PrescriptionState() string {
	if len(i.Prescriptions) == 0 {
		return enum.PrescriptionStatusNone
	}
	latest := i.Prescriptions[0]
	for _, p := range i.Prescriptions {
		if p.Status == enum.PrescriptionStatusVerified {
			return enum.PrescriptionStatusVerified
		}
		if p.UploadedAt.After(latest.UploadedAt) {
			latest = p
		}
	}
	return latest.Status
}

// Payable is the one payability rule: no prescription needed, or at least
// one verified prescription.
func (i Item) Payable() bool {
	return !i.PrescriptionRequired || i.PrescriptionState() == enum.PrescriptionStatusVerified
}

// ProviderGroup is the subset of an order fulfilled by one provider.
type ProviderGroup struct {
	Provider Provider
	Items    []Item
}

// Subtotal is the sum of the group's item totals.
func (g ProviderGroup) Subtotal() int64 {
	var sum int64
	for _, it := range g.Items {
		sum += it.Total()
	}
	return sum
}

// Order is the aggregate root. Totals are never stored; they are derived
// from the items on every call.
type Order struct {
	ID             uuid.UUID
	GuestID        string
	UserID         *string
	Status         string
	DeliveryMethod *string
	Address        *string
	CustomerName   *string
	CustomerEmail  *string
	CustomerPhone  *string
	ParentOrderID  *uuid.UUID
	Groups         []ProviderGroup
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WithItems returns a copy of o whose groups are rebuilt from items.
func (o Order) WithItems(items []Item) Order {
	o.Groups = GroupItems(items)
	return o
}

// GroupItems buckets items by provider. Groups appear in the order their
// first item was added; items keep their relative order.
func GroupItems(items []Item) []ProviderGroup {
	var groups []ProviderGroup
	index := make(map[string]int)
	for _, it := range items {
		pos, ok := index[it.Provider.ID]
		if !ok {
			pos = len(groups)
			index[it.Provider.ID] = pos
			groups = append(groups, ProviderGroup{Provider: it.Provider})
		}
		groups[pos].Items = append(groups[pos].Items, it)
	}
	return groups
}

// Items flattens the provider groups.
func (o Order) Items() []Item {
	var items []Item
	for _, g := range o.Groups {
		items = append(items, g.Items...)
	}
	return items
}

// ItemCount is the number of items across all groups.
func (o Order) ItemCount() int {
	n := 0
	for _, g := range o.Groups {
		n += len(g.Items)
	}
	return n
}

// Total is the sum of all group subtotals.
func (o Order) Total() int64 {
	var sum int64
	for _, g := range o.Groups {
		sum += g.Subtotal()
	}
	return sum
}

// FindItem returns the item with the given id.
func (o Order) FindItem(id uuid.UUID) (Item, bool) {
	for _, g := range o.Groups {
		for _, it := range g.Items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return Item{}, false
}

// PrescriptionServiceIDs returns the distinct service ids of items that need a
// prescription, in item order.
func (o Order) PrescriptionServiceIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, it := range o.Items() {
		if !it.PrescriptionRequired || seen[it.ServiceID] {
			continue
		}
		seen[it.ServiceID] = true
		ids = append(ids, it.ServiceID)
	}
	return ids
}
