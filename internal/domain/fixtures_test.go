package domain

import (
	"time"

	"github.com/carehub-id/api/internal/enum"
	"github.com/google/uuid"
)

var (
	pharmacyA = Provider{ID: "pharm-a", Name: "Apotek A", Address: strPtr("Jl. Melati 1")}
	pharmacyB = Provider{ID: "pharm-b", Name: "Apotek B", Address: strPtr("Jl. Mawar 2")}
	labC      = Provider{ID: "lab-c", Name: "Lab C"}
)

func strPtr(s string) *string { return &s }

func otc(p Provider, qty int32, price int64) Item {
	return Item{
		ID:          uuid.New(),
		ServiceID:   "svc-" + uuid.NewString()[:8],
		ServiceType: enum.ServiceTypeMedication,
		Provider:    p,
		Quantity:    qty,
		UnitPrice:   price,
	}
}

func rx(p Provider, price int64, statuses ...string) Item {
	it := otc(p, 1, price)
	it.PrescriptionRequired = true
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i, s := range statuses {
		it.Prescriptions = append(it.Prescriptions, Prescription{
			ID:         uuid.New(),
			Status:     s,
			FileRef:    "file-" + s,
			UploadedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return it
}

func newOrder(status string, items ...Item) Order {
	return Order{ID: uuid.New(), GuestID: "guest-1", Status: status}.WithItems(items)
}
