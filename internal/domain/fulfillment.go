package domain

import "github.com/carehub-id/api/internal/enum"

// ValidFulfillment reports whether method applies to the service type:
// pickup/delivery for medications, lab visit/home collection for diagnostics.
func ValidFulfillment(serviceType, method string) bool {
	switch serviceType {
	case enum.ServiceTypeMedication:
		return method == enum.DeliveryMethodPickup || method == enum.DeliveryMethodDelivery
	case enum.ServiceTypeDiagnostic, enum.ServiceTypeDiagnosticPackage:
		return method == enum.DeliveryMethodLabVisit || method == enum.DeliveryMethodHomeCollection
	}
	return false
}

// IsValidServiceType reports whether s is a known service type.
func IsValidServiceType(s string) bool {
	switch s {
	case enum.ServiceTypeMedication, enum.ServiceTypeDiagnostic, enum.ServiceTypeDiagnosticPackage:
		return true
	}
	return false
}

// RequiresAddress reports whether the method is fulfilled off-site, at the
// customer's address.
func RequiresAddress(method string) bool {
	return method == enum.DeliveryMethodDelivery || method == enum.DeliveryMethodHomeCollection
}

// IsOnSite reports whether the customer goes to the provider.
func IsOnSite(method string) bool {
	return method == enum.DeliveryMethodPickup || method == enum.DeliveryMethodLabVisit
}
