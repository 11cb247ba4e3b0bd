package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusCart                = "cart"
	OrderStatusPendingPrescription = "pending_prescription"
	OrderStatusPartiallyCompleted  = "partially_completed"
	OrderStatusConfirmed           = "confirmed"
	OrderStatusProcessing          = "processing"
	OrderStatusShipped             = "shipped"
	OrderStatusReadyForPickup      = "ready_for_pickup"
	OrderStatusDelivered           = "delivered"
	OrderStatusCancelled           = "cancelled"
	OrderStatusRejected            = "rejected"
)

const (
	PrescriptionStatusNone     = "none"
	PrescriptionStatusPending  = "pending"
	PrescriptionStatusVerified = "verified"
	PrescriptionStatusRejected = "rejected"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

const (
	PaymentReferenceStatusPending = "pending"
	PaymentReferenceStatusPaid    = "paid"
	PaymentReferenceStatusFailed  = "failed"
)

const (
	PaymentOutcomeSuccess = "success"
	PaymentOutcomeFailure = "failure"
	PaymentOutcomeCancel  = "cancel"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	ServiceTypeMedication        = "medication"
	ServiceTypeDiagnostic        = "diagnostic"
	ServiceTypeDiagnosticPackage = "diagnostic_package"
)

const (
	DeliveryMethodPickup         = "pickup"
	DeliveryMethodDelivery       = "delivery"
	DeliveryMethodLabVisit       = "lab_visit"
	DeliveryMethodHomeCollection = "home_collection"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	SlotAvailable = "available"
	SlotLimited   = "limited"
	SlotBooked    = "booked"
)

const (
	SummaryAllReady   = "all_ready"
	SummaryNOfMReady  = "n_of_m_ready"
	SummaryAllPending = "all_pending"
	SummaryMixed      = "mixed"
)

const (
	EligibilityNoPrescriptionRequired = "no_prescription_required"
	EligibilityPrescriptionVerified   = "prescription_verified"
	EligibilityPrescriptionPending    = "prescription_pending"
	EligibilityPrescriptionRejected   = "prescription_rejected"
	EligibilityPrescriptionMissing    = "prescription_missing"
	EligibilityAlreadyPaid            = "already_paid"
)
