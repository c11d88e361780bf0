package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // created locally, not yet registered with the provider
	PaymentStatusRegistered PaymentStatus = "registered" // provider accepted the order and assigned an order id
	PaymentStatusSucceeded  PaymentStatus = "succeeded"  // authenticated terminal success received
	PaymentStatusFailed     PaymentStatus = "failed"     // authenticated terminal failure received
	PaymentStatusExpired    PaymentStatus = "expired"    // no terminal outcome before the deadline
)

// Terminal reports whether no further transition is legal out of s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

// Payment is the canonical record of an attempted purchase. Its integer ID is
// the reference exchanged with providers: embedded in outbound registration
// and expected back in webhook payloads.
type Payment struct {
	ID             int64  // locally assigned; the provider-facing reference
	UserID         int64  // telegram user id of the purchaser
	Amount         int64  // minor currency units (kopecks/cents); immutable after creation
	Currency       string // ISO alpha code, e.g. "RUB", "USD"; immutable after creation
	Months         int    // purchased subscription duration
	Provider       string // "best2pay" | "nowpayments"
	Status         PaymentStatus
	ProviderOrder  *ProviderOrder // set at most once, on successful registration
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PaidAt         *time.Time // set when status becomes succeeded
}

// ProviderOrder is the provider-side counterpart of a Payment.
type ProviderOrder struct {
	OrderID        string     // provider-assigned order/payment identifier
	ProviderState  string     // last provider-reported state, raw vocabulary
	LastRawOutcome []byte     // last raw wire payload received for this order, kept for audit
	SignatureValid bool       // whether the last stored outcome carried a valid signature
	RegisteredAt   time.Time
	LastOutcomeAt  *time.Time
}
