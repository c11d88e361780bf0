package model

import "time"

// OutcomeKind is the shared status set every provider vocabulary is mapped to
// at the ingestion boundary. Unknown provider states normalize to
// OutcomeNonTerminal, never to success.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeFailure     OutcomeKind = "failure"
	OutcomeExpired     OutcomeKind = "expired"
	OutcomeNonTerminal OutcomeKind = "non_terminal"
)

// Terminal reports whether k ends the payment lifecycle.
func (k OutcomeKind) Terminal() bool { return k != OutcomeNonTerminal }

// PaymentOutcome is a provider notification normalized to the shared
// vocabulary. Reference correlates it back to a local Payment.
type PaymentOutcome struct {
	Provider      string
	Reference     int64       // local payment id echoed back by the provider
	OrderID       string      // provider-side order/payment id
	OperationID   string      // provider-internal transaction/operation id
	Kind          OutcomeKind
	ProviderState string      // raw provider status for audit and logs
	Amount        int64       // minor units as reported by the provider, 0 if absent
	Currency      string
	Raw           []byte      // unmodified wire payload
	ReceivedAt    time.Time
}

// DeliveryResult classifies how the ingestion pipeline disposed of one
// inbound webhook delivery.
type DeliveryResult string

const (
	DeliveryAccepted  DeliveryResult = "accepted"
	DeliveryDuplicate DeliveryResult = "duplicate"
	DeliveryIgnored   DeliveryResult = "ignored" // authenticated but non-terminal
	DeliveryRejected  DeliveryResult = "rejected"
)

// WebhookDelivery describes one inbound HTTP notification. Ephemeral: it is
// logged and counted, not persisted.
type WebhookDelivery struct {
	ID         string // ulid, for correlating log lines of one delivery
	Provider   string
	Outcome    *PaymentOutcome
	Result     DeliveryResult
	ReceivedAt time.Time
}
