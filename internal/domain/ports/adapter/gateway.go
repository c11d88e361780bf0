package adapter

import (
	"context"

	"telegram-vpn-subscription/internal/domain/model"
)

// FailureKind classifies gateway failures by what the caller may do next.
type FailureKind string

const (
	// FailureNetwork covers transport errors and timeouts. Retriable, but a
	// mutating call must not be retried blindly: the remote side may have
	// accepted it. Resolve ambiguity by querying order status first.
	FailureNetwork FailureKind = "network"
	// FailureRejected means the provider returned a structured error. Not
	// retriable without changing inputs.
	FailureRejected FailureKind = "rejected"
	// FailureMalformed means the response had an unexpected shape. Not
	// retriable; the raw body is kept for diagnosis.
	FailureMalformed FailureKind = "malformed"
)

// Failure is a typed gateway failure surfaced to the initiating flow.
type Failure struct {
	Kind         FailureKind
	ProviderCode string // provider error code, when one was returned
	Message      string
	Raw          []byte // raw response body for malformed/rejected responses
}

func (f *Failure) Error() string {
	if f.ProviderCode != "" {
		return "gateway failure (" + string(f.Kind) + ", code " + f.ProviderCode + "): " + f.Message
	}
	return "gateway failure (" + string(f.Kind) + "): " + f.Message
}

// RegisterResult is the normalized outcome of a successful order registration.
type RegisterResult struct {
	OrderID       string
	ProviderState string
	Raw           []byte
}

// InvoiceResult is the normalized outcome of a single-step invoice creation.
type InvoiceResult struct {
	InvoiceID  string
	InvoiceURL string
	Raw        []byte
}

// SandboxOutcome selects the provider-side test case to simulate.
type SandboxOutcome string

const (
	SandboxApprove SandboxOutcome = "approve"
	SandboxDecline SandboxOutcome = "decline"
)

// ProviderGateway is the capability set a payment provider implements.
// Selection happens by configuration; the pipeline never branches on
// provider name.
type ProviderGateway interface {
	// Name returns the provider key stored on payments ("best2pay", ...).
	Name() string

	// RegisterOrder creates a provider-side order carrying our reference.
	RegisterOrder(ctx context.Context, reference, amount int64, currency, description string) (*RegisterResult, error)

	// CreatePaymentLink returns the URL a user follows to pay a registered
	// order. Only valid once RegisterOrder has assigned an order id.
	CreatePaymentLink(ctx context.Context, orderID string, method string) (string, error)

	// CreateInvoice is the single-step register+link flow. Providers without
	// it return domain.ErrInvalidArgument.
	CreateInvoice(ctx context.Context, reference, amount int64, currency, description string) (*InvoiceResult, error)

	// TriggerSandboxOutcome drives a provider test case against a registered
	// order. Fails closed with domain.ErrSandboxForbidden unless the active
	// endpoint is a verified non-production host.
	TriggerSandboxOutcome(ctx context.Context, orderID string, outcome SandboxOutcome) error

	// VerifySignature authenticates an inbound notification. body is the raw
	// transport payload; tag is the supplied signature (header or field).
	VerifySignature(body []byte, tag string) bool

	// NormalizeOutcome parses a raw notification into the shared outcome
	// vocabulary. Returns domain.ErrMalformedPayload on parse failure.
	NormalizeOutcome(body []byte) (*model.PaymentOutcome, error)
}
