package nowpayments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
)

// ipnPayload is the IPN notification body. Amounts arrive as JSON numbers
// with fractional crypto precision; decimal keeps them exact.
type ipnPayload struct {
	PaymentID     json.Number     `json:"payment_id"`
	InvoiceID     json.Number     `json:"invoice_id"`
	PaymentStatus string          `json:"payment_status"`
	OrderID       string          `json:"order_id"` // our reference
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	ActuallyPaid  decimal.Decimal `json:"actually_paid"`
}

// Payment status vocabulary, normalized exhaustively. Anything not listed is
// treated as non-terminal.
var statusKinds = map[string]model.OutcomeKind{
	"waiting":        model.OutcomeNonTerminal,
	"confirming":     model.OutcomeNonTerminal,
	"confirmed":      model.OutcomeNonTerminal,
	"sending":        model.OutcomeNonTerminal,
	"partially_paid": model.OutcomeNonTerminal,
	"finished":       model.OutcomeSuccess,
	"failed":         model.OutcomeFailure,
	"refunded":       model.OutcomeFailure,
	"expired":        model.OutcomeExpired,
}

// NormalizeOutcome parses an IPN body into the shared outcome vocabulary.
func (c *Client) NormalizeOutcome(body []byte) (*model.PaymentOutcome, error) {
	var p ipnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if p.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order_id", domain.ErrMalformedPayload)
	}
	reference, err := strconv.ParseInt(p.OrderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: order_id %q", domain.ErrMalformedPayload, p.OrderID)
	}

	kind, ok := statusKinds[p.PaymentStatus]
	if !ok {
		kind = model.OutcomeNonTerminal
	}

	// fiat price to minor units
	amountMinor := p.PriceAmount.Shift(2).IntPart()

	return &model.PaymentOutcome{
		Provider:      Name,
		Reference:     reference,
		OrderID:       p.PaymentID.String(),
		OperationID:   p.InvoiceID.String(),
		Kind:          kind,
		ProviderState: p.PaymentStatus,
		Amount:        amountMinor,
		Currency:      strings.ToUpper(p.PriceCurrency),
		Raw:           body,
		ReceivedAt:    time.Now(),
	}, nil
}
