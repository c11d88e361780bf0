// Package nowpayments implements the NOWPayments (cryptocurrency) provider
// gateway: invoice creation, payment-status lookup and IPN verification over
// the provider's JSON API.
package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/infra/gateway/sign"
	"telegram-vpn-subscription/internal/infra/metrics"
)

const Name = "nowpayments"

var _ adapter.ProviderGateway = (*Client)(nil)

type Client struct {
	apiKey      string
	ipnSecret   string
	baseURL     string // e.g. https://api.nowpayments.io/v1
	callbackURL string // IPN callback embedded into invoices
	httpc       *http.Client
	log         *zerolog.Logger
}

func NewClient(apiKey, ipnSecret, baseURL, callbackURL string, timeout time.Duration, log *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:      apiKey,
		ipnSecret:   ipnSecret,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		callbackURL: callbackURL,
		httpc:       &http.Client{Timeout: timeout},
		log:         log,
	}
}

func (c *Client) Name() string { return Name }

// RegisterOrder is not part of the NOWPayments flow; CreateInvoice performs
// registration and link creation in one step.
func (c *Client) RegisterOrder(ctx context.Context, reference, amount int64, currency, description string) (*adapter.RegisterResult, error) {
	return nil, fmt.Errorf("%w: nowpayments registers orders through CreateInvoice", domain.ErrInvalidArgument)
}

func (c *Client) CreatePaymentLink(ctx context.Context, orderID string, method string) (string, error) {
	return "", fmt.Errorf("%w: nowpayments issues links through CreateInvoice", domain.ErrInvalidArgument)
}

type invoiceRequest struct {
	// json.Number keeps the price a bare JSON number; decimal.Decimal would
	// marshal quoted.
	PriceAmount     json.Number `json:"price_amount"`
	PriceCurrency   string      `json:"price_currency"`
	OrderID         string      `json:"order_id"`
	OrderDesc       string      `json:"order_description,omitempty"`
	IPNCallbackURL  string      `json:"ipn_callback_url,omitempty"`
	IsFixedRate     bool        `json:"is_fixed_rate"`
	IsFeePaidByUser bool        `json:"is_fee_paid_by_user"`
}

type invoiceResponse struct {
	ID         json.Number `json:"id"`
	InvoiceURL string      `json:"invoice_url"`
	Message    string      `json:"message"`
	Code       string      `json:"code"`
}

// CreateInvoice registers the order and returns the hosted payment page URL
// in a single call. amount is in minor units of a fiat currency.
func (c *Client) CreateInvoice(ctx context.Context, reference, amount int64, currency, description string) (*adapter.InvoiceResult, error) {
	reqBody := invoiceRequest{
		// minor units to major: NOWPayments prices are fiat decimals
		PriceAmount:    json.Number(decimal.New(amount, -2).String()),
		PriceCurrency:  strings.ToLower(currency),
		OrderID:        strconv.FormatInt(reference, 10),
		OrderDesc:      description,
		IPNCallbackURL: c.callbackURL,
		IsFixedRate:    true,
	}

	start := time.Now()
	body, err := c.postJSON(ctx, "/invoice", reqBody)
	metrics.ObserveGatewayRequest(Name, "create_invoice", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error().Err(err).Bytes("raw", body).Msg("nowpayments: invoice response not JSON")
		return nil, &adapter.Failure{Kind: adapter.FailureMalformed, Message: "invoice response not JSON", Raw: body}
	}
	if resp.InvoiceURL == "" {
		return nil, &adapter.Failure{Kind: adapter.FailureRejected, ProviderCode: resp.Code, Message: resp.Message, Raw: body}
	}

	c.log.Info().Int64("reference", reference).Str("invoice_id", resp.ID.String()).Msg("nowpayments: invoice created")
	return &adapter.InvoiceResult{InvoiceID: resp.ID.String(), InvoiceURL: resp.InvoiceURL, Raw: body}, nil
}

// TriggerSandboxOutcome is not supported: NOWPayments has no remote test-case
// trigger, its sandbox simulates payments on its own schedule.
func (c *Client) TriggerSandboxOutcome(ctx context.Context, orderID string, outcome adapter.SandboxOutcome) error {
	return fmt.Errorf("%w: nowpayments has no test-case trigger", domain.ErrInvalidArgument)
}

// Status checks API availability (GET /status).
func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &adapter.Failure{Kind: adapter.FailureNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &adapter.Failure{Kind: adapter.FailureRejected, ProviderCode: strconv.Itoa(resp.StatusCode), Message: "status endpoint unhealthy"}
	}
	return nil
}

// VerifySignature authenticates an IPN body against the x-nowpayments-sig
// tag: HMAC-SHA512 over the recursively key-sorted compact serialization.
func (c *Client) VerifySignature(body []byte, tag string) bool {
	if tag == "" || c.ipnSecret == "" {
		return false
	}
	expected, err := sign.IPNTag(c.ipnSecret, body)
	if err != nil {
		return false
	}
	return sign.EqualHex(tag, expected)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("nowpayments: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("nowpayments: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &adapter.Failure{Kind: adapter.FailureNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapter.Failure{Kind: adapter.FailureNetwork, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &adapter.Failure{
			Kind:         adapter.FailureRejected,
			ProviderCode: strconv.Itoa(resp.StatusCode),
			Message:      "unexpected HTTP status",
			Raw:          body,
		}
	}
	return body, nil
}
