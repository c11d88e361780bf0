// Package best2pay implements the Best2Pay (SBP/QR) provider gateway: order
// registration, payment-link creation, sandbox test cases and notification
// verification over the provider's XML web API.
package best2pay

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/infra/gateway/sign"
	"telegram-vpn-subscription/internal/infra/metrics"
)

const Name = "best2pay"

// Sandbox test cases from the Best2Pay test stand.
const (
	testCaseApproved = "150"
	testCaseDeclined = "151"
)

// currencyNumeric maps ISO alpha codes to the numeric codes Best2Pay expects.
var currencyNumeric = map[string]string{
	"RUB": "643",
	"USD": "840",
	"EUR": "978",
}

var currencyAlpha = map[string]string{
	"643": "RUB",
	"840": "USD",
	"978": "EUR",
}

var _ adapter.ProviderGateway = (*Client)(nil)

type Client struct {
	sector   string
	password string
	baseURL  string // e.g. https://pay.best2pay.net/webapi
	httpc    *http.Client
	log      *zerolog.Logger
}

func NewClient(sector, password, baseURL string, timeout time.Duration, log *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		sector:   sector,
		password: password,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		httpc:    &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (c *Client) Name() string { return Name }

// Signature field orders per endpoint, from the Best2Pay web API reference.
// Order is load-bearing: drift here breaks verification silently as "wrong
// secret", so each function has a dedicated test vector.

// registerTag signs sector + amount + currency (+ password).
func (c *Client) registerTag(amount int64, currencyCode string) string {
	return sign.OrderedTag([]string{c.sector, strconv.FormatInt(amount, 10), currencyCode}, c.password)
}

// orderTag signs sector + order id (+ password). Used for Purchase links and
// test-case triggers.
func (c *Client) orderTag(orderID string) string {
	return sign.OrderedTag([]string{c.sector, orderID}, c.password)
}

type registerResponse struct {
	XMLName     xml.Name
	ID          string `xml:"id"`
	State       string `xml:"state"`
	Code        string `xml:"code"`
	Description string `xml:"description"`
}

// RegisterOrder creates a provider-side order carrying our reference.
// Registration is not idempotent on the provider side: on a network failure
// the caller must not blindly retry, the remote may have accepted the order.
func (c *Client) RegisterOrder(ctx context.Context, reference, amount int64, currency, description string) (*adapter.RegisterResult, error) {
	currencyCode, ok := currencyNumeric[currency]
	if !ok {
		currencyCode = currency
	}

	form := url.Values{
		"sector":    {c.sector},
		"amount":    {strconv.FormatInt(amount, 10)},
		"currency":  {currencyCode},
		"reference": {strconv.FormatInt(reference, 10)},
		"signature": {c.registerTag(amount, currencyCode)},
	}
	if description != "" {
		form.Set("description", description)
	}

	start := time.Now()
	body, err := c.postForm(ctx, "/Register", form)
	metrics.ObserveGatewayRequest(Name, "register", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var resp registerResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		c.log.Error().Err(err).Bytes("raw", body).Msg("best2pay: register response not XML")
		return nil, &adapter.Failure{Kind: adapter.FailureMalformed, Message: "register response not XML", Raw: body}
	}
	if resp.ID == "" {
		c.log.Error().Str("code", resp.Code).Str("description", resp.Description).Msg("best2pay: register rejected")
		return nil, &adapter.Failure{Kind: adapter.FailureRejected, ProviderCode: resp.Code, Message: resp.Description, Raw: body}
	}

	c.log.Info().Int64("reference", reference).Str("order_id", resp.ID).Msg("best2pay: order registered")
	return &adapter.RegisterResult{OrderID: resp.ID, ProviderState: resp.State, Raw: body}, nil
}

// CreatePaymentLink builds the signed Purchase URL for a registered order.
// No remote call is needed: the link itself carries the signature.
func (c *Client) CreatePaymentLink(ctx context.Context, orderID string, method string) (string, error) {
	if orderID == "" {
		return "", domain.ErrInvalidArgument
	}
	endpoint := "/Purchase"
	if strings.EqualFold(method, "sbp") || method == "" {
		endpoint = "/PurchaseSBP"
	}
	q := url.Values{
		"sector":    {c.sector},
		"id":        {orderID},
		"signature": {c.orderTag(orderID)},
	}
	return c.baseURL + endpoint + "?" + q.Encode(), nil
}

// CreateInvoice is not part of the Best2Pay flow; orders are registered and
// paid through Purchase links.
func (c *Client) CreateInvoice(ctx context.Context, reference, amount int64, currency, description string) (*adapter.InvoiceResult, error) {
	return nil, fmt.Errorf("%w: best2pay has no invoice flow", domain.ErrInvalidArgument)
}

// TriggerSandboxOutcome runs a provider test case against a registered order.
// Refused unless the configured endpoint is verifiably a test host, so a
// misconfigured client can never fire test cases at production.
func (c *Client) TriggerSandboxOutcome(ctx context.Context, orderID string, outcome adapter.SandboxOutcome) error {
	if !c.sandboxHost() {
		return fmt.Errorf("%w: host %q", domain.ErrSandboxForbidden, c.host())
	}
	caseID := testCaseApproved
	if outcome == adapter.SandboxDecline {
		caseID = testCaseDeclined
	}

	form := url.Values{
		"sector":    {c.sector},
		"id":        {orderID},
		"case":      {caseID},
		"signature": {c.orderTag(orderID)},
	}
	start := time.Now()
	body, err := c.postForm(ctx, "/RunTestCase", form)
	metrics.ObserveGatewayRequest(Name, "run_test_case", time.Since(start), err == nil)
	if err != nil {
		return err
	}

	var resp registerResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return &adapter.Failure{Kind: adapter.FailureMalformed, Message: "test case response not XML", Raw: body}
	}
	if resp.Code != "" && resp.ID == "" {
		return &adapter.Failure{Kind: adapter.FailureRejected, ProviderCode: resp.Code, Message: resp.Description, Raw: body}
	}
	c.log.Info().Str("order_id", orderID).Str("case", caseID).Msg("best2pay: test case triggered")
	return nil
}

// VerifySignature checks the notification tag against the ordered
// concatenation of every element value in document order plus the password.
func (c *Client) VerifySignature(body []byte, tag string) bool {
	n, err := parseNotification(body)
	if err != nil {
		return false
	}
	if tag == "" {
		tag = n.Signature
	}
	if tag == "" {
		return false
	}
	expected := sign.OrderedTag(n.OrderedValues(), c.password)
	return sign.Equal(tag, expected)
}

// NormalizeOutcome maps a notification into the shared outcome vocabulary.
// Unknown operation states are non-terminal, never success.
func (c *Client) NormalizeOutcome(body []byte) (*model.PaymentOutcome, error) {
	n, err := parseNotification(body)
	if err != nil {
		return nil, err
	}
	if !n.complete() {
		return nil, fmt.Errorf("%w: missing required notification fields", domain.ErrMalformedPayload)
	}
	reference, err := strconv.ParseInt(n.Reference, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: reference %q", domain.ErrMalformedPayload, n.Reference)
	}
	amount, _ := strconv.ParseInt(n.Amount, 10, 64)

	kind := model.OutcomeNonTerminal
	switch n.State {
	case "APPROVED":
		kind = model.OutcomeSuccess
	case "DECLINED", "REJECTED":
		kind = model.OutcomeFailure
	}

	currency := currencyAlpha[n.CurrencyCode]
	if currency == "" {
		currency = n.CurrencyCode
	}

	return &model.PaymentOutcome{
		Provider:      Name,
		Reference:     reference,
		OrderID:       n.OrderID,
		OperationID:   n.OperationID,
		Kind:          kind,
		ProviderState: n.State,
		Amount:        amount,
		Currency:      currency,
		Raw:           body,
		ReceivedAt:    time.Now(),
	}, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("best2pay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &adapter.Failure{Kind: adapter.FailureNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapter.Failure{Kind: adapter.FailureNetwork, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &adapter.Failure{
			Kind:         adapter.FailureRejected,
			ProviderCode: strconv.Itoa(resp.StatusCode),
			Message:      "unexpected HTTP status",
			Raw:          body,
		}
	}
	return body, nil
}

func (c *Client) host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// sandboxHost reports whether the configured endpoint is a known test stand.
func (c *Client) sandboxHost() bool {
	h := c.host()
	if h == "" {
		return false
	}
	return h == "test.best2pay.net" || strings.HasPrefix(h, "test.") || h == "localhost" || h == "127.0.0.1"
}
