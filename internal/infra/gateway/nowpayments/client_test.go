package nowpayments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/infra/gateway/sign"
)

const (
	testAPIKey    = "api-key-1"
	testIPNSecret = "ipn-secret-1"
)

func newTestClient(baseURL string) *Client {
	log := zerolog.Nop()
	return NewClient(testAPIKey, testIPNSecret, baseURL, "https://example.test/webhook/nowpayments/ipn", 5*time.Second, &log)
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("sends fiat price and parses the invoice", func(t *testing.T) {
		var gotKey string
		var gotReq map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/invoice" {
				t.Errorf("path = %s, want /invoice", r.URL.Path)
			}
			gotKey = r.Header.Get("x-api-key")
			if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			fmt.Fprint(w, `{"id":"4522625843","invoice_url":"https://nowpayments.io/payment/?iid=4522625843"}`)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		res, err := c.CreateInvoice(ctx, 12, 30000, "RUB", "1 month")
		if err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
		if res.InvoiceID != "4522625843" {
			t.Errorf("invoice id = %q", res.InvoiceID)
		}
		if res.InvoiceURL != "https://nowpayments.io/payment/?iid=4522625843" {
			t.Errorf("invoice url = %q", res.InvoiceURL)
		}

		if gotKey != testAPIKey {
			t.Errorf("x-api-key = %q", gotKey)
		}
		// 30000 minor units must go out as the decimal major amount
		if got := fmt.Sprint(gotReq["price_amount"]); got != "300" {
			t.Errorf("price_amount = %v, want 300", gotReq["price_amount"])
		}
		if gotReq["price_currency"] != "rub" {
			t.Errorf("price_currency = %v, want rub", gotReq["price_currency"])
		}
		if gotReq["order_id"] != "12" {
			t.Errorf("order_id = %v, want 12", gotReq["order_id"])
		}
		if gotReq["ipn_callback_url"] != "https://example.test/webhook/nowpayments/ipn" {
			t.Errorf("ipn_callback_url = %v", gotReq["ipn_callback_url"])
		}
	})

	t.Run("response without an invoice url is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"code":"INVALID_API_KEY","message":"invalid api key"}`)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.CreateInvoice(ctx, 12, 30000, "RUB", "")
		var f *adapter.Failure
		if !errors.As(err, &f) {
			t.Fatalf("err = %v, want *adapter.Failure", err)
		}
		if f.Kind != adapter.FailureRejected || f.ProviderCode != "INVALID_API_KEY" {
			t.Errorf("failure = %+v", f)
		}
	})

	t.Run("http error status is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.CreateInvoice(ctx, 12, 30000, "RUB", "")
		var f *adapter.Failure
		if !errors.As(err, &f) {
			t.Fatalf("err = %v, want *adapter.Failure", err)
		}
		if f.Kind != adapter.FailureRejected || f.ProviderCode != "403" {
			t.Errorf("failure = %+v", f)
		}
	})
}

func TestUnsupportedOperations(t *testing.T) {
	ctx := context.Background()
	c := newTestClient("https://api.nowpayments.io/v1")

	if _, err := c.RegisterOrder(ctx, 1, 100, "USD", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("RegisterOrder: err = %v", err)
	}
	if _, err := c.CreatePaymentLink(ctx, "x", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("CreatePaymentLink: err = %v", err)
	}
	if err := c.TriggerSandboxOutcome(ctx, "x", adapter.SandboxApprove); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("TriggerSandboxOutcome: err = %v", err)
	}
}

func TestVerifyIPNSignature(t *testing.T) {
	c := newTestClient("https://api.nowpayments.io/v1")
	body := []byte(`{"payment_id": 123, "order_id": "12", "payment_status": "finished", "price_amount": 300.0}`)

	tag, err := sign.IPNTag(testIPNSecret, body)
	if err != nil {
		t.Fatalf("IPNTag: %v", err)
	}

	t.Run("valid tag", func(t *testing.T) {
		if !c.VerifySignature(body, tag) {
			t.Error("expected a valid signature")
		}
	})

	t.Run("tag survives key reordering", func(t *testing.T) {
		reordered := []byte(`{"price_amount": 300.0, "payment_status": "finished", "order_id": "12", "payment_id": 123}`)
		if !c.VerifySignature(reordered, tag) {
			t.Error("canonicalization must make key order irrelevant")
		}
	})

	t.Run("tampered body fails", func(t *testing.T) {
		bad := []byte(`{"payment_id": 123, "order_id": "13", "payment_status": "finished", "price_amount": 300.0}`)
		if c.VerifySignature(bad, tag) {
			t.Error("tampered body must fail verification")
		}
	})

	t.Run("missing tag fails", func(t *testing.T) {
		if c.VerifySignature(body, "") {
			t.Error("empty tag must fail verification")
		}
	})

	t.Run("uppercase hex tag is accepted", func(t *testing.T) {
		up := make([]byte, len(tag))
		for i := 0; i < len(tag); i++ {
			ch := tag[i]
			if ch >= 'a' && ch <= 'f' {
				ch -= 'a' - 'A'
			}
			up[i] = ch
		}
		if !c.VerifySignature(body, string(up)) {
			t.Error("hex comparison must ignore case")
		}
	})
}

func TestNormalizeIPNOutcome(t *testing.T) {
	c := newTestClient("https://api.nowpayments.io/v1")

	ipn := func(status string) []byte {
		return []byte(fmt.Sprintf(`{
			"payment_id": 987654,
			"invoice_id": 4522625843,
			"payment_status": %q,
			"order_id": "12",
			"price_amount": 300.00,
			"price_currency": "rub",
			"pay_amount": 0.0017,
			"pay_currency": "btc",
			"actually_paid": 0.0017
		}`, status))
	}

	t.Run("finished is success with minor-unit amount", func(t *testing.T) {
		o, err := c.NormalizeOutcome(ipn("finished"))
		if err != nil {
			t.Fatalf("NormalizeOutcome: %v", err)
		}
		if o.Kind != model.OutcomeSuccess {
			t.Errorf("kind = %s, want success", o.Kind)
		}
		if o.Reference != 12 {
			t.Errorf("reference = %d, want 12", o.Reference)
		}
		if o.Amount != 30000 || o.Currency != "RUB" {
			t.Errorf("amount = %d %s, want 30000 RUB", o.Amount, o.Currency)
		}
		if o.OrderID != "987654" || o.OperationID != "4522625843" {
			t.Errorf("ids = %s/%s", o.OrderID, o.OperationID)
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := map[string]model.OutcomeKind{
			"waiting":        model.OutcomeNonTerminal,
			"confirming":     model.OutcomeNonTerminal,
			"partially_paid": model.OutcomeNonTerminal,
			"failed":         model.OutcomeFailure,
			"refunded":       model.OutcomeFailure,
			"expired":        model.OutcomeExpired,
			"some_new_state": model.OutcomeNonTerminal,
		}
		for status, want := range cases {
			o, err := c.NormalizeOutcome(ipn(status))
			if err != nil {
				t.Fatalf("%s: %v", status, err)
			}
			if o.Kind != want {
				t.Errorf("%s: kind = %s, want %s", status, o.Kind, want)
			}
		}
	})

	t.Run("missing order_id is malformed", func(t *testing.T) {
		if _, err := c.NormalizeOutcome([]byte(`{"payment_status":"finished"}`)); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Errorf("err = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("non-numeric order_id is malformed", func(t *testing.T) {
		if _, err := c.NormalizeOutcome([]byte(`{"order_id":"abc","payment_status":"finished"}`)); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Errorf("err = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("non-JSON body is malformed", func(t *testing.T) {
		if _, err := c.NormalizeOutcome([]byte("<xml/>")); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Errorf("err = %v, want ErrMalformedPayload", err)
		}
	})
}
