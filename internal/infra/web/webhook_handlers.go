package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/infra/logging"
	"telegram-vpn-subscription/internal/infra/metrics"
)

const maxWebhookBody = 1 << 20 // 1 MiB, far above any real notification

// handleBest2PayNotify ingests Best2Pay XML notifications. The signature
// travels inside the document. The provider keeps retrying until it receives
// a 200 with the literal body "OK"; duplicates therefore get that same
// response.
func (s *Server) handleBest2PayNotify(w http.ResponseWriter, r *http.Request) {
	const provider = "best2pay"
	deliveryID := ulid.Make().String()
	log := logging.WithDelivery(s.log, provider, deliveryID)

	gw, ok := s.gateways[provider]
	if !ok {
		http.Error(w, "provider not configured", http.StatusNotFound)
		return
	}
	body, ok := s.readBody(w, r, provider, log)
	if !ok {
		return
	}

	if !gw.VerifySignature(body, "") {
		metrics.IncSignatureFailure(provider)
		metrics.IncWebhookDelivery(provider, string(model.DeliveryRejected))
		log.Warn().Msg("invalid notification signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	outcome, err := gw.NormalizeOutcome(body)
	if err != nil {
		metrics.IncWebhookDelivery(provider, string(model.DeliveryRejected))
		log.Warn().Err(err).Msg("malformed notification")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	res, err := s.applier.ApplyOutcome(r.Context(), outcome)
	metrics.IncWebhookDelivery(provider, string(res))
	switch {
	case errors.Is(err, domain.ErrUnknownReference):
		log.Warn().Int64("reference", outcome.Reference).Msg("notification for unknown reference")
		http.Error(w, "unknown reference", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Int64("reference", outcome.Reference).Msg("outcome application failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Info().
		Int64("reference", outcome.Reference).
		Str("state", outcome.ProviderState).
		Str("result", string(res)).
		Msg("notification processed")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// handleNOWPaymentsIPN ingests NOWPayments JSON callbacks. The HMAC tag comes
// in the x-nowpayments-sig header. An authenticated callback for a reference
// we do not know is acknowledged and dropped: the provider shares one IPN
// endpoint across projects and retrying cannot make the reference appear.
func (s *Server) handleNOWPaymentsIPN(w http.ResponseWriter, r *http.Request) {
	const provider = "nowpayments"
	deliveryID := ulid.Make().String()
	log := logging.WithDelivery(s.log, provider, deliveryID)

	gw, ok := s.gateways[provider]
	if !ok {
		http.Error(w, "provider not configured", http.StatusNotFound)
		return
	}
	body, ok := s.readBody(w, r, provider, log)
	if !ok {
		return
	}

	tag := r.Header.Get("x-nowpayments-sig")
	if !gw.VerifySignature(body, tag) {
		metrics.IncSignatureFailure(provider)
		metrics.IncWebhookDelivery(provider, string(model.DeliveryRejected))
		log.Warn().Msg("invalid IPN signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	outcome, err := gw.NormalizeOutcome(body)
	if err != nil {
		metrics.IncWebhookDelivery(provider, string(model.DeliveryRejected))
		log.Warn().Err(err).Msg("malformed IPN")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	res, err := s.applier.ApplyOutcome(r.Context(), outcome)
	switch {
	case errors.Is(err, domain.ErrUnknownReference):
		metrics.IncWebhookDelivery(provider, string(model.DeliveryIgnored))
		log.Warn().Int64("reference", outcome.Reference).Msg("IPN for unknown reference, dropped")
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		metrics.IncWebhookDelivery(provider, string(res))
		log.Error().Err(err).Int64("reference", outcome.Reference).Msg("outcome application failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.IncWebhookDelivery(provider, string(res))
	log.Info().
		Int64("reference", outcome.Reference).
		Str("state", outcome.ProviderState).
		Str("result", string(res)).
		Msg("IPN processed")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, provider string, log *zerolog.Logger) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncWebhookDelivery(provider, string(model.DeliveryRejected))
		log.Warn().Err(err).Msg("unreadable request body")
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
