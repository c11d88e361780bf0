package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

// Admin API: drives the provider test pipeline and basic revenue stats.
// Every sandbox call carries the admin's id so the session can be resumed
// from any operator shell.

type sandboxStartRequest struct {
	AdminID int64 `json:"admin_id"`
}

type sandboxPaymentRequest struct {
	AdminID  int64  `json:"admin_id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Months   int    `json:"months"`
}

type sandboxSimulateRequest struct {
	AdminID int64  `json:"admin_id"`
	Outcome string `json:"outcome"` // approve|decline
}

func (s *Server) handleSandboxStart(w http.ResponseWriter, r *http.Request) {
	var req sandboxStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.admin.Sandbox.Start(r.Context(), req.AdminID)
	if err != nil {
		s.writeSandboxError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSandboxPayment(w http.ResponseWriter, r *http.Request) {
	var req sandboxPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "RUB"
	}
	if req.Months <= 0 {
		req.Months = 1
	}
	sess, err := s.admin.Sandbox.CreatePayment(r.Context(), req.AdminID, req.Amount, req.Currency, req.Months)
	if err != nil {
		s.writeSandboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSandboxLink(w http.ResponseWriter, r *http.Request) {
	var req sandboxStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, err := s.admin.Sandbox.CreateLink(r.Context(), req.AdminID)
	if err != nil {
		s.writeSandboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSandboxSimulate(w http.ResponseWriter, r *http.Request) {
	var req sandboxSimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome := adapter.SandboxOutcome(req.Outcome)
	if outcome != adapter.SandboxApprove && outcome != adapter.SandboxDecline {
		http.Error(w, "outcome must be approve or decline", http.StatusBadRequest)
		return
	}
	sess, err := s.admin.Sandbox.Simulate(r.Context(), req.AdminID, outcome)
	if err != nil {
		s.writeSandboxError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSandboxStatus(w http.ResponseWriter, r *http.Request) {
	adminID, err := strconv.ParseInt(r.URL.Query().Get("admin_id"), 10, 64)
	if err != nil || adminID == 0 {
		http.Error(w, "admin_id query parameter required", http.StatusBadRequest)
		return
	}
	payment, activation, err := s.admin.Sandbox.Check(r.Context(), adminID)
	if err != nil {
		s.writeSandboxError(w, err)
		return
	}

	resp := struct {
		PaymentID      int64                  `json:"payment_id"`
		Status         string                 `json:"status"`
		ProviderState  string                 `json:"provider_state,omitempty"`
		SignatureValid bool                   `json:"signature_valid"`
		Activation     *repository.Activation `json:"activation,omitempty"`
	}{
		PaymentID:  payment.ID,
		Status:     string(payment.Status),
		Activation: activation,
	}
	if payment.ProviderOrder != nil {
		resp.ProviderState = payment.ProviderOrder.ProviderState
		resp.SignatureValid = payment.ProviderOrder.SignatureValid
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSandboxCleanup(w http.ResponseWriter, r *http.Request) {
	var req sandboxStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.admin.Sandbox.Cleanup(r.Context(), req.AdminID); err != nil {
		s.writeSandboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRevenue totals succeeded payments per currency over the trailing
// window (default 30 days).
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}
	since := time.Now().AddDate(0, 0, -days)
	totals, err := s.admin.Payments.RevenueSince(r.Context(), since)
	if err != nil {
		http.Error(w, "failed to compute revenue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Since  time.Time        `json:"since"`
		Totals map[string]int64 `json:"totals"` // minor units per currency
	}{Since: since, Totals: totals})
}

func (s *Server) writeSandboxError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSandboxSessionState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSandboxForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("sandbox operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
