// Package web serves the public HTTP surface: provider webhooks, user-facing
// redirect pages, health and metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/usecase"
)

// OutcomeApplier is the narrow slice of the payment pipeline the webhook
// handlers need.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, outcome *model.PaymentOutcome) (model.DeliveryResult, error)
}

// AdminAPI bundles the operator endpoints. Nil, or an empty key, leaves them
// unmounted.
type AdminAPI struct {
	APIKey   string
	Sandbox  usecase.SandboxUseCase
	Payments usecase.PaymentUseCase
}

type Server struct {
	gateways map[string]adapter.ProviderGateway
	applier  OutcomeApplier
	admin    *AdminAPI
	botLink  string // "return to bot" link on the redirect pages
	httpSrv  *http.Server
	log      *zerolog.Logger
}

func NewServer(addr string, gateways map[string]adapter.ProviderGateway, applier OutcomeApplier, admin *AdminAPI, botLink string, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		gateways: gateways,
		applier:  applier,
		admin:    admin,
		botLink:  botLink,
		log:      &l,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook/best2pay/notify", s.handleBest2PayNotify)
	r.Post("/webhook/nowpayments/ipn", s.handleNOWPaymentsIPN)

	r.Get("/pay/success", s.handleSuccessPage)
	r.Get("/pay/fail", s.handleFailPage)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.admin != nil && s.admin.APIKey != "" {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/sandbox/start", s.handleSandboxStart)
			r.Post("/sandbox/payment", s.handleSandboxPayment)
			r.Post("/sandbox/link", s.handleSandboxLink)
			r.Post("/sandbox/simulate", s.handleSandboxSimulate)
			r.Get("/sandbox/status", s.handleSandboxStatus)
			r.Post("/sandbox/cleanup", s.handleSandboxCleanup)
			r.Get("/stats/revenue", s.handleRevenue)
		})
	}
	return r
}

// authMiddleware provides Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.admin.APIKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("webhook server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
