// Package sched runs the background tickers: payment expiry and activation
// retry.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/usecase"
)

// ExpiryWorker periodically moves registered payments past their TTL into
// expired, so a provider that never calls back cannot leave orders open
// forever.
type ExpiryWorker struct {
	interval  time.Duration
	paymentUC usecase.PaymentUseCase
	log       *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, paymentUC usecase.PaymentUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, paymentUC: paymentUC, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.paymentUC.ExpireStale(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale payments expired")
			}
		}
	}
}
