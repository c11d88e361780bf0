package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/usecase"
)

const activationRetryBatch = 100

// ActivationRetryWorker re-runs activations whose side-effect steps did not
// all complete, covering panel outages and crashes between the terminal
// transition and the coordinator.
type ActivationRetryWorker struct {
	interval     time.Duration
	activationUC usecase.ActivationUseCase
	log          *zerolog.Logger
}

func NewActivationRetryWorker(interval time.Duration, activationUC usecase.ActivationUseCase, logger *zerolog.Logger) *ActivationRetryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "ActivationRetryWorker").Logger()
	return &ActivationRetryWorker{interval: interval, activationUC: activationUC, log: &l}
}

func (w *ActivationRetryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting activation retry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping activation retry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.activationUC.RetryIncomplete(ctx, activationRetryBatch)
			if err != nil {
				w.log.Error().Err(err).Msg("activation retry sweep failed")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("activations completed on retry")
			}
		}
	}
}
