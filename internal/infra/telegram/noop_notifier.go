package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending. Used when no bot token is configured,
// e.g. in local development.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) NotifyPaymentSucceeded(ctx context.Context, userID int64, months int, provider, subURL string, expireAt time.Time) error {
	n.log.Info().
		Int64("user_id", userID).
		Int("months", months).
		Str("provider", provider).
		Msg("payment success notification (noop)")
	return nil
}
