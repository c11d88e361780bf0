// Package referral holds the referral bonus program implementations.
package referral

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.ReferralProgram = (*NoopProgram)(nil)

// NoopProgram grants nothing. Wired while no referral campaign is running so
// the activation pipeline shape stays the same with and without one.
type NoopProgram struct {
	log *zerolog.Logger
}

func NewNoopProgram(logger *zerolog.Logger) *NoopProgram {
	l := logger.With().Str("component", "ReferralProgram").Logger()
	return &NoopProgram{log: &l}
}

func (p *NoopProgram) ApplyForPayment(ctx context.Context, userID, paymentID int64, months int) (int, error) {
	p.log.Debug().Int64("user_id", userID).Int64("payment_id", paymentID).Msg("no referral campaign active")
	return 0, nil
}
