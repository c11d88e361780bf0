// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// Compile-time checks
var (
	_ ActivationUseCase = (*activationUC)(nil)
	_ Activator         = (*activationUC)(nil)
)

type ActivationUseCase interface {
	// Run executes the remaining activation steps for one succeeded payment.
	// Each step is marked independently so a partial failure retries only
	// what is missing.
	Run(ctx context.Context, paymentID int64) error
	// RetryIncomplete re-runs activations with unfinished steps and returns
	// how many completed fully.
	RetryIncomplete(ctx context.Context, limit int) (int, error)
}

type activationUC struct {
	activations repository.ActivationRepository
	payments    repository.PaymentRepository
	panel       adapter.PanelClient
	referral    adapter.ReferralProgram
	notifier    adapter.Notifier
	log         *zerolog.Logger
}

func NewActivationUseCase(
	activations repository.ActivationRepository,
	payments repository.PaymentRepository,
	panel adapter.PanelClient,
	referral adapter.ReferralProgram,
	notifier adapter.Notifier,
	log *zerolog.Logger,
) *activationUC {
	l := log.With().Str("component", "ActivationUC").Logger()
	return &activationUC{
		activations: activations,
		payments:    payments,
		panel:       panel,
		referral:    referral,
		notifier:    notifier,
		log:         &l,
	}
}

func (u *activationUC) Run(ctx context.Context, paymentID int64) error {
	a, err := u.activations.FindByPaymentID(ctx, nil, paymentID)
	if err != nil {
		return err
	}
	if a.Done() {
		return nil
	}
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return err
	}

	// The panel extension is the one step that grants value; everything after
	// it is best-effort and never blocks the others.
	var panelUser *adapter.PanelUser
	if a.PanelExtendedAt == nil {
		panelUser, err = u.panel.ExtendSubscription(ctx, a.UserID, a.Months, p.Provider)
		if err != nil {
			metrics.IncActivationStep(string(repository.StepPanelExtended), "error")
			return fmt.Errorf("extend subscription for payment %d: %w", paymentID, err)
		}
		if err := u.markStep(ctx, a, repository.StepPanelExtended); err != nil {
			return err
		}
		u.log.Info().Int64("payment_id", paymentID).Int64("user_id", a.UserID).Int("months", a.Months).Msg("panel subscription extended")
	}

	var firstErr error
	if a.ReferralAt == nil {
		if err := u.runReferral(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.NotifiedAt == nil {
		if err := u.runNotify(ctx, a, p, panelUser); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (u *activationUC) runReferral(ctx context.Context, a *repository.Activation) error {
	if u.referral != nil {
		days, err := u.referral.ApplyForPayment(ctx, a.UserID, a.PaymentID, a.Months)
		if err != nil {
			metrics.IncActivationStep(string(repository.StepReferral), "error")
			u.log.Warn().Err(err).Int64("payment_id", a.PaymentID).Msg("referral bonus failed, will retry")
			return fmt.Errorf("referral for payment %d: %w", a.PaymentID, err)
		}
		if days > 0 {
			u.log.Info().Int64("payment_id", a.PaymentID).Int("bonus_days", days).Msg("referral bonus applied")
		}
	}
	return u.markStep(ctx, a, repository.StepReferral)
}

func (u *activationUC) runNotify(ctx context.Context, a *repository.Activation, p *model.Payment, panelUser *adapter.PanelUser) error {
	// On a retry the extend result from the original run is gone; the
	// notification then goes out without the link and expiry.
	var subURL string
	var expireAt time.Time
	if panelUser != nil {
		subURL = panelUser.SubURL
		expireAt = panelUser.ExpireAt
	}
	if err := u.notifier.NotifyPaymentSucceeded(ctx, a.UserID, a.Months, p.Provider, subURL, expireAt); err != nil {
		metrics.IncActivationStep(string(repository.StepNotified), "error")
		u.log.Warn().Err(err).Int64("payment_id", a.PaymentID).Msg("success notification failed, will retry")
		return fmt.Errorf("notify for payment %d: %w", a.PaymentID, err)
	}
	return u.markStep(ctx, a, repository.StepNotified)
}

func (u *activationUC) markStep(ctx context.Context, a *repository.Activation, step repository.ActivationStep) error {
	now := time.Now()
	if err := u.activations.MarkStep(ctx, nil, a.PaymentID, step, now); err != nil {
		return err
	}
	switch step {
	case repository.StepPanelExtended:
		a.PanelExtendedAt = &now
	case repository.StepReferral:
		a.ReferralAt = &now
	case repository.StepNotified:
		a.NotifiedAt = &now
	}
	metrics.IncActivationStep(string(step), "ok")
	return nil
}

func (u *activationUC) RetryIncomplete(ctx context.Context, limit int) (int, error) {
	pending, err := u.activations.ListIncomplete(ctx, nil, limit)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, a := range pending {
		if err := u.Run(ctx, a.PaymentID); err != nil {
			u.log.Warn().Err(err).Int64("payment_id", a.PaymentID).Msg("activation retry failed")
			continue
		}
		completed++
	}
	return completed, nil
}
