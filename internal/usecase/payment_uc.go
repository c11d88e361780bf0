// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
	"telegram-vpn-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Activator runs the post-success side effects for one payment. Invoked after
// the terminal transition has committed; failures are retried by the sweeper.
type Activator interface {
	Run(ctx context.Context, paymentID int64) error
}

type PaymentUseCase interface {
	// Initiate creates a payment, registers it with the provider and returns
	// the payment plus the URL the user follows to pay.
	Initiate(ctx context.Context, userID, amount int64, currency string, months int, provider, description string) (*model.Payment, string, error)
	// ApplyOutcome applies one authenticated provider outcome to its payment
	// and reports how the delivery was disposed of.
	ApplyOutcome(ctx context.Context, outcome *model.PaymentOutcome) (model.DeliveryResult, error)
	// ExpireStale moves registered payments past the TTL into expired.
	ExpireStale(ctx context.Context) (int, error)
	// RevenueSince totals succeeded amounts per currency since t.
	RevenueSince(ctx context.Context, t time.Time) (map[string]int64, error)
}

type paymentUC struct {
	payments    repository.PaymentRepository
	activations repository.ActivationRepository
	tm          repository.TransactionManager
	gateways    map[string]adapter.ProviderGateway
	locker      adapter.Locker
	activator   Activator

	registeredTTL time.Duration
	log           *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	activations repository.ActivationRepository,
	tm repository.TransactionManager,
	gateways map[string]adapter.ProviderGateway,
	locker adapter.Locker,
	activator Activator,
	registeredTTL time.Duration,
	log *zerolog.Logger,
) *paymentUC {
	if registeredTTL <= 0 {
		registeredTTL = 24 * time.Hour
	}
	l := log.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:      payments,
		activations:   activations,
		tm:            tm,
		gateways:      gateways,
		locker:        locker,
		activator:     activator,
		registeredTTL: registeredTTL,
		log:           &l,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, userID, amount int64, currency string, months int, provider, description string) (*model.Payment, string, error) {
	gw, ok := u.gateways[provider]
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, provider)
	}
	if amount <= 0 || months <= 0 {
		return nil, "", fmt.Errorf("%w: amount and months must be positive", domain.ErrInvalidArgument)
	}

	now := time.Now()
	p := &model.Payment{
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Months:      months,
		Provider:    provider,
		Status:      model.PaymentStatusPending,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.payments.Create(ctx, nil, p); err != nil {
		return nil, "", err
	}
	metrics.IncPayment(provider, string(model.PaymentStatusPending))

	// Two-step providers expose RegisterOrder; single-step providers refuse it
	// with ErrInvalidArgument and do everything in CreateInvoice.
	reg, err := gw.RegisterOrder(ctx, p.ID, amount, currency, description)
	if errors.Is(err, domain.ErrInvalidArgument) {
		return u.initiateInvoice(ctx, gw, p)
	}
	if err != nil {
		u.log.Error().Err(err).Int64("payment_id", p.ID).Msg("order registration failed")
		return p, "", err
	}

	order := &model.ProviderOrder{OrderID: reg.OrderID, ProviderState: reg.ProviderState, RegisteredAt: time.Now()}
	if err := u.attachOrder(ctx, p, order); err != nil {
		return p, "", err
	}

	payURL, err := gw.CreatePaymentLink(ctx, reg.OrderID, "")
	if err != nil {
		return p, "", err
	}
	return p, payURL, nil
}

func (u *paymentUC) initiateInvoice(ctx context.Context, gw adapter.ProviderGateway, p *model.Payment) (*model.Payment, string, error) {
	inv, err := gw.CreateInvoice(ctx, p.ID, p.Amount, p.Currency, p.Description)
	if err != nil {
		u.log.Error().Err(err).Int64("payment_id", p.ID).Msg("invoice creation failed")
		return p, "", err
	}
	order := &model.ProviderOrder{OrderID: inv.InvoiceID, RegisteredAt: time.Now()}
	if err := u.attachOrder(ctx, p, order); err != nil {
		return p, "", err
	}
	return p, inv.InvoiceURL, nil
}

func (u *paymentUC) attachOrder(ctx context.Context, p *model.Payment, order *model.ProviderOrder) error {
	ok, err := u.payments.SetProviderOrder(ctx, nil, p.ID, order)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: payment %d no longer pending", domain.ErrIllegalTransition, p.ID)
	}
	p.Status = model.PaymentStatusRegistered
	p.ProviderOrder = order
	metrics.IncPayment(p.Provider, string(model.PaymentStatusRegistered))
	u.log.Info().Int64("payment_id", p.ID).Str("order_id", order.OrderID).Msg("payment registered")
	return nil
}

// outcomeLockTTL bounds how long one delivery may hold a payment's lock.
const outcomeLockTTL = 30 * time.Second

func (u *paymentUC) ApplyOutcome(ctx context.Context, o *model.PaymentOutcome) (model.DeliveryResult, error) {
	key := fmt.Sprintf("payment_outcome:%d", o.Reference)
	token, err := u.locker.TryLock(ctx, key, outcomeLockTTL)
	if err != nil {
		return model.DeliveryRejected, err
	}
	defer func() { _ = u.locker.Unlock(ctx, key, token) }()

	result := model.DeliveryRejected
	var activated int64
	err = u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, o.Reference)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: reference %d", domain.ErrUnknownReference, o.Reference)
		}
		if err != nil {
			return err
		}
		if p.Provider != o.Provider {
			return fmt.Errorf("%w: reference %d belongs to provider %s", domain.ErrUnknownReference, o.Reference, p.Provider)
		}

		// Audit trail first: the raw outcome is kept even when the transition
		// is refused.
		if err := u.payments.RecordOutcome(ctx, tx, p.ID, o.ProviderState, o.Raw, true, o.ReceivedAt); err != nil {
			return err
		}

		if !o.Kind.Terminal() {
			result = model.DeliveryIgnored
			return nil
		}

		status, paidAt := terminalStatus(o)
		ok, err := u.payments.ApplyTerminalStatus(ctx, tx, p.ID, status, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			if p.Status.Terminal() {
				result = model.DeliveryDuplicate
				return nil
			}
			return fmt.Errorf("%w: %s -> %s for payment %d", domain.ErrIllegalTransition, p.Status, status, p.ID)
		}

		result = model.DeliveryAccepted
		metrics.IncPayment(p.Provider, string(status))
		if status == model.PaymentStatusSucceeded {
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
			a := &repository.Activation{PaymentID: p.ID, UserID: p.UserID, Months: p.Months, CreatedAt: time.Now()}
			if err := u.activations.Create(ctx, tx, a); err != nil {
				// The CAS above makes a second insert unreachable in practice;
				// treat it as a duplicate rather than failing the delivery.
				if errors.Is(err, domain.ErrAlreadyExists) {
					result = model.DeliveryDuplicate
					return nil
				}
				return err
			}
			activated = p.ID
		}
		return nil
	})
	if err != nil {
		return model.DeliveryRejected, err
	}

	if activated != 0 && u.activator != nil {
		if err := u.activator.Run(ctx, activated); err != nil {
			// The delivery is already accepted; the retry sweeper picks up
			// whatever step failed.
			u.log.Error().Err(err).Int64("payment_id", activated).Msg("activation incomplete, will retry")
		}
	}
	return result, nil
}

func terminalStatus(o *model.PaymentOutcome) (model.PaymentStatus, *time.Time) {
	switch o.Kind {
	case model.OutcomeSuccess:
		at := o.ReceivedAt
		return model.PaymentStatusSucceeded, &at
	case model.OutcomeExpired:
		return model.PaymentStatusExpired, nil
	default:
		return model.PaymentStatusFailed, nil
	}
}

// expireBatchSize caps one sweep so a large backlog cannot stall the worker.
const expireBatchSize = 200

func (u *paymentUC) ExpireStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-u.registeredTTL)
	stale, err := u.payments.ListRegisteredOlderThan(ctx, nil, cutoff, expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		ok, err := u.payments.ApplyTerminalStatus(ctx, nil, p.ID, model.PaymentStatusExpired, nil)
		if err != nil {
			u.log.Error().Err(err).Int64("payment_id", p.ID).Msg("expiry transition failed")
			continue
		}
		if ok {
			expired++
			metrics.IncPayment(p.Provider, string(model.PaymentStatusExpired))
			u.log.Info().Int64("payment_id", p.ID).Time("created_at", p.CreatedAt).Msg("payment expired")
		}
	}
	return expired, nil
}

func (u *paymentUC) RevenueSince(ctx context.Context, t time.Time) (map[string]int64, error) {
	return u.payments.SumSucceededSince(ctx, nil, t)
}
