// File: internal/usecase/sandbox_uc.go
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
)

// Compile-time check
var _ SandboxUseCase = (*sandboxUC)(nil)

// SandboxUseCase drives the admin end-to-end test pipeline against a provider
// test stand: test user, real payment, provider-simulated outcome, check,
// cleanup. Each admin has at most one session, advanced strictly in order.
type SandboxUseCase interface {
	Start(ctx context.Context, adminID int64) (*repository.SandboxSession, error)
	CreatePayment(ctx context.Context, adminID, amount int64, currency string, months int) (*repository.SandboxSession, error)
	CreateLink(ctx context.Context, adminID int64) (*repository.SandboxSession, error)
	Simulate(ctx context.Context, adminID int64, outcome adapter.SandboxOutcome) (*repository.SandboxSession, error)
	// Check reports the payment's current status and activation progress.
	// The activation is nil while no success outcome has landed.
	Check(ctx context.Context, adminID int64) (*model.Payment, *repository.Activation, error)
	Cleanup(ctx context.Context, adminID int64) error
}

const sandboxTestUserExpireDays = 1

type sandboxUC struct {
	sessions    repository.SandboxSessionRepository
	payments    repository.PaymentRepository
	activations repository.ActivationRepository
	paymentUC   PaymentUseCase
	panel       adapter.PanelClient
	gateway     adapter.ProviderGateway
	log         *zerolog.Logger
}

func NewSandboxUseCase(
	sessions repository.SandboxSessionRepository,
	payments repository.PaymentRepository,
	activations repository.ActivationRepository,
	paymentUC PaymentUseCase,
	panel adapter.PanelClient,
	gateway adapter.ProviderGateway,
	log *zerolog.Logger,
) *sandboxUC {
	l := log.With().Str("component", "SandboxUC").Logger()
	return &sandboxUC{
		sessions:    sessions,
		payments:    payments,
		activations: activations,
		paymentUC:   paymentUC,
		panel:       panel,
		gateway:     gateway,
		log:         &l,
	}
}

func (u *sandboxUC) Start(ctx context.Context, adminID int64) (*repository.SandboxSession, error) {
	if _, err := u.sessions.Get(ctx, adminID); err == nil {
		return nil, fmt.Errorf("%w: session already in progress, run cleanup first", domain.ErrSandboxSessionState)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	username := fmt.Sprintf("sandbox_%d_%d", adminID, time.Now().Unix())
	pu, err := u.panel.CreateUser(ctx, username, sandboxTestUserExpireDays, 0)
	if err != nil {
		return nil, fmt.Errorf("create test panel user: %w", err)
	}

	now := time.Now()
	s := &repository.SandboxSession{
		AdminID:   adminID,
		Step:      repository.SandboxStepUserCreated,
		PanelUUID: pu.UUID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	u.log.Info().Int64("admin_id", adminID).Str("username", username).Msg("sandbox session started")
	return s, nil
}

func (u *sandboxUC) CreatePayment(ctx context.Context, adminID, amount int64, currency string, months int) (*repository.SandboxSession, error) {
	s, err := u.require(ctx, adminID, repository.SandboxStepUserCreated)
	if err != nil {
		return nil, err
	}

	p, payURL, err := u.paymentUC.Initiate(ctx, adminID, amount, currency, months, u.gateway.Name(), "sandbox test payment")
	if err != nil {
		return nil, fmt.Errorf("create test payment: %w", err)
	}

	s.Step = repository.SandboxStepPaymentCreated
	s.PaymentID = p.ID
	if p.ProviderOrder != nil {
		s.OrderID = p.ProviderOrder.OrderID
	}
	s.PayURL = payURL
	s.Amount = amount
	s.Months = months
	s.UpdatedAt = time.Now()
	if err := u.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	u.log.Info().Int64("admin_id", adminID).Int64("payment_id", p.ID).Str("order_id", s.OrderID).Msg("sandbox payment created")
	return s, nil
}

func (u *sandboxUC) CreateLink(ctx context.Context, adminID int64) (*repository.SandboxSession, error) {
	s, err := u.require(ctx, adminID, repository.SandboxStepPaymentCreated)
	if err != nil {
		return nil, err
	}
	if s.PayURL == "" {
		url, err := u.gateway.CreatePaymentLink(ctx, s.OrderID, "")
		if err != nil {
			return nil, err
		}
		s.PayURL = url
	}
	s.Step = repository.SandboxStepLinkCreated
	s.UpdatedAt = time.Now()
	if err := u.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (u *sandboxUC) Simulate(ctx context.Context, adminID int64, outcome adapter.SandboxOutcome) (*repository.SandboxSession, error) {
	s, err := u.require(ctx, adminID, repository.SandboxStepLinkCreated)
	if err != nil {
		return nil, err
	}

	// The gateway refuses this against anything but a verified test host.
	if err := u.gateway.TriggerSandboxOutcome(ctx, s.OrderID, outcome); err != nil {
		return nil, err
	}

	s.Step = repository.SandboxStepSimulated
	s.Outcome = string(outcome)
	s.UpdatedAt = time.Now()
	if err := u.sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	u.log.Info().Int64("admin_id", adminID).Str("order_id", s.OrderID).Str("outcome", string(outcome)).Msg("sandbox outcome triggered")
	return s, nil
}

func (u *sandboxUC) Check(ctx context.Context, adminID int64) (*model.Payment, *repository.Activation, error) {
	s, err := u.require(ctx, adminID, repository.SandboxStepSimulated)
	if err != nil {
		return nil, nil, err
	}

	p, err := u.payments.FindByID(ctx, nil, s.PaymentID)
	if err != nil {
		return nil, nil, err
	}
	a, err := u.activations.FindByPaymentID(ctx, nil, s.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return p, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return p, a, nil
}

func (u *sandboxUC) Cleanup(ctx context.Context, adminID int64) error {
	s, err := u.sessions.Get(ctx, adminID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.PanelUUID != "" {
		if err := u.panel.DeleteUser(ctx, s.PanelUUID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete test panel user: %w", err)
		}
	}
	if err := u.sessions.Clear(ctx, adminID); err != nil {
		return err
	}
	u.log.Info().Int64("admin_id", adminID).Str("username", s.Username).Msg("sandbox session cleaned up")
	return nil
}

// require loads the admin's session and enforces the pipeline order.
func (u *sandboxUC) require(ctx context.Context, adminID int64, step repository.SandboxStep) (*repository.SandboxSession, error) {
	s, err := u.sessions.Get(ctx, adminID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no session, run start first", domain.ErrSandboxSessionState)
	}
	if err != nil {
		return nil, err
	}
	if s.Step != step {
		return nil, fmt.Errorf("%w: session at step %s", domain.ErrSandboxSessionState, s.Step)
	}
	return s, nil
}
