package repository

import (
	"context"
	"time"
)

// Activation tracks the side-effect steps run for one succeeded payment so a
// partial failure can be retried without re-granting subscription time.
type Activation struct {
	PaymentID       int64
	UserID          int64
	Months          int
	PanelExtendedAt *time.Time // step 1: panel subscription extended
	ReferralAt      *time.Time // step 2: referral bonus applied (or skipped)
	NotifiedAt      *time.Time // step 3: user notified
	CreatedAt       time.Time
}

// Done reports whether every step has completed.
func (a *Activation) Done() bool {
	return a.PanelExtendedAt != nil && a.ReferralAt != nil && a.NotifiedAt != nil
}

// ActivationRepository persists activation progress. Create is the
// exactly-once gate: a second insert for the same payment id fails with
// domain.ErrAlreadyExists.
type ActivationRepository interface {
	Create(ctx context.Context, tx Tx, a *Activation) error
	FindByPaymentID(ctx context.Context, tx Tx, paymentID int64) (*Activation, error)
	MarkStep(ctx context.Context, tx Tx, paymentID int64, step ActivationStep, at time.Time) error
	// ListIncomplete returns activations with unfinished steps for retry.
	ListIncomplete(ctx context.Context, tx Tx, limit int) ([]*Activation, error)
}

type ActivationStep string

const (
	StepPanelExtended ActivationStep = "panel_extended"
	StepReferral      ActivationStep = "referral"
	StepNotified      ActivationStep = "notified"
)
