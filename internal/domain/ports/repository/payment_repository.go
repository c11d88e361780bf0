package repository

import (
	"context"
	"time"

	"telegram-vpn-subscription/internal/domain/model"
)

// Tx is an opaque transaction handle. Concrete repositories accept pgx.Tx,
// *pgxpool.Conn, *pgxpool.Pool or nil (pool fallback).
type Tx = any

// TransactionManager serializes a check-then-act sequence for one payment.
type TransactionManager interface {
	// WithTx opens a transaction, invokes fn with its handle and commits,
	// rolling back if fn returns an error.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PaymentRepository owns payment persistence. Status transitions go through
// the compare-and-set methods only; plain Save never changes status of an
// existing row.
type PaymentRepository interface {
	// Create inserts a new pending payment and assigns its id (the reference).
	Create(ctx context.Context, tx Tx, p *model.Payment) error

	// FindByID returns a payment or domain.ErrNotFound. Inside a transaction
	// the row is locked FOR UPDATE.
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Payment, error)

	// FindByOrderID locates a payment by its provider order id.
	FindByOrderID(ctx context.Context, tx Tx, provider, orderID string) (*model.Payment, error)

	// SetProviderOrder stores the provider order id on a pending payment and
	// moves it to registered. Returns false when the payment was not pending
	// or already carries an order id.
	SetProviderOrder(ctx context.Context, tx Tx, id int64, order *model.ProviderOrder) (bool, error)

	// ApplyTerminalStatus atomically moves a registered payment into the given
	// terminal status. Returns false without error when the payment was not in
	// registered state, which callers treat as a duplicate delivery.
	ApplyTerminalStatus(ctx context.Context, tx Tx, id int64, status model.PaymentStatus, paidAt *time.Time) (bool, error)

	// RecordOutcome stores the latest raw provider outcome against the
	// payment's provider order for audit, regardless of transition result.
	RecordOutcome(ctx context.Context, tx Tx, id int64, providerState string, raw []byte, signatureValid bool, at time.Time) error

	// ListRegisteredOlderThan returns registered payments created before the
	// cutoff, oldest first, for expiry processing.
	ListRegisteredOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)

	// SumSucceededSince totals succeeded payment amounts per currency since t.
	SumSucceededSince(ctx context.Context, tx Tx, t time.Time) (map[string]int64, error)
}
