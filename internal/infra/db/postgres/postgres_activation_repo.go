package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

var _ repository.ActivationRepository = (*activationRepo)(nil)

type activationRepo struct{ pool *pgxpool.Pool }

func NewActivationRepo(pool *pgxpool.Pool) *activationRepo {
	return &activationRepo{pool: pool}
}

const uniqueViolation = "23505"

// Create inserts the activation row for a payment. The primary key on
// payment_id makes this the exactly-once gate: a concurrent duplicate insert
// surfaces as domain.ErrAlreadyExists.
func (r *activationRepo) Create(ctx context.Context, tx repository.Tx, a *repository.Activation) error {
	const q = `
INSERT INTO activations (payment_id, user_id, months, created_at)
VALUES ($1,$2,$3,$4);`

	_, err := execSQL(ctx, r.pool, tx, q, a.PaymentID, a.UserID, a.Months, a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *activationRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID int64) (*repository.Activation, error) {
	const q = `SELECT payment_id, user_id, months, panel_extended_at, referral_at, notified_at, created_at FROM activations WHERE payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanActivation(row)
}

func (r *activationRepo) MarkStep(ctx context.Context, tx repository.Tx, paymentID int64, step repository.ActivationStep, at time.Time) error {
	var column string
	switch step {
	case repository.StepPanelExtended:
		column = "panel_extended_at"
	case repository.StepReferral:
		column = "referral_at"
	case repository.StepNotified:
		column = "notified_at"
	default:
		return domain.ErrInvalidArgument
	}
	// column name comes from the switch above, never from input
	q := `UPDATE activations SET ` + column + `=$2 WHERE payment_id=$1 AND ` + column + ` IS NULL;`
	if _, err := execSQL(ctx, r.pool, tx, q, paymentID, at); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *activationRepo) ListIncomplete(ctx context.Context, tx repository.Tx, limit int) ([]*repository.Activation, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT payment_id, user_id, months, panel_extended_at, referral_at, notified_at, created_at
  FROM activations
 WHERE panel_extended_at IS NULL OR referral_at IS NULL OR notified_at IS NULL
 ORDER BY created_at ASC
 LIMIT $1;`

	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*repository.Activation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivation(row pgx.Row) (*repository.Activation, error) {
	a := &repository.Activation{}
	if err := row.Scan(&a.PaymentID, &a.UserID, &a.Months, &a.PanelExtendedAt, &a.ReferralAt, &a.NotifiedAt, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}
