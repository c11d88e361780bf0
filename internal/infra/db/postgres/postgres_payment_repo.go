package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, amount, currency, months, provider, status, order_id, provider_state, last_raw_outcome, signature_valid, registered_at, last_outcome_at, description, created_at, updated_at, paid_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		orderID        *string
		providerState  *string
		lastRaw        []byte
		signatureValid *bool
		registeredAt   *time.Time
		lastOutcomeAt  *time.Time
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Months, &p.Provider, &p.Status,
		&orderID, &providerState, &lastRaw, &signatureValid, &registeredAt, &lastOutcomeAt,
		&p.Description, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if orderID != nil {
		po := &model.ProviderOrder{OrderID: *orderID, LastRawOutcome: lastRaw, LastOutcomeAt: lastOutcomeAt}
		if providerState != nil {
			po.ProviderState = *providerState
		}
		if signatureValid != nil {
			po.SignatureValid = *signatureValid
		}
		if registeredAt != nil {
			po.RegisteredAt = *registeredAt
		}
		p.ProviderOrder = po
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (user_id, amount, currency, months, provider, status, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, p.UserID, p.Amount, p.Currency, p.Months, p.Provider, p.Status, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if err := row.Scan(&p.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, provider, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND order_id=$2 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, provider, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// SetProviderOrder stores the provider order id on a pending payment and
// moves it to registered. The WHERE clause is the single-assignment guard:
// a payment that already left pending or carries an order id is not touched.
func (r *paymentRepo) SetProviderOrder(ctx context.Context, tx repository.Tx, id int64, order *model.ProviderOrder) (bool, error) {
	const q = `
UPDATE payments
   SET status=$2, order_id=$3, provider_state=$4, registered_at=$5, updated_at=NOW()
 WHERE id=$1 AND status=$6 AND order_id IS NULL;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, model.PaymentStatusRegistered, order.OrderID, order.ProviderState, order.RegisteredAt, model.PaymentStatusPending)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

// ApplyTerminalStatus is the compare-and-set transition guard: it moves a
// payment out of registered exactly once. RowsAffected()==0 means the
// payment was already terminal (duplicate delivery) or never registered.
func (r *paymentRepo) ApplyTerminalStatus(ctx context.Context, tx repository.Tx, id int64, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status=$2, paid_at=COALESCE($3, paid_at), updated_at=NOW()
 WHERE id=$1 AND status=$4;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, paidAt, model.PaymentStatusRegistered)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) RecordOutcome(ctx context.Context, tx repository.Tx, id int64, providerState string, raw []byte, signatureValid bool, at time.Time) error {
	const q = `
UPDATE payments
   SET provider_state=$2, last_raw_outcome=$3, signature_valid=$4, last_outcome_at=$5, updated_at=NOW()
 WHERE id=$1;`

	_, err := execSQL(ctx, r.pool, tx, q, id, providerState, raw, signatureValid, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListRegisteredOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`
	rows, err := queryRows(ctx, r.pool, tx, q, model.PaymentStatusRegistered, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) SumSucceededSince(ctx context.Context, tx repository.Tx, t time.Time) (map[string]int64, error) {
	const q = `SELECT currency, COALESCE(SUM(amount),0) FROM payments WHERE status='succeeded' AND paid_at >= $1 GROUP BY currency;`
	rows, err := queryRows(ctx, r.pool, tx, q, t)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	sums := make(map[string]int64)
	for rows.Next() {
		var currency string
		var sum int64
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		sums[currency] = sum
	}
	return sums, rows.Err()
}
