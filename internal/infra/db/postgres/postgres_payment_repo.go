package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, user_id, amount_cents, currency, provider, provider_transaction_id, status, metadata, created_at, updated_at`

const pgUniqueViolation = "23505"

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row scanner) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		status string
		meta   []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.AmountCents, &p.Currency, &p.Provider, &p.ProviderTransactionID, &status, &meta, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.PaymentStatus(status)
	p.Metadata = map[string]string{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}

func mapExecErr(err error) error {
	if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", domain.ErrInvalidArgument, err)
	}
	if p.Metadata == nil {
		meta = []byte("{}")
	}
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.AmountCents, p.Currency, p.Provider, p.ProviderTransactionID, string(p.Status), meta, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `id=$1`, id)
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `provider_transaction_id=$1`, reference)
}

// TransitionIfPending is the only terminal write. The status predicate makes
// concurrent callers race on the row lock; exactly one sees a row affected.
func (r *paymentRepo) TransitionIfPending(
	ctx context.Context, tx repository.Tx, reference string, status model.PaymentStatus, ownerID string,
) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
    UPDATE payments
       SET status = $2,
           updated_at = NOW()
     WHERE provider_transaction_id = $1
       AND status = 'pending'
       AND ($3::text = '' OR user_id = $3::text)`

	cmd, err := execSQL(ctx, r.pool, tx, q, reference, string(status), ownerID)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`
	return r.list(ctx, tx, q, userID, limit)
}

func (r *paymentRepo) LatestSucceeded(ctx context.Context, tx repository.Tx, userID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 AND status='succeeded' ORDER BY created_at DESC, id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) CountByStatus(ctx context.Context, tx repository.Tx, userID string) (map[model.PaymentStatus]int64, error) {
	const q = `SELECT status, COUNT(*) FROM payments WHERE user_id=$1 GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make(map[model.PaymentStatus]int64, len(model.AllPaymentStatuses))
	for _, s := range model.AllPaymentStatuses {
		out[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.PaymentStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, after repository.PendingCursor, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments
WHERE status='pending' AND created_at < $1 AND (created_at, id) > ($2, $3)
ORDER BY created_at ASC, id ASC LIMIT $4;`
	return r.list(ctx, tx, q, olderThan, after.CreatedAt, after.ID, limit)
}
