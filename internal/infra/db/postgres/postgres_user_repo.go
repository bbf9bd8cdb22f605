package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (bool, error) {
	const q = `
INSERT INTO users (id, email, level, created_at, updated_at)
VALUES ($1, NULLIF($2,''), $3, $4, $5)
ON CONFLICT (id) DO NOTHING;
`
	level := u.Level
	if level == "" {
		level = model.UserLevelFree
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, string(level), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT id, COALESCE(email,''), level, created_at, updated_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		u     model.User
		level string
	)
	if err := row.Scan(&u.ID, &u.Email, &level, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	u.Level = model.UserLevel(level)
	return &u, nil
}

// SetLevel writes only when the level differs, so repeated upgrades leave
// updated_at alone. Zero rows means unchanged or missing; the second query
// tells them apart.
func (r *PostgresUserRepo) SetLevel(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
	const q = `UPDATE users SET level=$2, updated_at=NOW() WHERE id=$1 AND level<>$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(level))
	if err != nil {
		return false, mapExecErr(err)
	}
	if cmd.RowsAffected() >= 1 {
		return true, nil
	}

	row, err := pickRow(ctx, r.pool, tx, `SELECT 1 FROM users WHERE id=$1;`, id)
	if err != nil {
		return false, err
	}
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, domain.ErrReadDatabaseRow
	}
	return false, nil
}
