package token

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository over the tokens table. Rows cascade with
// their user.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, t Token) error {
	if t.Kind == "" {
		t.Kind = KindAccess
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tokens (token, user_id, kind, expires_at) VALUES ($1, $2, $3, $4)`,
		t.Token, t.UserID, t.Kind, t.ExpiresAt.UTC(),
	)
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return domain.ErrAlreadyExists
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		// no such user
		return domain.NewNotFound("user", "")
	default:
		return err
	}
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*Token, error) {
	var t Token
	err := r.pool.QueryRow(ctx,
		`SELECT token, user_id, kind, expires_at, created_at FROM tokens WHERE token = $1`,
		token,
	).Scan(&t.Token, &t.UserID, &t.Kind, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	return &t, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, userID int64, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1 AND expires_at < $2`, userID, now.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
