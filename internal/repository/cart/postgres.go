package cart

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

const lineColumns = `id, customer_key, product_key, quantity, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Repository backed by the cart_lines table.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) AddOrIncrement(ctx context.Context, customerKey, productKey string, delta int) (*domain.CartLine, error) {
	if delta < 1 {
		return nil, domain.NewValidation("quantity", "must be at least 1")
	}
	const q = `
INSERT INTO cart_lines (customer_key, product_key, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (customer_key, product_key)
DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity,
              updated_at = now()
RETURNING ` + lineColumns
	return scanLine(r.pool.QueryRow(ctx, q, customerKey, productKey, delta))
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerKey string) ([]domain.CartLine, error) {
	const q = `
SELECT ` + lineColumns + `
FROM cart_lines
WHERE customer_key = $1
ORDER BY created_at, id
`
	rows, err := r.pool.Query(ctx, q, customerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			r.logger.Printf("cart repo: scan customer=%s err=%v", customerKey, err)
			return nil, err
		}
		out = append(out, *line)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Get(ctx context.Context, customerKey, productKey string) (*domain.CartLine, error) {
	const q = `
SELECT ` + lineColumns + `
FROM cart_lines
WHERE customer_key = $1 AND product_key = $2
`
	return scanLine(r.pool.QueryRow(ctx, q, customerKey, productKey))
}

func (r *postgresRepo) SetQuantity(ctx context.Context, customerKey, productKey string, quantity int) (*domain.CartLine, error) {
	if quantity < 1 {
		return nil, domain.NewValidation("quantity", "must be at least 1")
	}
	const q = `
UPDATE cart_lines
SET quantity = $3, updated_at = now()
WHERE customer_key = $1 AND product_key = $2
RETURNING ` + lineColumns
	return scanLine(r.pool.QueryRow(ctx, q, customerKey, productKey, quantity))
}

func (r *postgresRepo) Delete(ctx context.Context, customerKey, productKey string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE customer_key = $1 AND product_key = $2`, customerKey, productKey)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLinesTx removes the given line ids of one customer inside tx and
// returns how many rows went away.
func DeleteLinesTx(ctx context.Context, tx pgx.Tx, customerKey string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE customer_key = $1 AND id = ANY($2)`, customerKey, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanLine(row pgx.Row) (*domain.CartLine, error) {
	var l domain.CartLine
	if err := row.Scan(
		&l.ID,
		&l.CustomerKey,
		&l.ProductKey,
		&l.Quantity,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}
