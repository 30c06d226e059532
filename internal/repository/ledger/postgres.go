// Package ledger records which cart lines already produced a remote order,
// so a checkout retried after a partial failure does not order them again.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/repository/cart"
	"storefront/internal/repository/outbox"
)

type Repository interface {
	// Record stores the order created for one cart line.
	Record(ctx context.Context, attemptID, customerKey string, c domain.OrderConfirmation) error
	// ListByCustomer returns the recorded orders of the customer's open cart.
	ListByCustomer(ctx context.Context, customerKey string) ([]domain.OrderConfirmation, error)
	// Complete deletes the checked-out lines with their ledger rows and
	// enqueues events, atomically.
	Complete(ctx context.Context, customerKey string, lineIDs []int64, events []domain.OutboxEvent) error
}

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Record(ctx context.Context, attemptID, customerKey string, c domain.OrderConfirmation) error {
	const q = `
INSERT INTO checkout_ledger (
    cart_line_id, attempt_id, customer_key, product_key, product_name, quantity,
    order_key, unit_price_cents, total_cents, order_date_utc, status
) VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (cart_line_id) DO NOTHING
`
	cmd, err := r.pool.Exec(ctx, q,
		c.CartLineID,
		attemptID,
		customerKey,
		c.ProductKey,
		c.ProductName,
		c.Quantity,
		c.OrderKey,
		c.UnitPriceCents,
		c.TotalCents,
		c.OrderDateUTC,
		c.Status.String(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("cart line %d: %w", c.CartLineID, domain.ErrNotFound)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("cart line %d: %w", c.CartLineID, domain.ErrAlreadyExists)
	}
	return nil
}

func (r *postgresRepo) ListByCustomer(ctx context.Context, customerKey string) ([]domain.OrderConfirmation, error) {
	const q = `
SELECT cart_line_id, order_key, product_key, product_name, quantity,
       unit_price_cents, total_cents, order_date_utc, status
FROM checkout_ledger
WHERE customer_key = $1
ORDER BY cart_line_id
`
	rows, err := r.pool.Query(ctx, q, customerKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderConfirmation
	for rows.Next() {
		var c domain.OrderConfirmation
		var status string
		if err := rows.Scan(
			&c.CartLineID,
			&c.OrderKey,
			&c.ProductKey,
			&c.ProductName,
			&c.Quantity,
			&c.UnitPriceCents,
			&c.TotalCents,
			&c.OrderDateUTC,
			&status,
		); err != nil {
			r.logger.Printf("ledger repo: scan customer=%s err=%v", customerKey, err)
			return nil, err
		}
		c.Status = domain.OrderStatus(status)
		c.OrderDateUTC = c.OrderDateUTC.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Complete(ctx context.Context, customerKey string, lineIDs []int64, events []domain.OutboxEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM checkout_ledger WHERE customer_key = $1 AND cart_line_id = ANY($2)`, customerKey, lineIDs); err != nil {
		return err
	}
	removed, err := cart.DeleteLinesTx(ctx, tx, customerKey, lineIDs)
	if err != nil {
		return err
	}
	if removed != int64(len(lineIDs)) {
		r.logger.Printf("ledger repo: complete customer=%s removed %d of %d lines", customerKey, removed, len(lineIDs))
	}
	if err := outbox.InsertTx(ctx, tx, events); err != nil {
		return fmt.Errorf("enqueue events: %w", err)
	}
	return tx.Commit(ctx)
}
