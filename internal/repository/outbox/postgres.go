package outbox

import (
	"context"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

// Repository reads and acknowledges pending outbox events. Events are
// written with InsertTx inside the transaction that produced them.
type Repository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []int64) error
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

// InsertTx appends events to the outbox within tx.
func InsertTx(ctx context.Context, tx pgx.Tx, events []domain.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	const q = `
INSERT INTO outbox_events (event_id, topic, event_key, event_type, payload)
VALUES ($1::uuid, $2, $3, $4, $5::jsonb)
`
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(q, ev.EventID, ev.Topic, ev.Key, ev.Type, string(ev.Payload))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *postgresRepo) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, event_id::text, topic, event_key, event_type, payload::text, created_at
FROM outbox_events
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		var payload string
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Topic, &ev.Key, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			r.logger.Printf("outbox repo: scan err=%v", err)
			return nil, err
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *postgresRepo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `UPDATE outbox_events SET sent_at = now() WHERE id = ANY($1) AND sent_at IS NULL`, ids)
	return err
}
