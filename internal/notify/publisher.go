// Package notify drains the outbox to the order notification topic.
package notify

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	outboxrepo "storefront/internal/repository/outbox"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for brokers. Messages carry their own topic.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// LogWriter stands in for Kafka when no brokers are configured.
type LogWriter struct {
	Logger *log.Logger
}

func (w LogWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		w.Logger.Printf("notify: topic=%s key=%s value=%s", m.Topic, m.Key, m.Value)
	}
	return nil
}

func (w LogWriter) Close() error { return nil }

type Publisher struct {
	repo      outboxrepo.Repository
	writer    MessageWriter
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewPublisher(repo outboxrepo.Repository, writer MessageWriter, interval time.Duration, batchSize int, m *metrics.Metrics, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{
		repo:      repo,
		writer:    writer,
		interval:  interval,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run publishes pending events every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for {
				n, err := p.Drain(ctx)
				if err != nil || n < p.batchSize {
					break
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Drain publishes one batch of pending events and returns how many were sent.
// Events that fail to publish stay pending and are retried on the next tick,
// so consumers may see an event more than once.
func (p *Publisher) Drain(ctx context.Context) (int, error) {
	events, err := p.repo.FetchPending(ctx, p.batchSize)
	if err != nil {
		p.logger.Printf("notify: fetch pending failed: %v", err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, toMessage(ev))
		ids = append(ids, ev.ID)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.ObserveOutbox("error", len(events))
		p.logger.Printf("notify: publish %d events failed: %v", len(events), err)
		return 0, err
	}
	if err := p.repo.MarkSent(ctx, ids); err != nil {
		p.logger.Printf("notify: mark %d events sent failed: %v", len(ids), err)
		return 0, err
	}
	p.metrics.ObserveOutbox("sent", len(events))
	return len(events), nil
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessage(ev domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: ev.Topic,
		Key:   []byte(ev.Key),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
		Time: ev.CreatedAt,
	}
}
