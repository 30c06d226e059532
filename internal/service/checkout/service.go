// Package checkout turns a customer's cart into remote orders, one per line.
//
// A checkout validates every line against live stock before creating any
// order, then creates orders in cart order. Each created order is written to
// a per-line ledger right away, so a retry after a partial failure reuses it
// instead of ordering the line twice. The cart is cleared only after every
// line has an order, in the same local transaction that enqueues the
// order.created notifications. Orders created before a failure are not
// compensated.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	ledgerrepo "storefront/internal/repository/ledger"
)

const tracerName = "storefront/checkout"

// Remote is the subset of the attribute store used by checkout.
type Remote interface {
	GetCustomerByUsername(ctx context.Context, username string) (domain.Customer, error)
	CreateOrder(ctx context.Context, customerKey, productKey string, quantity int, idempotencyKey string) (domain.Order, error)
}

// Products gives live product reads and drops stale cached copies.
type Products interface {
	Live(ctx context.Context, key string) (domain.Product, error)
	Invalidate(ctx context.Context, keys ...string)
}

// Lines lists a customer's cart lines in insertion order.
type Lines interface {
	ListByCustomer(ctx context.Context, customerKey string) ([]domain.CartLine, error)
}

type Service struct {
	remote   Remote
	products Products
	lines    Lines
	ledger   ledgerrepo.Repository
	metrics  *metrics.Metrics
	logger   *log.Logger
	topic    string
	newID    func() string
}

// Options carry the optional collaborators of Service.
type Options struct {
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Topic is stamped on enqueued order.created events.
	Topic string
}

func New(remote Remote, products Products, lines Lines, ledger ledgerrepo.Repository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	topic := opts.Topic
	if topic == "" {
		topic = "order-notifications"
	}
	return &Service{
		remote:   remote,
		products: products,
		lines:    lines,
		ledger:   ledger,
		metrics:  opts.Metrics,
		logger:   logger,
		topic:    topic,
		newID:    uuid.NewString,
	}
}

// Checkout orders every line of the user's cart. username is both the cart
// key and the remote customer's username.
//
// On success the returned confirmations follow cart order and include
// orders reused from an earlier partial attempt. A failure before any order
// exists for the cart leaves no side effects and is returned as its cause.
// Once an order exists, a failed creation or a failed ledger write with
// lines still to order returns *domain.PartialCheckoutError and leaves the
// cart untouched.
func (s *Service) Checkout(ctx context.Context, username string) ([]domain.OrderConfirmation, error) {
	attemptID := s.newID()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.Checkout",
		trace.WithAttributes(
			attribute.String("checkout.attempt_id", attemptID),
			attribute.String("checkout.username", username),
		))
	defer span.End()

	confs, created, err := s.checkout(ctx, attemptID, username)
	s.metrics.AddOrdersCreated(created)
	s.metrics.ObserveCheckout(outcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		s.logger.Printf("checkout: attempt=%s user=%s created=%d failed: %v", attemptID, username, created, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("checkout.orders", len(confs)))
	s.logger.Printf("checkout: attempt=%s user=%s orders=%d created=%d", attemptID, username, len(confs), created)
	return confs, nil
}

func (s *Service) checkout(ctx context.Context, attemptID, username string) ([]domain.OrderConfirmation, int, error) {
	if strings.TrimSpace(username) == "" {
		return nil, 0, domain.NewValidation("customer", "required")
	}
	customer, err := s.remote.GetCustomerByUsername(ctx, username)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve customer: %w", err)
	}

	lines, err := s.lines.ListByCustomer(ctx, username)
	if err != nil {
		return nil, 0, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, 0, domain.ErrEmptyCart
	}

	recorded, err := s.ledger.ListByCustomer(ctx, username)
	if err != nil {
		return nil, 0, fmt.Errorf("load ledger: %w", err)
	}
	committed := make(map[int64]domain.OrderConfirmation, len(recorded))
	for _, c := range recorded {
		c.Reused = true
		committed[c.CartLineID] = c
	}

	products, err := s.validate(ctx, lines, committed)
	if err != nil {
		return nil, 0, err
	}

	confs := make([]domain.OrderConfirmation, 0, len(lines))
	created := 0
	for i, line := range lines {
		if c, ok := committed[line.ID]; ok {
			confs = append(confs, c)
			continue
		}
		conf, err := s.createOrder(ctx, customer.Key, line, products[line.ProductKey])
		if err == nil {
			confs = append(confs, conf)
			created++
			err = s.record(ctx, attemptID, username, conf)
			if err == nil || !hasUncommitted(lines[i+1:], committed) {
				// with nothing left to order, completion clears the line anyway
				continue
			}
		}
		for _, rest := range lines[i+1:] {
			if c, ok := committed[rest.ID]; ok {
				confs = append(confs, c)
			}
		}
		if len(confs) == 0 {
			// nothing exists remotely for this cart, so the failure is not partial
			return nil, 0, fmt.Errorf("create order for %s: %w", line.ProductKey, err)
		}
		return nil, created, &domain.PartialCheckoutError{
			AttemptID: attemptID,
			Succeeded: confs,
			Failed:    line,
			Cause:     err,
		}
	}

	// Every line has an order now; finish even if the caller went away.
	if err := s.complete(context.WithoutCancel(ctx), attemptID, username, customer.Key, lines, confs); err != nil {
		return nil, created, fmt.Errorf("finalize checkout: %w", err)
	}
	return confs, created, nil
}

// validate checks every uncommitted line against live product data before
// any order is created.
func (s *Service) validate(ctx context.Context, lines []domain.CartLine, committed map[int64]domain.OrderConfirmation) (map[string]domain.Product, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.validate")
	defer span.End()

	products := make(map[string]domain.Product, len(lines))
	for _, line := range lines {
		if _, ok := committed[line.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.products.Live(ctx, line.ProductKey)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", line.ProductKey, err)
		}
		if line.Quantity > p.StockAvailable {
			return nil, &domain.StockError{
				ProductKey: line.ProductKey,
				Available:  p.StockAvailable,
				Requested:  line.Quantity,
			}
		}
		products[line.ProductKey] = p
	}
	return products, nil
}

func (s *Service) createOrder(ctx context.Context, customerKey string, line domain.CartLine, p domain.Product) (domain.OrderConfirmation, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderConfirmation{}, err
	}
	order, err := s.remote.CreateOrder(ctx, customerKey, line.ProductKey, line.Quantity, idempotencyKey(line.ID))
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	conf := domain.ConfirmationFromOrder(line.ID, order)
	if conf.ProductKey == "" {
		conf.ProductKey = line.ProductKey
	}
	if conf.ProductName == "" {
		conf.ProductName = p.Name
	}
	if conf.Quantity == 0 {
		conf.Quantity = line.Quantity
	}
	if conf.UnitPriceCents == 0 && conf.TotalCents == 0 {
		conf.UnitPriceCents = p.PriceCents
		conf.TotalCents = p.PriceCents * int64(line.Quantity)
	}
	return conf, nil
}

// record writes the ledger row of a created order. The order exists
// remotely, so the write does not depend on the caller staying around.
func (s *Service) record(ctx context.Context, attemptID, username string, conf domain.OrderConfirmation) error {
	err := s.ledger.Record(context.WithoutCancel(ctx), attemptID, username, conf)
	if err == nil || errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	s.logger.Printf("checkout: attempt=%s line=%d order=%s ledger write failed: %v", attemptID, conf.CartLineID, conf.OrderKey, err)
	return fmt.Errorf("record order %s: %w", conf.OrderKey, err)
}

func hasUncommitted(lines []domain.CartLine, committed map[int64]domain.OrderConfirmation) bool {
	for _, l := range lines {
		if _, ok := committed[l.ID]; !ok {
			return true
		}
	}
	return false
}

func (s *Service) complete(ctx context.Context, attemptID, username, customerKey string, lines []domain.CartLine, confs []domain.OrderConfirmation) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.complete")
	defer span.End()

	ids := make([]int64, 0, len(lines))
	keys := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
		keys = append(keys, l.ProductKey)
	}

	events := make([]domain.OutboxEvent, 0, len(confs))
	for _, c := range confs {
		payload, err := json.Marshal(domain.OrderCreated{
			AttemptID:      attemptID,
			OrderKey:       c.OrderKey,
			CustomerKey:    customerKey,
			Username:       username,
			ProductKey:     c.ProductKey,
			ProductName:    c.ProductName,
			Quantity:       c.Quantity,
			UnitPriceCents: c.UnitPriceCents,
			TotalCents:     c.TotalCents,
			OrderDateUTC:   c.OrderDateUTC,
			Status:         c.Status,
		})
		if err != nil {
			return err
		}
		events = append(events, domain.OutboxEvent{
			EventID: s.newID(),
			Topic:   s.topic,
			Key:     c.OrderKey,
			Type:    domain.EventOrderCreated,
			Payload: payload,
		})
	}

	if err := s.ledger.Complete(ctx, username, ids, events); err != nil {
		return err
	}
	s.products.Invalidate(ctx, keys...)
	return nil
}

func idempotencyKey(lineID int64) string {
	return "line-" + strconv.FormatInt(lineID, 10)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPartialCheckout):
		return "partial"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return "remote_unavailable"
	default:
		return "error"
	}
}
