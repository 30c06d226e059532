// Package order manages remote orders after checkout.
package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// Remote is the order surface of the attribute store.
type Remote interface {
	GetOrder(ctx context.Context, key string) (domain.Order, error)
	ListOrders(ctx context.Context, customerKey string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, key string, status domain.OrderStatus, version string) (domain.Order, error)
	DeleteOrder(ctx context.Context, key string) error
	GetCustomerByUsername(ctx context.Context, username string) (domain.Customer, error)
	GetCustomer(ctx context.Context, key string) (domain.Customer, error)
	CreateOrder(ctx context.Context, customerKey, productKey string, quantity int, idempotencyKey string) (domain.Order, error)
}

// Products gives live product reads for stock decisions.
type Products interface {
	Live(ctx context.Context, key string) (domain.Product, error)
	Invalidate(ctx context.Context, keys ...string)
}

type Service struct {
	remote   Remote
	products Products
	logger   *log.Logger
	newID    func() string
}

func New(remote Remote, products Products, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{remote: remote, products: products, logger: logger, newID: uuid.NewString}
}

// Create places a single order outside the cart. Admins order for any
// customerKey. Customers order for their own account only; an empty
// customerKey means their own. Stock is checked live, as at checkout.
func (s *Service) Create(ctx context.Context, actorUsername, role, customerKey, productKey string, quantity int) (domain.Order, error) {
	if quantity < 1 {
		return domain.Order{}, domain.NewValidation("quantity", "must be at least 1")
	}
	if strings.TrimSpace(productKey) == "" {
		return domain.Order{}, domain.NewValidation("productKey", "required")
	}
	customer, err := s.orderingCustomer(ctx, actorUsername, role, strings.TrimSpace(customerKey))
	if err != nil {
		return domain.Order{}, err
	}

	p, err := s.products.Live(ctx, productKey)
	if err != nil {
		return domain.Order{}, err
	}
	if quantity > p.StockAvailable {
		return domain.Order{}, &domain.StockError{ProductKey: productKey, Available: p.StockAvailable, Requested: quantity}
	}

	o, err := s.remote.CreateOrder(ctx, customer.Key, productKey, quantity, "order-"+s.newID())
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.products.Invalidate(context.WithoutCancel(ctx), productKey)
	s.logger.Printf("order: order=%s created by %s for customer=%s product=%s qty=%d", o.Key, actorUsername, customer.Key, productKey, quantity)
	return o, nil
}

func (s *Service) orderingCustomer(ctx context.Context, actorUsername, role, customerKey string) (domain.Customer, error) {
	switch role {
	case domain.RoleAdmin:
		if customerKey == "" {
			return domain.Customer{}, domain.NewValidation("customerKey", "required")
		}
		return s.remote.GetCustomer(ctx, customerKey)
	case domain.RoleCustomer:
		own, err := s.remote.GetCustomerByUsername(ctx, actorUsername)
		if err != nil {
			return domain.Customer{}, err
		}
		if customerKey != "" && customerKey != own.Key {
			return domain.Customer{}, fmt.Errorf("order for customer %s: %w", customerKey, domain.ErrForbidden)
		}
		return own, nil
	default:
		return domain.Customer{}, domain.ErrForbidden
	}
}

// CustomerByUsername resolves the remote customer behind a storefront username.
func (s *Service) CustomerByUsername(ctx context.Context, username string) (domain.Customer, error) {
	if strings.TrimSpace(username) == "" {
		return domain.Customer{}, domain.NewValidation("username", "required")
	}
	return s.remote.GetCustomerByUsername(ctx, username)
}

// UpdateStatus moves an order to status. Any status may follow any other.
// expectedVersion, when set, is the caller's concurrency token; otherwise
// the token of a fresh read is used. A stale token yields
// domain.ErrConcurrentModification.
func (s *Service) UpdateStatus(ctx context.Context, orderKey, status, expectedVersion string) (domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(orderKey) == "" {
		return domain.Order{}, domain.NewValidation("orderKey", "required")
	}
	current, err := s.remote.GetOrder(ctx, orderKey)
	if err != nil {
		return domain.Order{}, err
	}
	version := strings.TrimSpace(expectedVersion)
	if version == "" {
		version = current.Version
	}
	updated, err := s.remote.UpdateOrderStatus(ctx, orderKey, next, version)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.logger.Printf("order: status update order=%s version=%s rejected as stale", orderKey, version)
		}
		return domain.Order{}, fmt.Errorf("update order %s: %w", orderKey, err)
	}
	s.logger.Printf("order: order=%s status %s -> %s", orderKey, current.Status, next)
	return updated, nil
}

// DeleteOrder removes an order; an order that is already gone counts as deleted.
func (s *Service) DeleteOrder(ctx context.Context, orderKey string) error {
	if strings.TrimSpace(orderKey) == "" {
		return domain.NewValidation("orderKey", "required")
	}
	if err := s.remote.DeleteOrder(ctx, orderKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, orderKey string) (domain.Order, error) {
	return s.remote.GetOrder(ctx, orderKey)
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.remote.ListOrders(ctx, "")
	if err != nil {
		return nil, err
	}
	sortNewestFirst(orders)
	return orders, nil
}

// ListForUser returns the orders of the customer behind username, newest first.
func (s *Service) ListForUser(ctx context.Context, username string) ([]domain.Order, error) {
	customer, err := s.remote.GetCustomerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	orders, err := s.remote.ListOrders(ctx, customer.Key)
	if err != nil {
		return nil, err
	}
	// the remote filter is advisory
	mine := orders[:0]
	for _, o := range orders {
		if o.CustomerKey == "" || o.CustomerKey == customer.Key {
			mine = append(mine, o)
		}
	}
	sortNewestFirst(mine)
	return mine, nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderDateUTC.After(orders[j].OrderDateUTC)
	})
}
