// Package cart manages a customer's open cart lines.
package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	cartrepo "storefront/internal/repository/cart"
)

// Products resolves products for cart operations. Get may be served from a
// cache; Live always asks the remote store.
type Products interface {
	Get(ctx context.Context, key string) (domain.Product, error)
	Live(ctx context.Context, key string) (domain.Product, error)
}

type Service struct {
	repo     cartrepo.Repository
	products Products
	metrics  *metrics.Metrics
	logger   *log.Logger
}

func New(repo cartrepo.Repository, products Products, m *metrics.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, products: products, metrics: m, logger: logger}
}

// QuantityUpdate is one requested (product, quantity) pair.
type QuantityUpdate struct {
	ProductKey string `json:"productKey"`
	Quantity   int    `json:"quantity"`
}

// UpdateResult reports what UpdateQuantities applied before it stopped.
type UpdateResult struct {
	Updated   []domain.CartLine `json:"updated"`
	Removed   []string          `json:"removed"`
	NotInCart []string          `json:"notInCart"`
}

// RemoveResult tells whether RemoveFromCart found a line to delete.
type RemoveResult struct {
	ProductKey string `json:"productKey"`
	Removed    bool   `json:"removed"`
}

// AddToCart adds one unit of the product, creating the line when needed.
// Stock is not checked here; checkout validates it.
func (s *Service) AddToCart(ctx context.Context, customerKey, productKey string) (*domain.CartLine, error) {
	if err := validateKeys(customerKey, productKey); err != nil {
		return nil, err
	}
	if _, err := s.products.Live(ctx, productKey); err != nil {
		s.observe("add", err)
		return nil, err
	}
	line, err := s.repo.AddOrIncrement(ctx, customerKey, productKey, 1)
	s.observe("add", err)
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	return line, nil
}

// RemoveFromCart deletes the line. A product that is not in the cart is
// reported with Removed=false rather than as an error.
func (s *Service) RemoveFromCart(ctx context.Context, customerKey, productKey string) (RemoveResult, error) {
	if err := validateKeys(customerKey, productKey); err != nil {
		return RemoveResult{}, err
	}
	res := RemoveResult{ProductKey: productKey}
	err := s.repo.Delete(ctx, customerKey, productKey)
	switch {
	case err == nil:
		res.Removed = true
	case errors.Is(err, domain.ErrNotFound):
		err = nil
	}
	s.observe("remove", err)
	if err != nil {
		return res, fmt.Errorf("remove from cart: %w", err)
	}
	return res, nil
}

// UpdateQuantities applies the pairs in order. A quantity of zero or less
// removes the line. The first rejected pair stops the call: pairs before it
// stay applied, it and every later pair are not written. The partial result
// is returned alongside the error.
func (s *Service) UpdateQuantities(ctx context.Context, customerKey string, updates []QuantityUpdate) (UpdateResult, error) {
	var res UpdateResult
	if strings.TrimSpace(customerKey) == "" {
		return res, domain.NewValidation("customer", "required")
	}
	for _, u := range updates {
		line, err := s.applyQuantity(ctx, customerKey, u)
		switch {
		case errors.Is(err, errNotInCart):
			res.NotInCart = append(res.NotInCart, u.ProductKey)
			continue
		case err != nil:
			s.observe("update", err)
			s.logger.Printf("cart: update customer=%s product=%s stopped: %v", customerKey, u.ProductKey, err)
			return res, err
		case line == nil:
			res.Removed = append(res.Removed, u.ProductKey)
		default:
			res.Updated = append(res.Updated, *line)
		}
	}
	s.observe("update", nil)
	return res, nil
}

var errNotInCart = errors.New("product not in cart")

func (s *Service) applyQuantity(ctx context.Context, customerKey string, u QuantityUpdate) (*domain.CartLine, error) {
	if strings.TrimSpace(u.ProductKey) == "" {
		return nil, domain.NewValidation("productKey", "required")
	}
	if _, err := s.repo.Get(ctx, customerKey, u.ProductKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errNotInCart
		}
		return nil, err
	}
	if u.Quantity <= 0 {
		if err := s.repo.Delete(ctx, customerKey, u.ProductKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, nil
	}

	p, err := s.products.Live(ctx, u.ProductKey)
	if err != nil {
		return nil, err
	}
	if u.Quantity > p.StockAvailable {
		return nil, &domain.StockError{ProductKey: u.ProductKey, Available: p.StockAvailable, Requested: u.Quantity}
	}
	line, err := s.repo.SetQuantity(ctx, customerKey, u.ProductKey, u.Quantity)
	if errors.Is(err, domain.ErrNotFound) {
		// removed concurrently between the read and the write
		return nil, errNotInCart
	}
	return line, err
}

// ViewCart joins the lines with product data. Lines whose product no longer
// resolves are left in place but omitted from the view and listed in Missing.
func (s *Service) ViewCart(ctx context.Context, customerKey string) (domain.CartView, error) {
	view := domain.CartView{CustomerKey: customerKey, Lines: []domain.CartViewLine{}}
	if strings.TrimSpace(customerKey) == "" {
		return view, domain.NewValidation("customer", "required")
	}
	lines, err := s.repo.ListByCustomer(ctx, customerKey)
	if err != nil {
		return view, err
	}
	for _, l := range lines {
		p, err := s.products.Get(ctx, l.ProductKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				view.Missing = append(view.Missing, l.ProductKey)
				continue
			}
			return view, err
		}
		total := p.PriceCents * int64(l.Quantity)
		view.Lines = append(view.Lines, domain.CartViewLine{
			ProductKey:     l.ProductKey,
			ProductName:    p.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: p.PriceCents,
			TotalCents:     total,
			StockAvailable: p.StockAvailable,
		})
		view.TotalCents += total
	}
	return view, nil
}

func (s *Service) observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		outcome = "stock_exceeded"
	case errors.Is(err, domain.ErrValidation):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.ObserveCartMutation(op, outcome)
}

func validateKeys(customerKey, productKey string) error {
	if strings.TrimSpace(customerKey) == "" {
		return domain.NewValidation("customer", "required")
	}
	if strings.TrimSpace(productKey) == "" {
		return domain.NewValidation("productKey", "required")
	}
	return nil
}
