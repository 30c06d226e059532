package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists cart lines keyed by (customer, product).
type Repository interface {
	// AddOrIncrement creates the line with delta or adds delta to an existing one.
	AddOrIncrement(ctx context.Context, customerKey, productKey string, delta int) (*domain.CartLine, error)
	// ListByCustomer returns lines in insertion order (created_at, id).
	ListByCustomer(ctx context.Context, customerKey string) ([]domain.CartLine, error)
	Get(ctx context.Context, customerKey, productKey string) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, customerKey, productKey string, quantity int) (*domain.CartLine, error)
	Delete(ctx context.Context, customerKey, productKey string) error
}
