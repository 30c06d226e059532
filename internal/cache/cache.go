// Package cache holds short-lived copies of remote products for display paths.
package cache

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

type ProductCache interface {
	Get(ctx context.Context, key string) (*domain.Product, error)
	Set(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Product, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, domain.Product) error            { return nil }
func (Noop) Delete(context.Context, string) error                 { return nil }
