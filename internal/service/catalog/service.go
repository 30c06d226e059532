// Package catalog serves product reads. Display paths go through a
// read-through cache; stock decisions always use Live.
package catalog

import (
	"context"
	"errors"
	"io"
	"log"

	"golang.org/x/sync/singleflight"

	"storefront/internal/cache"
	"storefront/internal/domain"
)

// Products is the remote product source.
type Products interface {
	GetProduct(ctx context.Context, key string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type Service struct {
	remote Products
	cache  cache.ProductCache
	sfg    singleflight.Group
	logger *log.Logger
}

func New(remote Products, c cache.ProductCache, logger *log.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{remote: remote, cache: c, logger: logger}
}

// Get returns a possibly slightly stale product, suitable for display.
func (s *Service) Get(ctx context.Context, key string) (domain.Product, error) {
	if p, err := s.cache.Get(ctx, key); err == nil {
		return *p, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Printf("catalog: cache get product=%s err=%v", key, err)
	}

	// the shared fetch outlives any one waiter; the client timeout bounds it
	ch := s.sfg.DoChan(key, func() (interface{}, error) {
		return s.Live(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		return res.Val.(domain.Product), nil
	case <-ctx.Done():
		return domain.Product{}, ctx.Err()
	}
}

// Live fetches the product from the remote store and refreshes the cache.
func (s *Service) Live(ctx context.Context, key string) (domain.Product, error) {
	p, err := s.remote.GetProduct(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.Invalidate(ctx, key)
		}
		return domain.Product{}, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.Printf("catalog: cache set product=%s err=%v", key, err)
	}
	return p, nil
}

// List returns the full remote catalog, uncached.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.remote.ListProducts(ctx)
}

// Invalidate drops cached copies, e.g. after orders changed their stock.
func (s *Service) Invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.cache.Delete(ctx, k); err != nil {
			s.logger.Printf("catalog: cache delete product=%s err=%v", k, err)
		}
	}
}
