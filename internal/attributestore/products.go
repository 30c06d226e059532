package attributestore

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"storefront/internal/domain"
)

// GetProduct fetches one product. A 404 maps to a NotFound error.
func (c *Client) GetProduct(ctx context.Context, key string) (domain.Product, error) {
	var dto productDTO
	resp, err := c.do(ctx, "get_product", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&dto).Get("/products/" + url.PathEscape(key))
	})
	if err != nil {
		return domain.Product{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return dto.toDomain(), nil
	case http.StatusNotFound:
		return domain.Product{}, domain.NewNotFound("product", key)
	default:
		return domain.Product{}, unexpected("get product", resp)
	}
}

// ListProducts returns the whole catalog as the store reports it.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	resp, err := c.do(ctx, "list_products", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&dtos).Get("/products")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, unexpected("list products", resp)
	}
	out := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// GetCustomer fetches a customer by key.
func (c *Client) GetCustomer(ctx context.Context, key string) (domain.Customer, error) {
	var dto customerDTO
	resp, err := c.do(ctx, "get_customer", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&dto).Get("/customers/" + url.PathEscape(key))
	})
	if err != nil {
		return domain.Customer{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return dto.toDomain(), nil
	case http.StatusNotFound:
		return domain.Customer{}, domain.NewNotFound("customer", key)
	default:
		return domain.Customer{}, unexpected("get customer", resp)
	}
}

// GetCustomerByUsername searches the store and returns the customer whose
// username matches exactly. The search endpoint matches loosely, so the
// result set is filtered here.
func (c *Client) GetCustomerByUsername(ctx context.Context, username string) (domain.Customer, error) {
	var dtos []customerDTO
	resp, err := c.do(ctx, "search_customers", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("q", username).SetResult(&dtos).Get("/customers/search")
	})
	if err != nil {
		return domain.Customer{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Customer{}, domain.NewNotFound("customer", username)
	default:
		return domain.Customer{}, unexpected("search customers", resp)
	}
	for _, d := range dtos {
		if d.Username == username {
			return d.toDomain(), nil
		}
	}
	return domain.Customer{}, domain.NewNotFound("customer", username)
}
