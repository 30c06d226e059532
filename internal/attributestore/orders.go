package attributestore

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"storefront/internal/domain"
)

// CreateOrder places a single-line order. idempotencyKey is forwarded so a
// retried request for the same cart line is not duplicated by stores that
// honour the header.
func (c *Client) CreateOrder(ctx context.Context, customerKey, productKey string, quantity int, idempotencyKey string) (domain.Order, error) {
	var dto orderDTO
	resp, err := c.do(ctx, "create_order", func(r *resty.Request) (*resty.Response, error) {
		if idempotencyKey != "" {
			r.SetHeader("Idempotency-Key", idempotencyKey)
		}
		return r.SetBody(createOrderRequest{
			CustomerID: customerKey,
			ProductID:  productKey,
			Quantity:   quantity,
		}).SetResult(&dto).Post("/orders")
	})
	if err != nil {
		return domain.Order{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return dto.toDomain(resp.Header().Get("ETag")), nil
	case http.StatusNotFound:
		return domain.Order{}, domain.NewNotFound("product", productKey)
	case http.StatusBadRequest:
		return domain.Order{}, domain.NewValidation("order", string(resp.Body()))
	default:
		return domain.Order{}, unexpected("create order", resp)
	}
}

// GetOrder fetches an order along with its concurrency token.
func (c *Client) GetOrder(ctx context.Context, key string) (domain.Order, error) {
	var dto orderDTO
	resp, err := c.do(ctx, "get_order", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&dto).Get("/orders/" + url.PathEscape(key))
	})
	if err != nil {
		return domain.Order{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return dto.toDomain(resp.Header().Get("ETag")), nil
	case http.StatusNotFound:
		return domain.Order{}, domain.NewNotFound("order", key)
	default:
		return domain.Order{}, unexpected("get order", resp)
	}
}

// ListOrders lists orders, optionally filtered to one customer.
func (c *Client) ListOrders(ctx context.Context, customerKey string) ([]domain.Order, error) {
	var dtos []orderDTO
	resp, err := c.do(ctx, "list_orders", func(r *resty.Request) (*resty.Response, error) {
		if customerKey != "" {
			r.SetQueryParam("customerId", customerKey)
		}
		return r.SetResult(&dtos).Get("/orders")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, unexpected("list orders", resp)
	}
	out := make([]domain.Order, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(""))
	}
	return out, nil
}

// UpdateOrderStatus replaces the order status guarded by If-Match. A stale
// version yields domain.ErrConcurrentModification.
func (c *Client) UpdateOrderStatus(ctx context.Context, key string, status domain.OrderStatus, version string) (domain.Order, error) {
	var dto orderDTO
	resp, err := c.do(ctx, "update_order_status", func(r *resty.Request) (*resty.Response, error) {
		if version != "" {
			r.SetHeader("If-Match", version)
		}
		return r.SetBody(updateStatusRequest{Status: status.String()}).
			SetResult(&dto).
			Patch("/orders/" + url.PathEscape(key) + "/status")
	})
	if err != nil {
		return domain.Order{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return dto.toDomain(resp.Header().Get("ETag")), nil
	case http.StatusNoContent:
		return c.GetOrder(ctx, key)
	case http.StatusNotFound:
		return domain.Order{}, domain.NewNotFound("order", key)
	case http.StatusPreconditionFailed, http.StatusConflict:
		return domain.Order{}, domain.ErrConcurrentModification
	case http.StatusBadRequest:
		return domain.Order{}, domain.NewValidation("status", string(resp.Body()))
	default:
		return domain.Order{}, unexpected("update order status", resp)
	}
}

// DeleteOrder removes an order. Deleting a missing order is not an error.
func (c *Client) DeleteOrder(ctx context.Context, key string) error {
	resp, err := c.do(ctx, "delete_order", func(r *resty.Request) (*resty.Response, error) {
		return r.Delete("/orders/" + url.PathEscape(key))
	})
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return unexpected("delete order", resp)
	}
}
