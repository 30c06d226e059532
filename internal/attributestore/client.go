// Package attributestore is the typed HTTP client for the remote attribute
// store that owns customers, products and orders.
package attributestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"storefront/internal/domain"
	"storefront/internal/metrics"
)

const tracerName = "storefront/attributestore"

// Options tune the client. Zero values fall back to defaults.
type Options struct {
	Timeout     time.Duration
	Logger      *log.Logger
	Metrics     *metrics.Metrics
	HTTPClient  *http.Client
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Client talks to the attribute store façade over HTTP. All calls go
// through a circuit breaker; transport errors, 5xx responses and an open
// breaker surface as domain.ErrRemoteUnavailable.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New builds a Client for the given base URL.
func New(baseURL string, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := opts.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "attribute-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("attribute store: breaker %s %s -> %s", name, from, to)
		},
	})

	return &Client{
		http:    rc,
		breaker: breaker,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Ping reports whether calls would currently reach the attribute store. It
// makes no request; an open breaker is the only failure.
func (c *Client) Ping(context.Context) error {
	if state := c.breaker.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("breaker %s: %w", state, domain.ErrRemoteUnavailable)
	}
	return nil
}

type requestFunc func(r *resty.Request) (*resty.Response, error)

// do executes one request through the breaker. The returned response is
// non-nil whenever err is nil; 4xx statuses are left to the caller.
func (c *Client) do(ctx context.Context, op string, send requestFunc) (*resty.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "attributestore."+op)
	defer span.End()

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
		resp, err := send(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("status %d", resp.StatusCode())
		}
		return resp, nil
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		c.metrics.ObserveRemoteCall(op, "error", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "attribute store call failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Printf("attribute store: %s failed: %v", op, err)
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrRemoteUnavailable, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	c.metrics.ObserveRemoteCall(op, statusOutcome(resp.StatusCode()), elapsed)
	return resp, nil
}

func statusOutcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "ok"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusPreconditionFailed:
		return "conflict"
	default:
		return "rejected"
	}
}

// unexpected builds the error for a status the operation does not handle.
func unexpected(op string, resp *resty.Response) error {
	body := string(resp.Body())
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode(), body)
}
