package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	usersvc "storefront/internal/service/user"
)

func errorBody(code, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

// writeError maps domain errors onto HTTP statuses. extra fields are merged
// into the body.
func (h *handlers) writeError(c *gin.Context, err error, extra gin.H) {
	status, body := mapError(err)
	for k, v := range extra {
		body[k] = v
	}
	if status >= http.StatusInternalServerError {
		h.logger.Printf("http: %s %s failed status=%d err=%v", c.Request.Method, c.FullPath(), status, err)
	}
	c.JSON(status, body)
}

func mapError(err error) (int, gin.H) {
	var (
		partial  *domain.PartialCheckoutError
		stockErr *domain.StockError
		notFound *domain.NotFoundError
		invalid  *domain.ValidationError
	)
	switch {
	// partial first: it unwraps to its cause, which may be any other kind
	case errors.As(err, &partial):
		body := errorBody("partial_checkout", err.Error())
		body["attemptId"] = partial.AttemptID
		body["succeeded"] = partial.Succeeded
		body["failedLineId"] = partial.Failed.ID
		body["failedProductKey"] = partial.Failed.ProductKey
		return http.StatusBadGateway, body
	case errors.As(err, &stockErr):
		body := errorBody("insufficient_stock", err.Error())
		body["productKey"] = stockErr.ProductKey
		body["available"] = stockErr.Available
		body["requested"] = stockErr.Requested
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, errorBody("insufficient_stock", err.Error())
	case errors.As(err, &notFound):
		body := errorBody("not_found", err.Error())
		body["kind"] = notFound.Kind
		body["key"] = notFound.Key
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody("not_found", err.Error())
	case errors.As(err, &invalid):
		body := errorBody("validation", err.Error())
		if invalid.Field != "" {
			body["field"] = invalid.Field
		}
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorBody("validation", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict, errorBody("empty_cart", err.Error())
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusPreconditionFailed, errorBody("concurrent_modification", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorBody("already_exists", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorBody("forbidden", err.Error())
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable, errorBody("remote_unavailable", err.Error())
	case errors.Is(err, usersvc.ErrInvalidCredentials), errors.Is(err, usersvc.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody("unauthorized", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody("timeout", err.Error())
	default:
		return http.StatusInternalServerError, errorBody("internal", "internal error")
	}
}
