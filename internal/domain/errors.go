package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint clash.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks bad input shape or unknown enum literals.
	ErrValidation = errors.New("validation error")
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")
	// ErrInsufficientStock marks a quantity above live availability.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConcurrentModification is returned when a version token is stale.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrRemoteUnavailable wraps transport and remote-service failures.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrForbidden is returned when the caller may not act on the target account.
	ErrForbidden = errors.New("forbidden")
	// ErrPartialCheckout marks a checkout that created some orders and then stopped.
	ErrPartialCheckout = errors.New("partial checkout failure")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound builds a NotFoundError for the given entity kind.
func NewNotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// ValidationError carries the offending field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidation builds a ValidationError.
func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StockError reports live availability for a product. It matches ErrInsufficientStock.
type StockError struct {
	ProductKey string
	Available  int
	Requested  int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d", e.ProductKey, e.Available, e.Requested)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
