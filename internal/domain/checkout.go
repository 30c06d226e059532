package domain

import (
	"fmt"
	"time"
)

// OrderConfirmation describes one order created for one cart line.
type OrderConfirmation struct {
	CartLineID     int64       `json:"cartLineId"`
	OrderKey       string      `json:"orderKey"`
	ProductKey     string      `json:"productKey"`
	ProductName    string      `json:"productName,omitempty"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unitPriceCents"`
	TotalCents     int64       `json:"totalCents"`
	OrderDateUTC   time.Time   `json:"orderDateUtc"`
	Status         OrderStatus `json:"status"`
	// Reused is set when the order was created by an earlier attempt.
	Reused bool `json:"reused,omitempty"`
}

// ConfirmationFromOrder maps a created remote order onto its cart line.
func ConfirmationFromOrder(lineID int64, o Order) OrderConfirmation {
	return OrderConfirmation{
		CartLineID:     lineID,
		OrderKey:       o.Key,
		ProductKey:     o.ProductKey,
		ProductName:    o.ProductName,
		Quantity:       o.Quantity,
		UnitPriceCents: o.UnitPriceCents,
		TotalCents:     o.TotalCents,
		OrderDateUTC:   o.OrderDateUTC,
		Status:         o.Status,
	}
}

// PartialCheckoutError is returned when order creation failed after some
// lines were already ordered. Succeeded holds every order that exists
// remotely for this cart, including ones reused from earlier attempts.
type PartialCheckoutError struct {
	AttemptID string
	Succeeded []OrderConfirmation
	Failed    CartLine
	Cause     error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("checkout %s stopped at product %q after %d order(s): %v",
		e.AttemptID, e.Failed.ProductKey, len(e.Succeeded), e.Cause)
}

func (e *PartialCheckoutError) Is(target error) bool {
	return target == ErrPartialCheckout
}

func (e *PartialCheckoutError) Unwrap() error {
	return e.Cause
}
