package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusSubmitted  OrderStatus = "Submitted"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusSubmitted,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns the known statuses in workflow order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus accepts only the exact known literals, surrounding
// whitespace aside.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.TrimSpace(raw))
	for _, known := range orderStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", NewValidation("status", "invalid status: "+raw)
}

func (s OrderStatus) String() string {
	return string(s)
}

// Order is a remote order. Only Status changes after creation.
// Version is the optimistic concurrency token returned with the read.
type Order struct {
	Key            string      `json:"key"`
	CustomerKey    string      `json:"customerKey"`
	ProductKey     string      `json:"productKey"`
	ProductName    string      `json:"productName,omitempty"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unitPriceCents"`
	TotalCents     int64       `json:"totalCents"`
	OrderDateUTC   time.Time   `json:"orderDateUtc"`
	Status         OrderStatus `json:"status"`
	Version        string      `json:"version,omitempty"`
}
