package domain

import "time"

// EventOrderCreated is the outbox event type emitted once per checked-out order.
const EventOrderCreated = "order.created"

// OutboxEvent is a notification persisted alongside the state change that
// produced it and published asynchronously.
type OutboxEvent struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// OrderCreated is the payload of an order.created event.
type OrderCreated struct {
	AttemptID      string      `json:"attemptId"`
	OrderKey       string      `json:"orderKey"`
	CustomerKey    string      `json:"customerKey"`
	Username       string      `json:"username"`
	ProductKey     string      `json:"productKey"`
	ProductName    string      `json:"productName,omitempty"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unitPriceCents"`
	TotalCents     int64       `json:"totalCents"`
	OrderDateUTC   time.Time   `json:"orderDateUtc"`
	Status         OrderStatus `json:"status"`
}
