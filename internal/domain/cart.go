package domain

import "time"

// CartLine is one product held in a customer's cart awaiting checkout.
// CustomerKey is the storefront username.
type CartLine struct {
	ID          int64     `json:"id"`
	CustomerKey string    `json:"customerKey"`
	ProductKey  string    `json:"productKey"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CartView is a cart joined with live product data for display.
type CartView struct {
	CustomerKey string         `json:"customerKey"`
	Lines       []CartViewLine `json:"lineItems"`
	TotalCents  int64          `json:"totalCents"`
	// Missing lists product keys whose product no longer resolves remotely.
	Missing []string `json:"missingProducts,omitempty"`
}

type CartViewLine struct {
	ProductKey     string `json:"productKey"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	TotalCents     int64  `json:"totalCents"`
	StockAvailable int    `json:"stockAvailable"`
}
