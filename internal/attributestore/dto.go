package attributestore

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type productDTO struct {
	ID             string          `json:"id"`
	ProductName    string          `json:"productName"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	StockAvailable int             `json:"stockAvailable"`
	ImageURL       string          `json:"imageUrl"`
}

func (p productDTO) toDomain() domain.Product {
	return domain.Product{
		Key:            p.ID,
		Name:           p.ProductName,
		Description:    p.Description,
		PriceCents:     toCents(p.Price),
		StockAvailable: p.StockAvailable,
		ImageURL:       p.ImageURL,
	}
}

type customerDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shippingAddress"`
}

func (c customerDTO) toDomain() domain.Customer {
	return domain.Customer{
		Key:             c.ID,
		Name:            c.Name,
		Surname:         c.Surname,
		Username:        c.Username,
		Email:           c.Email,
		ShippingAddress: c.ShippingAddress,
	}
}

type orderDTO struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	OrderDateUTC time.Time       `json:"orderDateUtc"`
	Status       string          `json:"status"`
	ETag         string          `json:"eTag,omitempty"`
}

func (o orderDTO) toDomain(etag string) domain.Order {
	unit := toCents(o.UnitPrice)
	total := toCents(o.TotalAmount)
	if total == 0 && unit != 0 {
		total = unit * int64(o.Quantity)
	}
	if etag == "" {
		etag = o.ETag
	}
	return domain.Order{
		Key:            o.ID,
		CustomerKey:    o.CustomerID,
		ProductKey:     o.ProductID,
		ProductName:    o.ProductName,
		Quantity:       o.Quantity,
		UnitPriceCents: unit,
		TotalCents:     total,
		OrderDateUTC:   o.OrderDateUTC.UTC(),
		Status:         domain.OrderStatus(strings.TrimSpace(o.Status)),
		Version:        etag,
	}
}

type createOrderRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
