package domain

// Product is read from the remote attribute store. Stock is only ever
// decremented remotely as a side effect of order creation.
type Product struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PriceCents     int64  `json:"priceCents"`
	StockAvailable int    `json:"stockAvailable"`
	ImageURL       string `json:"imageUrl,omitempty"`
}
