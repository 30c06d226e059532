package domain

// Customer is the remote customer profile linked to a storefront username.
type Customer struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	Surname         string `json:"surname,omitempty"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
}
