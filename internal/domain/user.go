package domain

import "time"

const (
	RoleCustomer = "Customer"
	RoleAdmin    = "Admin"
)

// User is a local storefront account used for sign-in.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user may manage orders.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
