// Package seed creates the demo sign-in accounts used for manual testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"storefront/internal/domain"
)

// Registrar creates accounts with hashed passwords.
type Registrar interface {
	Register(ctx context.Context, username, password, role string) (*domain.User, error)
}

// Account is one seeded sign-in. Customer usernames must match a customer
// in the attribute store for checkout to resolve them.
type Account struct {
	Username string
	Password string
	Role     string
}

// DemoAccounts returns an admin and a customer sharing password.
func DemoAccounts(password string) []Account {
	return []Account{
		{Username: "admin", Password: password, Role: domain.RoleAdmin},
		{Username: "jdoe", Password: password, Role: domain.RoleCustomer},
	}
}

// Apply registers accounts. Existing usernames are left untouched so the
// command can be re-run.
func Apply(ctx context.Context, reg Registrar, accounts []Account, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	created := 0
	for _, a := range accounts {
		_, err := reg.Register(ctx, a.Username, a.Password, a.Role)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			logger.Printf("account %s already present", a.Username)
		case err != nil:
			return created, fmt.Errorf("register %s: %w", a.Username, err)
		default:
			created++
			logger.Printf("account %s created role=%s", a.Username, a.Role)
		}
	}
	return created, nil
}
