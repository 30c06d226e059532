package token

import (
	"context"
	"time"
)

// Kinds of bearer token. Only access tokens authenticate requests.
const (
	KindAccess = "access"
)

type Token struct {
	Token     string
	UserID    int64
	Kind      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired drops the user's tokens that expired before now and
	// reports how many went away.
	DeleteExpired(ctx context.Context, userID int64, now time.Time) (int64, error)
}
