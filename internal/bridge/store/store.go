package store

import (
	"context"
	"errors"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	AuthorizationCodes() AuthorizationCodes
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is still alive.
	Ping(ctx context.Context) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted authorization code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// ConsumeAuthorizationCode atomically fetches and removes a code by its
	// opaque value. Returns ErrNotFound if the code does not exist or was
	// already redeemed; of two concurrent redemptions exactly one sees the code.
	ConsumeAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error)

	// DeleteExpiredAuthorizationCodes removes any codes past their expiry.
	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshToken returns the record for an opaque token value.
	GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error)

	// DeleteRefreshToken removes a token record. Returns ErrNotFound if the
	// token was already removed; during rotation this signals that a
	// concurrent exchange won the race.
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteExpiredRefreshTokens removes tokens past their expiry.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
