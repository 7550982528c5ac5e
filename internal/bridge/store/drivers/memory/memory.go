// Package memory provides an in-memory Store implementation. It is the
// default driver: codes and refresh tokens are short-lived enough that
// losing them on restart only forces clients back through the consent flow.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
)

type Store struct {
	mu     sync.RWMutex
	codes  map[string]domain.AuthorizationCode
	tokens map[string]domain.RefreshToken
}

func NewStore() *Store {
	return &Store{
		codes:  make(map[string]domain.AuthorizationCode),
		tokens: make(map[string]domain.RefreshToken),
	}
}

func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &authorizationCodesRepo{s} }
func (s *Store) RefreshTokens() store.RefreshTokens           { return &refreshTokensRepo{s} }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }

type authorizationCodesRepo struct {
	s *Store
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.codes[code.Code]; ok {
		return store.ErrAlreadyExists
	}
	r.s.codes[code.Code] = code
	return nil
}

func (r *authorizationCodesRepo) ConsumeAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, store.ErrNotFound
	}
	delete(r.s.codes, code)
	return record, nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	now := time.Now()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for code, record := range r.s.codes {
		if record.Expired(now) {
			delete(r.s.codes, code)
		}
	}
	return nil
}

type refreshTokensRepo struct {
	s *Store
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[t.Token]; ok {
		return store.ErrAlreadyExists
	}
	r.s.tokens[t.Token] = t
	return nil
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	record, ok := r.s.tokens[token]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return record, nil
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[token]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.tokens, token)
	return nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	now := time.Now()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for token, record := range r.s.tokens {
		if record.Expired(now) {
			delete(r.s.tokens, token)
		}
	}
	return nil
}
