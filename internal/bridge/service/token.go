package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
	"github.com/mcpbridge/mcpbridge/pkg/cryptox"
	"github.com/mcpbridge/mcpbridge/pkg/jwtx"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

var (
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidGrant     = errors.New("invalid_grant")
	ErrUnsupportedGrant = errors.New("unsupported_grant_type")
)

type TokenService struct {
	Signer jwtx.Signer
	Store  store.Store
	Policy ApprovalPolicy

	Issuer       string
	AuthProvider string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code grant.
//
// The code is consumed (deleted) the moment it is looked up, before any
// further validation, so a failed exchange can never be retried with the
// same code. Validation order after consumption: expiry, client recognition,
// redirect correspondence, PKCE.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidGrant
	}

	authCode, err := s.Store.AuthorizationCodes().ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if authCode.Expired(now) {
		l.Info("authorization code expired", slog.String("client_id", authCode.ClientID))
		return nil, ErrInvalidGrant
	}

	if !s.Policy.ClientRecognized(strings.TrimSpace(clientID), authCode.ClientID) {
		l.Info("authorization_code grant client mismatch",
			slog.String("presented", clientID),
			slog.String("stored", authCode.ClientID),
		)
		return nil, ErrInvalidClient
	}

	if !RedirectCorresponds(strings.TrimSpace(redirectURI), authCode.RedirectURI) {
		return nil, ErrInvalidGrant
	}

	if !cryptox.VerifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, strings.TrimSpace(codeVerifier)) {
		return nil, ErrInvalidGrant
	}

	return s.issuePair(ctx, authCode.ClientID, now)
}

// ExchangeRefreshToken implements the OAuth2 refresh_token grant with
// rotation: the presented token is deleted before the new pair is persisted,
// so of two concurrent exchanges exactly one succeeds.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	clientID, refreshToken string,
) (*domain.TokenPair, error) {
	now := time.Now()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidGrant
	}

	record, err := s.Store.RefreshTokens().GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if record.Expired(now) {
		_ = s.Store.RefreshTokens().DeleteRefreshToken(ctx, refreshToken)
		return nil, ErrInvalidGrant
	}

	if strings.TrimSpace(clientID) != record.ClientID {
		return nil, ErrInvalidClient
	}

	// Rotation. ErrNotFound here means a concurrent exchange already
	// consumed the token and won the race.
	if err := s.Store.RefreshTokens().DeleteRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	return s.issuePair(ctx, record.ClientID, now)
}

// Revoke deletes the refresh token if the hint allows and the token exists.
// Per OAuth revocation semantics the outcome is always success; absence of
// the token is not an error.
func (s *TokenService) Revoke(ctx context.Context, token, tokenTypeHint string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	if hint := strings.TrimSpace(tokenTypeHint); hint != "" && hint != "refresh_token" {
		return
	}
	_ = s.Store.RefreshTokens().DeleteRefreshToken(ctx, token)
}

// IssuePair mints a fresh access/refresh pair for a client outside the grant
// flows.
func (s *TokenService) IssuePair(ctx context.Context, clientID string) (*domain.TokenPair, error) {
	return s.issuePair(ctx, clientID, time.Now())
}

// RedeemCallbackCode consumes a code on the browser callback leg and issues
// a pair directly. The callback caller is the same browser the code was just
// minted for, so only existence and expiry are checked; there is no client
// echo or PKCE verifier on this path.
func (s *TokenService) RedeemCallbackCode(ctx context.Context, code string) (*domain.TokenPair, error) {
	now := time.Now()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidGrant
	}

	authCode, err := s.Store.AuthorizationCodes().ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if authCode.Expired(now) {
		return nil, ErrInvalidGrant
	}

	return s.issuePair(ctx, authCode.ClientID, now)
}

func (s *TokenService) issuePair(ctx context.Context, clientID string, now time.Time) (*domain.TokenPair, error) {
	accessTTL := s.AccessTTL
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	refreshTTL := s.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = domain.DefaultRefreshTokenTTL
	}

	claims := jwtx.NewAccessClaims(clientID, s.AuthProvider, s.Issuer, accessTTL, now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	refresh := domain.RefreshToken{
		Token:     refreshOpaque,
		ClientID:  clientID,
		ExpiresAt: now.Add(refreshTTL),
		CreatedAt: now,
	}

	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}
