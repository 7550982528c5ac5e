package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
	"github.com/mcpbridge/mcpbridge/pkg/cryptox"
	"github.com/mcpbridge/mcpbridge/pkg/slogx"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrConsentRequired signals that the request did not match the
	// auto-approval policy and the caller must present a consent form.
	ErrConsentRequired = errors.New("consent_required")
)

// AuthorizeService encapsulates the OAuth2 authorization-code issuance flow.
type AuthorizeService struct {
	Store   store.Store
	Policy  ApprovalPolicy
	CodeTTL time.Duration
}

// AuthorizeRequest captures the inputs required to issue an authorization code.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Approved is set when the consent form resubmits with the explicit
	// approval flag. An approved request skips the auto-approval policy.
	Approved bool
}

// AuthorizeCodeResponse contains the authorization code and redirect information.
type AuthorizeCodeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// IssueAuthorizationCode validates the authorize request and mints a
// single-use code bound to the client, redirect URI, and PKCE challenge.
//
// The decision policy is evaluated in order, first match wins:
//
//  1. Explicit approval flag from a consent form resubmission.
//  2. Redirect URI on the allow-list (exact value or trusted-domain
//     substring), or client_id equal to the configured default.
//  3. Otherwise ErrConsentRequired; the HTTP layer renders the form.
//
// The challenge and method are stored verbatim; validation of the method
// happens at exchange time, where only S256 is honoured.
//
// Returns:
//   - (*AuthorizeCodeResponse, nil) on success
//   - (nil, ErrInvalidRequest) when response_type is not "code" or
//     redirect_uri is missing
//   - (nil, ErrConsentRequired) when the policy requires manual consent
func (s *AuthorizeService) IssueAuthorizationCode(ctx context.Context, req AuthorizeRequest) (*AuthorizeCodeResponse, error) {
	log := slogx.FromContext(ctx)

	if !strings.EqualFold(strings.TrimSpace(req.ResponseType), "code") {
		return nil, ErrInvalidRequest
	}

	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		return nil, ErrInvalidRequest
	}

	clientID := strings.TrimSpace(req.ClientID)

	if !req.Approved && !s.Policy.RedirectAutoApproved(redirectURI, clientID) {
		return nil, ErrConsentRequired
	}

	if clientID == "" {
		clientID = AnonymousClientLabel
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = domain.DefaultAuthorizationCodeTTL
	}

	now := time.Now()
	record := domain.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		CodeChallenge:       strings.TrimSpace(req.CodeChallenge),
		CodeChallengeMethod: strings.TrimSpace(req.CodeChallengeMethod),
		ExpiresAt:           now.Add(ttl),
		CreatedAt:           now,
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return nil, err
	}

	log.Info("authorization code issued",
		"client_id", clientID,
		"redirect_uri", redirectURI,
		"pkce", record.CodeChallenge != "",
	)

	return &AuthorizeCodeResponse{
		Code:        code,
		RedirectURI: redirectURI,
		State:       req.State,
	}, nil
}
