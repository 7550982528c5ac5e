package sqlite

import (
	"context"
	"database/sql"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
)

type authorizationCodesRepo struct {
	db *sql.DB
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes
			(code, client_id, redirect_uri, code_challenge, code_challenge_method, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.Code,
		code.ClientID,
		code.RedirectURI,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.ExpiresAt,
		code.CreatedAt,
	)
	return err
}

// ConsumeAuthorizationCode uses DELETE ... RETURNING so the fetch and the
// removal are a single statement. Concurrent redemptions of the same code
// see the row at most once.
func (r *authorizationCodesRepo) ConsumeAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `
		DELETE FROM authorization_codes
		WHERE code = ?
		RETURNING code, client_id, redirect_uri, code_challenge, code_challenge_method, expires_at, created_at`,
		code,
	)

	var out domain.AuthorizationCode
	err := row.Scan(
		&out.Code,
		&out.ClientID,
		&out.RedirectURI,
		&out.CodeChallenge,
		&out.CodeChallengeMethod,
		&out.ExpiresAt,
		&out.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	return out, nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
