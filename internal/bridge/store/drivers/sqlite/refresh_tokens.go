package sqlite

import (
	"context"
	"database/sql"

	"github.com/mcpbridge/mcpbridge/internal/bridge/domain"
	"github.com/mcpbridge/mcpbridge/internal/bridge/store"
)

type refreshTokensRepo struct {
	db *sql.DB
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, client_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		t.Token,
		t.ClientID,
		t.ExpiresAt,
		t.CreatedAt,
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, client_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = ?`,
		token,
	)

	var out domain.RefreshToken
	err := row.Scan(&out.Token, &out.ClientID, &out.ExpiresAt, &out.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return out, nil
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
