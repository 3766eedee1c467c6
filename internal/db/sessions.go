package db

import (
	"context"
	"time"

	"github.com/commercekit/auth-service/internal/model"
	"github.com/commercekit/auth-service/internal/token"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, token_hash, expires_at, revoked_at, created_at`

// CreateSession stores a refresh-token record. Only the SHA-256 hash of the
// token is persisted.
func (db *Postgres) CreateSession(ctx context.Context, userID, refreshToken string, expiresAt time.Time) (*model.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + sessionColumns
	row := db.Pool.QueryRow(ctx, query,
		uuid.NewString(), userID, token.HashRefreshToken(refreshToken), expiresAt)
	return scanSession(row)
}

// GetActiveSessionByToken returns the record only while it is usable:
// unrevoked and unexpired.
func (db *Postgres) GetActiveSessionByToken(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	return scanSession(db.Pool.QueryRow(ctx, query, token.HashRefreshToken(refreshToken)))
}

// GetSessionByTokenAny returns the record regardless of revocation or
// expiry, so callers can distinguish unknown tokens from dead ones.
func (db *Postgres) GetSessionByTokenAny(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	return scanSession(db.Pool.QueryRow(ctx, query, token.HashRefreshToken(refreshToken)))
}

// RevokeSessionByToken marks a record revoked and reports whether a row
// changed. Unknown or already-revoked tokens yield false, not an error.
func (db *Postgres) RevokeSessionByToken(ctx context.Context, refreshToken string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`
	tag, err := db.Pool.Exec(ctx, query, token.HashRefreshToken(refreshToken))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllSessionsForUser bulk-revokes every live session a user holds.
func (db *Postgres) RevokeAllSessionsForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	tag, err := db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) CountActiveSessionsForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	var count int64
	if err := db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CleanupExpiredSessions deletes records past their expiry. Single-statement
// delete, safe to run alongside live traffic.
func (db *Postgres) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CleanupRevokedSessionsOlderThan deletes records revoked more than the
// given number of days ago.
func (db *Postgres) CleanupRevokedSessionsOlderThan(ctx context.Context, days int) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE revoked_at IS NOT NULL AND revoked_at < NOW() - ($1 * INTERVAL '1 day')
	`
	tag, err := db.Pool.Exec(ctx, query, days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*model.RefreshToken, error) {
	var session model.RefreshToken
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
