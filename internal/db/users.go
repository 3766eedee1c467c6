package db

import (
	"context"
	"strings"

	"github.com/commercekit/auth-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, username, password_hash, roles, is_active, email_verified, last_login_at, created_at, updated_at`

// CreateUser persists a new user. Email and username are normalized to
// lowercase before the insert so uniqueness is case-insensitive.
func (db *Postgres) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))

	var username *string
	if user.Username != nil {
		u := strings.ToLower(strings.TrimSpace(*user.Username))
		if u != "" {
			username = &u
		}
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, roles, is_active, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + userColumns
	row := db.Pool.QueryRow(ctx, query,
		user.ID, email, username, user.PasswordHash, user.Roles, user.IsActive, user.EmailVerified)
	return scanUser(row)
}

// GetUserByIdentifier looks a user up by email or username,
// case-insensitively.
func (db *Postgres) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, identifier))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

// TouchLastLogin records a successful login. Callers treat failures as
// non-fatal.
func (db *Postgres) TouchLastLogin(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET last_login_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := db.Pool.Exec(ctx, query, userID)
	return err
}

// SetUserActive flips the account gate and reports whether a row was
// updated.
func (db *Postgres) SetUserActive(ctx context.Context, userID string, active bool) (bool, error) {
	query := `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, userID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Roles,
		&user.IsActive,
		&user.EmailVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
