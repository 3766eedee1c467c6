package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/commercekit/auth-service/internal/config"
	"github.com/commercekit/auth-service/internal/db"
	"github.com/commercekit/auth-service/internal/model"
	"github.com/commercekit/auth-service/internal/token"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength   = 8
	maxPasswordLength   = 128
	minIdentifierLength = 3
	maxIdentifierLength = 254

	defaultRole = "user"
)

// Closed error taxonomy. Every auth decision surfaces exactly one of these;
// unanticipated storage failures propagate unwrapped so callers can tell
// auth decisions from infrastructure faults.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDeactivated  = errors.New("account deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateIdentifier = errors.New("identifier already in use")
	ErrValidation          = errors.New("invalid input")
	ErrSignupDisabled      = errors.New("signup disabled")
)

// CredentialStore persists user identities.
type CredentialStore interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	TouchLastLogin(ctx context.Context, userID string) error
	SetUserActive(ctx context.Context, userID string, active bool) (bool, error)
}

// SessionStore persists refresh-token records.
type SessionStore interface {
	CreateSession(ctx context.Context, userID, refreshToken string, expiresAt time.Time) (*model.RefreshToken, error)
	GetSessionByTokenAny(ctx context.Context, refreshToken string) (*model.RefreshToken, error)
	RevokeSessionByToken(ctx context.Context, refreshToken string) (bool, error)
	RevokeAllSessionsForUser(ctx context.Context, userID string) (int64, error)
	CleanupExpiredSessions(ctx context.Context) (int64, error)
	CleanupRevokedSessionsOlderThan(ctx context.Context, days int) (int64, error)
}

// TokenCodec signs and verifies access tokens and mints refresh tokens.
type TokenCodec interface {
	SignAccessToken(userID, email string, roles []string) (string, error)
	VerifyAccessToken(tokenStr string) (*token.Claims, error)
	NewRefreshToken() (string, error)
	TTLSeconds() int64
}

type AuthService struct {
	creds       CredentialStore
	sessions    SessionStore
	codec       TokenCodec
	refreshTTL  time.Duration
	allowSignup bool
	logger      *slog.Logger
}

func NewAuthService(creds CredentialStore, sessions SessionStore, codec TokenCodec, cfg config.AuthConfig, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		creds:       creds,
		sessions:    sessions,
		codec:       codec,
		refreshTTL:  cfg.RefreshTokenTTL,
		allowSignup: cfg.AllowSignup,
		logger:      logger,
	}
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

// LoginResult bundles everything a successful login returns.
type LoginResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Register creates a user with the default role. Identifier collisions
// (case-insensitive) surface as ErrDuplicateIdentifier.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	if !s.allowSignup {
		return nil, ErrSignupDisabled
	}

	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if username != "" && (len(username) < minIdentifierLength || len(username) > 64) {
		return nil, ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{defaultRole},
		IsActive:     true,
	}
	if username != "" {
		user.Username = &username
	}

	created, err := s.creds.CreateUser(ctx, user)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	return created, nil
}

// Login verifies credentials and issues an access/refresh token pair. The
// error never reveals whether the identifier or the password was wrong.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if len(identifier) < minIdentifierLength || len(identifier) > maxIdentifierLength || password == "" {
		return nil, ErrValidation
	}

	user, err := s.creds.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.codec.SignAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.codec.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.CreateSession(ctx, user.ID, refreshToken, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	// Best effort: a granted login is not aborted over a bookkeeping write.
	if err := s.creds.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.codec.TTLSeconds(),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// presented refresh token stays usable until its own expiry or an explicit
// logout; revoked and unknown tokens are indistinguishable to the caller.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	if !token.ValidRefreshTokenFormat(refreshToken) {
		return "", 0, ErrInvalidRefreshToken
	}

	session, err := s.sessions.GetSessionByTokenAny(ctx, refreshToken)
	if err != nil {
		if db.IsNoRows(err) {
			return "", 0, ErrInvalidRefreshToken
		}
		return "", 0, err
	}

	if session.IsRevoked() {
		return "", 0, ErrInvalidRefreshToken
	}

	if !session.ExpiresAt.After(time.Now()) {
		return "", 0, ErrRefreshTokenExpired
	}

	user, err := s.creds.GetUserByID(ctx, session.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return "", 0, ErrUserNotFound
		}
		return "", 0, err
	}

	if !user.IsActive {
		return "", 0, ErrAccountDeactivated
	}

	accessToken, err := s.codec.SignAccessToken(user.ID, user.Email, user.Roles)
	if err != nil {
		return "", 0, err
	}

	return accessToken, s.codec.TTLSeconds(), nil
}

// Logout revokes the presented refresh token. Revoking an already-revoked
// token succeeds; only unknown or malformed tokens are reported.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if !token.ValidRefreshTokenFormat(refreshToken) {
		return ErrInvalidRefreshToken
	}

	if _, err := s.sessions.GetSessionByTokenAny(ctx, refreshToken); err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	_, err := s.sessions.RevokeSessionByToken(ctx, refreshToken)
	return err
}

// GetCurrentUser loads the profile behind an already-verified access token.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.creds.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	return user, nil
}

// ParseAccessToken verifies a bearer token without any storage I/O.
func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims, err := s.codec.VerifyAccessToken(tokenStr)
	if err != nil {
		return nil, token.ErrInvalidToken
	}
	return &model.AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: claims.Roles,
	}, nil
}

// RevokeAllSessions is the administrative lockout primitive.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.RevokeAllSessionsForUser(ctx, userID)
}

// SetUserActive flips the account gate. Outstanding sessions are not
// proactively revoked; the isActive check on refresh catches them.
func (s *AuthService) SetUserActive(ctx context.Context, userID string, active bool) error {
	updated, err := s.creds.SetUserActive(ctx, userID, active)
	if err != nil {
		return err
	}
	if !updated {
		return ErrUserNotFound
	}
	return nil
}

// CleanupSessions removes expired records and revoked records older than the
// retention window. Maintenance only, never on the request path.
func (s *AuthService) CleanupSessions(ctx context.Context, revokedRetentionDays int) (int64, error) {
	expired, err := s.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	revoked, err := s.sessions.CleanupRevokedSessionsOlderThan(ctx, revokedRetentionDays)
	if err != nil {
		return expired, err
	}
	return expired + revoked, nil
}

func validateEmail(email string) error {
	if len(email) < minIdentifierLength || len(email) > maxIdentifierLength {
		return ErrValidation
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ErrValidation
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrValidation
	}
	return nil
}
