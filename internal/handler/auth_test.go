package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commercekit/auth-service/internal/config"
	"github.com/commercekit/auth-service/internal/model"
	"github.com/commercekit/auth-service/internal/service"
	"github.com/commercekit/auth-service/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCredentialStore struct {
	users map[string]*model.User
}

func (m *memCredentialStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	stored := *user
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.users[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (m *memCredentialStore) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	for _, user := range m.users {
		if user.Email == identifier || (user.Username != nil && *user.Username == identifier) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memCredentialStore) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (m *memCredentialStore) TouchLastLogin(ctx context.Context, userID string) error {
	return nil
}

func (m *memCredentialStore) SetUserActive(ctx context.Context, userID string, active bool) (bool, error) {
	user, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	user.IsActive = active
	return true, nil
}

type memSessionStore struct {
	sessions map[string]*model.RefreshToken
}

func (m *memSessionStore) CreateSession(ctx context.Context, userID, refreshToken string, expiresAt time.Time) (*model.RefreshToken, error) {
	session := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: token.HashRefreshToken(refreshToken),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	m.sessions[refreshToken] = session
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) GetSessionByTokenAny(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	session, ok := m.sessions[refreshToken]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (m *memSessionStore) RevokeSessionByToken(ctx context.Context, refreshToken string) (bool, error) {
	session, ok := m.sessions[refreshToken]
	if !ok || session.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	session.RevokedAt = &now
	return true, nil
}

func (m *memSessionStore) RevokeAllSessionsForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	now := time.Now()
	for _, session := range m.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
			count++
		}
	}
	return count, nil
}

func (m *memSessionStore) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *memSessionStore) CleanupRevokedSessionsOlderThan(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

type testEnv struct {
	router   *gin.Engine
	svc      *service.AuthService
	creds    *memCredentialStore
	sessions *memSessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	creds := &memCredentialStore{users: make(map[string]*model.User)}
	sessions := &memSessionStore{sessions: make(map[string]*model.RefreshToken)}
	codec := token.NewCodec([]byte("handler-test-secret"), 15*time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := service.NewAuthService(creds, sessions, codec, config.AuthConfig{
		JWTSecret:       "handler-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		AllowSignup:     true,
	}, logger)

	router := gin.New()
	RegisterRoutes(router, NewAuthHandler(svc), svc)

	return &testEnv{router: router, svc: svc, creds: creds, sessions: sessions}
}

func (e *testEnv) register(t *testing.T, email, password string) *model.User {
	t.Helper()
	user, err := e.svc.Register(context.Background(), email, "", password)
	require.NoError(t, err)
	return user
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/auth/login", `{"identifier":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestLoginResponseOmitsPasswordHash(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "secret123")

	w := env.do(http.MethodPost, "/api/v1/auth/login",
		`{"identifier":"alice@example.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, body, user.PasswordHash)

	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
}

func TestLoginInvalidCredentialsCode(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "secret123")

	w := env.do(http.MethodPost, "/api/v1/auth/login",
		`{"identifier":"alice@example.com","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))
}

func TestMeRequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_REQUIRED", errorCode(t, w))

	// A non-Bearer scheme is the same as no token at all.
	w = env.do(http.MethodGet, "/api/v1/auth/me", "", map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_REQUIRED", errorCode(t, w))

	w = env.do(http.MethodGet, "/api/v1/auth/me", "", map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_ACCESS_TOKEN", errorCode(t, w))
}

func TestMeReturnsCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "secret123")

	result, err := env.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/api/v1/auth/me", "",
		map[string]string{"Authorization": "Bearer " + result.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)

	// Unknown and malformed tokens still acknowledge success so session
	// existence is not leaked.
	w := env.do(http.MethodPost, "/api/v1/auth/logout", `{"refreshToken":"garbage"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.LogoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestRefreshErrorCodes(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "secret123")

	result, err := env.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"garbage"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", errorCode(t, w))

	env.sessions.sessions[result.RefreshToken].ExpiresAt = time.Now().Add(-time.Minute)

	w = env.do(http.MethodPost, "/api/v1/auth/refresh",
		fmt.Sprintf(`{"refreshToken":%q}`, result.RefreshToken), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "REFRESH_TOKEN_EXPIRED", errorCode(t, w))
}

func TestRefreshReturnsUsableToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "secret123")

	result, err := env.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/v1/auth/refresh",
		fmt.Sprintf(`{"refreshToken":%q}`, result.RefreshToken), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)

	// The refreshed access token must authenticate requests.
	w = env.do(http.MethodGet, "/api/v1/auth/me", "",
		map[string]string{"Authorization": "Bearer " + resp.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "secret123")
	admin := env.register(t, "root@example.com", "secret123")
	env.creds.users[admin.ID].Roles = []string{"user", "admin"}

	userLogin, err := env.svc.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	adminLogin, err := env.svc.Login(context.Background(), "root@example.com", "secret123")
	require.NoError(t, err)

	path := "/api/v1/admin/users/" + user.ID + "/revoke-sessions"

	w := env.do(http.MethodPost, path, "", map[string]string{"Authorization": "Bearer " + userLogin.AccessToken})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = env.do(http.MethodPost, path, "", map[string]string{"Authorization": "Bearer " + adminLogin.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.RevokeSessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Revoked)
}

func TestSetUserActiveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@example.com", "secret123")
	admin := env.register(t, "root@example.com", "secret123")
	env.creds.users[admin.ID].Roles = []string{"user", "admin"}

	adminLogin, err := env.svc.Login(context.Background(), "root@example.com", "secret123")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + adminLogin.AccessToken}

	w := env.do(http.MethodPatch, "/api/v1/admin/users/"+user.ID+"/active", `{"isActive":false}`, auth)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = env.svc.Login(context.Background(), "alice@example.com", "secret123")
	assert.ErrorIs(t, err, service.ErrAccountDeactivated)

	w = env.do(http.MethodPatch, "/api/v1/admin/users/"+uuid.NewString()+"/active", `{"isActive":true}`, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", errorCode(t, w))
}
