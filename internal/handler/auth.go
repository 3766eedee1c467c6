package handler

import (
	"net/http"

	"github.com/commercekit/auth-service/internal/model"
	"github.com/commercekit/auth-service/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Description Sign up when ALLOW_SIGNUP is true.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Email, optional username, password"
// @Success 201 {object} model.RegisterResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request")
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.RegisterResponse{User: user.Public()})
}

// Login godoc
// @Summary Login with email or username
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Identifier and password"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request")
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.LoginResponse{
		User:         result.User.Public(),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

// Refresh godoc
// @Summary Exchange a refresh token for a new access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "Refresh token"
// @Success 200 {object} model.RefreshResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request")
		return
	}

	accessToken, expiresIn, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RefreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

// Logout godoc
// @Summary Revoke a refresh token
// @Description Reports success even for unknown tokens so session existence
// is not leaked.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} model.LogoutResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if err != service.ErrInvalidRefreshToken {
			writeAuthError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, model.LogoutResponse{Success: true})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeError(c, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
		return
	}

	user, err := h.svc.GetCurrentUser(c.Request.Context(), authUser.ID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MeResponse{User: user.Public()})
}

// RevokeUserSessions godoc
// @Summary Revoke all sessions for a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.RevokeSessionsResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/admin/users/{id}/revoke-sessions [post]
func (h *AuthHandler) RevokeUserSessions(c *gin.Context) {
	revoked, err := h.svc.RevokeAllSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.RevokeSessionsResponse{Revoked: revoked})
}

// SetUserActive godoc
// @Summary Activate or deactivate a user account
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/admin/users/{id}/active [patch]
func (h *AuthHandler) SetUserActive(c *gin.Context) {
	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request")
		return
	}

	if err := h.svc.SetUserActive(c.Request.Context(), c.Param("id"), *req.IsActive); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "updated"})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, model.ErrorResponse{Error: message, Code: code})
}

func writeAuthError(c *gin.Context, err error) {
	switch err {
	case service.ErrValidation:
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input")
	case service.ErrInvalidCredentials:
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	case service.ErrAccountDeactivated:
		writeError(c, http.StatusForbidden, "ACCOUNT_DEACTIVATED", "account deactivated")
	case service.ErrInvalidRefreshToken:
		writeError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token")
	case service.ErrRefreshTokenExpired:
		writeError(c, http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "refresh token expired")
	case service.ErrUserNotFound:
		writeError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	case service.ErrDuplicateIdentifier:
		writeError(c, http.StatusConflict, "DUPLICATE_IDENTIFIER", "identifier already in use")
	case service.ErrSignupDisabled:
		writeError(c, http.StatusForbidden, "SIGNUP_DISABLED", "signup disabled")
	default:
		writeError(c, http.StatusInternalServerError, "SERVER_ERROR", "server error")
	}
}
