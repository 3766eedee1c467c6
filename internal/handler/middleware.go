package handler

import (
	"net/http"
	"strings"

	"github.com/commercekit/auth-service/internal/model"
	"github.com/commercekit/auth-service/internal/service"
	"github.com/gin-gonic/gin"
)

const authUserKey = "auth_user"

// AuthMiddleware authenticates requests via "Authorization: Bearer <token>".
// An absent or malformed header is AUTH_REQUIRED; only a token that was
// actually presented and failed verification is INVALID_ACCESS_TOKEN.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenStr == "" {
			abortWithError(c, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
			return
		}

		user, err := authService.ParseAccessToken(tokenStr)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_ACCESS_TOKEN", "invalid access token")
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// RequireRole gates a route on a role claim from the verified access token.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required")
			return
		}
		if !user.HasRole(role) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "insufficient role")
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.JSON(status, model.ErrorResponse{Error: message, Code: code})
	c.Abort()
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
