package handler

import (
	"github.com/commercekit/auth-service/internal/service"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *AuthHandler, svc *service.AuthService) {
	r.GET("/ping", Ping)
	r.GET("/", Root)

	auth := r.Group("/api/v1/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", AuthMiddleware(svc), h.Me)

	admin := r.Group("/api/v1/admin", AuthMiddleware(svc), RequireRole("admin"))
	admin.POST("/users/:id/revoke-sessions", h.RevokeUserSessions)
	admin.PATCH("/users/:id/active", h.SetUserActive)
}
