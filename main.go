package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercekit/auth-service/internal/config"
	"github.com/commercekit/auth-service/internal/db"
	"github.com/commercekit/auth-service/internal/handler"
	"github.com/commercekit/auth-service/internal/service"
	"github.com/commercekit/auth-service/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		return err
	}

	store := &db.Postgres{Pool: pool}
	codec := token.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTokenTTL)
	authService := service.NewAuthService(store, store, codec, cfg.Auth, logger)
	authHandler := handler.NewAuthHandler(authService)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowCredentials))
	handler.RegisterRoutes(router, authHandler, authService)

	go cleanupLoop(ctx, authService, cfg.Maintenance, logger)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	go func() {
		logger.Info("listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// cleanupLoop periodically purges expired and aged revoked sessions.
func cleanupLoop(ctx context.Context, svc *service.AuthService, cfg config.MaintenanceConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := svc.CleanupSessions(ctx, cfg.RevokedRetentionDays)
			if err != nil {
				logger.Warn("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("session cleanup", "removed", removed)
			}
		}
	}
}
