package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"orgapi/docs"
	"orgapi/internal/auth"
	"orgapi/internal/cache"
	"orgapi/internal/config"
	"orgapi/internal/db"
	"orgapi/internal/handler"
	"orgapi/internal/logging"
	"orgapi/internal/metrics"
	"orgapi/internal/middleware"
	"orgapi/internal/repository"
	"orgapi/internal/router"
	"orgapi/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title Organisation API
// @version 1.0
// @description Users, organisations and membership with JWT authentication.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return err
	}

	if cfg.ResetDB {
		slog.Warn("RESET_DB=true detected, dropping all tables")
		db.Reset(gormDB)
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		slog.Warn("redis unreachable, running without cache or token revocation", "addr", cfg.RedisAddr, "error", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(gormDB)
	orgRepo := repository.NewOrganisationRepository(gormDB)
	transactor := repository.NewTransactor(gormDB)

	// Auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Services
	authService := service.NewAuthService(transactor, userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient, cfg.UserCacheTTL)
	orgService := service.NewOrganisationService(orgRepo, userRepo, cacheClient)

	e := echo.New()
	e.HideBanner = true
	router.Register(
		e,
		metrics.New(),
		middleware.Authenticate(middleware.AuthConfig{JWT: jwtService, Tokens: tokenStore, Users: userService}),
		handler.NewAuthHandler(authService),
		handler.NewOrganisationHandler(orgService, userService),
		handler.NewUserHandler(userService),
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	slog.Info("swagger documentation available", "url", swaggerURL(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		slog.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining in-flight requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func swaggerURL(cfg *config.Config) string {
	switch {
	case cfg.SwaggerHost == "":
		return "http://localhost:" + cfg.ServerPort + "/api-docs/index.html"
	case strings.HasPrefix(cfg.SwaggerHost, "http://"), strings.HasPrefix(cfg.SwaggerHost, "https://"):
		return cfg.SwaggerHost + "/api-docs/index.html"
	default:
		return "http://" + cfg.SwaggerHost + "/api-docs/index.html"
	}
}
