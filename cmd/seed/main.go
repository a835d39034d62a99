package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"orgapi/internal/auth"
	"orgapi/internal/cache"
	"orgapi/internal/config"
	"orgapi/internal/db"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/logging"
	"orgapi/internal/repository"
	"orgapi/internal/service"
)

// SeedUser is one registration payload in the seed source.
type SeedUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// seedResult counts what happened to each entry.
type seedResult struct {
	Created int
	Skipped int
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if err := run(context.Background(), cfg); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	slog.Info("connected to database")

	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	users, err := loadSeedUsers(ctx, cfg.SeedSource)
	if err != nil {
		return err
	}
	slog.Info("loaded seed users", "source", cfg.SeedSource, "count", len(users))

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	userRepo := repository.NewUserRepository(gormDB)
	authService := service.NewAuthService(
		repository.NewTransactor(gormDB),
		userRepo,
		auth.NewJWTService(cfg.JWTSecret),
		auth.NewTokenStore(cacheClient),
	)

	res, err := seedUsers(ctx, authService, users)
	if err != nil {
		return err
	}

	slog.Info("seed completed", "created", res.Created, "skipped", res.Skipped)
	return nil
}

// loadSeedUsers reads a JSON array from a local file or an http(s) URL.
func loadSeedUsers(ctx context.Context, source string) ([]SeedUser, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(ctx, source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read seed source %s: %w", source, err)
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse seed source %s: %w", source, err)
	}
	return users, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seedUsers registers each entry. Entries rejected by validation, including
// already registered emails, are skipped; storage failures abort.
func seedUsers(ctx context.Context, svc service.AuthService, users []SeedUser) (seedResult, error) {
	var res seedResult
	for _, u := range users {
		_, _, err := svc.Register(ctx, service.UserCandidate{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Password:  u.Password,
			Phone:     u.Phone,
		})

		var vErr *apperrors.ValidationError
		switch {
		case err == nil:
			res.Created++
		case errors.As(err, &vErr):
			slog.Warn("skipping seed user", "email", u.Email, "reason", vErr.Error())
			res.Skipped++
		default:
			return res, fmt.Errorf("register %s: %w", u.Email, err)
		}
	}
	return res, nil
}
