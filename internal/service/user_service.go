package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"orgapi/internal/cache"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
	"orgapi/internal/repository"
)

// DefaultUserCacheTTL is used when NewUserService is given a non-positive TTL.
const DefaultUserCacheTTL = 5 * time.Minute

// UserService resolves user records subject to the visibility rule.
type UserService interface {
	// GetUser returns the user with their owned organisations, or ErrUserNotFound.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetUserInSharedOrganisations returns the target only if both users share an organisation.
	GetUserInSharedOrganisations(ctx context.Context, requesterID, targetID uuid.UUID) (*model.User, error)
	// GetVisibleUser applies the lookup rule: self always, others only through a shared organisation.
	GetVisibleUser(ctx context.Context, requester *model.User, targetID uuid.UUID) (*model.User, error)
	ListOrganisationMembers(ctx context.Context, orgID uuid.UUID) ([]model.User, error)
}

type userService struct {
	repo     repository.UserRepository
	cache    *cache.Client
	cacheTTL time.Duration
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, cacheTTL time.Duration) UserService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultUserCacheTTL
	}
	return &userService{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, userCacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.repo.FindByIDWithOrganisations(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	_ = s.cache.SetJSON(ctx, userCacheKey(id), user, s.cacheTTL)
	return user, nil
}

func (s *userService) GetUserInSharedOrganisations(ctx context.Context, requesterID, targetID uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindInSharedOrganisation(ctx, requesterID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user in shared organisation: %w", err)
	}
	return user, nil
}

func (s *userService) GetVisibleUser(ctx context.Context, requester *model.User, targetID uuid.UUID) (*model.User, error) {
	if requester.ID == targetID {
		return s.GetUser(ctx, targetID)
	}
	return s.GetUserInSharedOrganisations(ctx, requester.ID, targetID)
}

func (s *userService) ListOrganisationMembers(ctx context.Context, orgID uuid.UUID) ([]model.User, error) {
	users, err := s.repo.ListByOrganisation(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organisation members: %w", err)
	}
	return users, nil
}
