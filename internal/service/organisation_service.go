package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"orgapi/internal/cache"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
	"orgapi/internal/repository"
)

// OrganisationLookup is the outcome of fetching an organisation for a user.
// A nil Organisation means it does not exist; Access is only meaningful otherwise.
type OrganisationLookup struct {
	Organisation *model.Organisation
	Access       bool
}

// OrganisationService handles organisation and membership operations.
type OrganisationService interface {
	CreateOrganisation(ctx context.Context, owner *model.User, name, description string) (*model.Organisation, error)
	ListOrganisations(ctx context.Context, user *model.User) ([]model.Organisation, error)
	GetOrganisation(ctx context.Context, user *model.User, orgID uuid.UUID) (OrganisationLookup, error)
	// RequireMembership returns the organisation, ErrOrganisationNotFound, or ErrForbidden, in that order of precedence.
	RequireMembership(ctx context.Context, user *model.User, orgID uuid.UUID) (*model.Organisation, error)
	AddMember(ctx context.Context, orgID, userID uuid.UUID) error
}

type organisationService struct {
	orgs      repository.OrganisationRepository
	users     repository.UserRepository
	validator Validator[*model.Organisation]
	cache     *cache.Client
}

// NewOrganisationService creates a new organisation service.
func NewOrganisationService(
	orgs repository.OrganisationRepository,
	users repository.UserRepository,
	cache *cache.Client,
) OrganisationService {
	return &organisationService{
		orgs:      orgs,
		users:     users,
		validator: NewOrganisationValidator(),
		cache:     cache,
	}
}

// CreateOrganisation creates an organisation owned by and containing only owner.
func (s *organisationService) CreateOrganisation(ctx context.Context, owner *model.User, name, description string) (*model.Organisation, error) {
	org := &model.Organisation{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		OwnerID:     owner.ID,
		Members:     []*model.User{owner},
	}

	fieldErrs, err := s.validator.Validate(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("validate organisation: %w", err)
	}
	if len(fieldErrs) > 0 {
		return nil, apperrors.NewValidationError(fieldErrs)
	}

	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organisation: %w", err)
	}
	// The owner's cached record lists owned organisations.
	_ = s.cache.Delete(ctx, userCacheKey(owner.ID))

	slog.InfoContext(ctx, "organisation created", "org_id", org.ID, "owner_id", owner.ID)
	return org, nil
}

// ListOrganisations returns every organisation the user is a member of.
func (s *organisationService) ListOrganisations(ctx context.Context, user *model.User) ([]model.Organisation, error) {
	orgs, err := s.orgs.ListByMember(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}
	return orgs, nil
}

// GetOrganisation looks the organisation up regardless of caller, then checks membership separately.
func (s *organisationService) GetOrganisation(ctx context.Context, user *model.User, orgID uuid.UUID) (OrganisationLookup, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OrganisationLookup{}, nil
		}
		return OrganisationLookup{}, fmt.Errorf("find organisation: %w", err)
	}

	access, err := s.orgs.IsMember(ctx, org.ID, user.ID)
	if err != nil {
		return OrganisationLookup{}, fmt.Errorf("check membership: %w", err)
	}
	return OrganisationLookup{Organisation: org, Access: access}, nil
}

func (s *organisationService) RequireMembership(ctx context.Context, user *model.User, orgID uuid.UUID) (*model.Organisation, error) {
	lookup, err := s.GetOrganisation(ctx, user, orgID)
	if err != nil {
		return nil, err
	}
	if lookup.Organisation == nil {
		return nil, apperrors.ErrOrganisationNotFound
	}
	if !lookup.Access {
		return nil, apperrors.ErrForbidden
	}
	return lookup.Organisation, nil
}

// AddMember adds a user to an organisation. Adding an existing member is a no-op.
func (s *organisationService) AddMember(ctx context.Context, orgID, userID uuid.UUID) error {
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrOrganisationNotFound
		}
		return fmt.Errorf("find organisation: %w", err)
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	member, err := s.orgs.IsMember(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member {
		slog.DebugContext(ctx, "user already a member", "org_id", orgID, "user_id", userID)
		return nil
	}

	if err := s.orgs.AddMember(ctx, orgID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	slog.InfoContext(ctx, "member added", "org_id", orgID, "user_id", userID)
	return nil
}
