package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"orgapi/internal/model"
)

// UserRepository defines user persistence operations.
// Lookups return gorm.ErrRecordNotFound when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByIDWithOrganisations(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindInSharedOrganisation returns the target user only if both users are members of at least one common organisation.
	FindInSharedOrganisation(ctx context.Context, requesterID, targetID uuid.UUID) (*model.User, error)
	ListByOrganisation(ctx context.Context, orgID uuid.UUID) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit("OwnedOrganisations", "Organisations").Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDWithOrganisations(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).
		Preload("OwnedOrganisations", func(db *gorm.DB) *gorm.DB {
			return db.Order("organisations.created_at")
		}).
		Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindInSharedOrganisation(ctx context.Context, requesterID, targetID uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN organisation_members target_m ON target_m.user_id = users.id").
		Joins("JOIN organisation_members requester_m ON requester_m.organisation_id = target_m.organisation_id").
		Where("users.id = ? AND requester_m.user_id = ?", targetID, requesterID).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByOrganisation(ctx context.Context, orgID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN organisation_members om ON om.user_id = users.id").
		Where("om.organisation_id = ?", orgID).
		Order("users.created_at").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
