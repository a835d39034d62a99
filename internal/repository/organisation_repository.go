package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orgapi/internal/model"
)

// OrganisationRepository defines organisation and membership persistence operations.
type OrganisationRepository interface {
	// Create inserts the organisation and a membership row for every entry of Members.
	Create(ctx context.Context, org *model.Organisation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organisation, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]model.Organisation, error)
	IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
	// AddMember is a no-op when the membership already exists.
	AddMember(ctx context.Context, orgID, userID uuid.UUID) error
}

type organisationRepository struct {
	db *gorm.DB
}

// NewOrganisationRepository builds a GORM-backed repository.
func NewOrganisationRepository(db *gorm.DB) OrganisationRepository {
	return &organisationRepository{db: db}
}

// Create creates the organisation. Member users must already exist; they are linked, not upserted.
func (r *organisationRepository) Create(ctx context.Context, org *model.Organisation) error {
	return r.db.WithContext(ctx).Omit("Owner", "Members.*").Create(org).Error
}

// FindByID finds an organisation by ID.
func (r *organisationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organisation, error) {
	var org model.Organisation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// ListByMember lists every organisation the user belongs to, oldest first.
func (r *organisationRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]model.Organisation, error) {
	var orgs []model.Organisation
	if err := r.db.WithContext(ctx).
		Joins("JOIN organisation_members om ON om.organisation_id = organisations.id").
		Where("om.user_id = ?", userID).
		Order("organisations.created_at").
		Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

// IsMember reports whether the user belongs to the organisation.
func (r *organisationRepository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("organisation_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember links a user to an organisation.
func (r *organisationRepository) AddMember(ctx context.Context, orgID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Membership{OrganisationID: orgID, UserID: userID}).Error
}
