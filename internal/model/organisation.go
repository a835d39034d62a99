package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organisation is a tenant owned by exactly one user. The owner is always a member.
type Organisation struct {
	ID          uuid.UUID `json:"orgId" gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"size:1024"`
	OwnerID     uuid.UUID `json:"-" gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	// Relations
	Owner   *User   `json:"-" gorm:"foreignKey:OwnerID"`
	Members []*User `json:"-" gorm:"many2many:organisation_members;"`
}

// BeforeCreate sets UUID before creating the record.
func (o *Organisation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Membership is a row of the organisation_members join table.
type Membership struct {
	OrganisationID uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID         uuid.UUID `gorm:"type:char(36);primaryKey;index"`
}

// TableName overrides the default table name.
func (Membership) TableName() string {
	return "organisation_members"
}
