package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc receives repositories bound to a single transaction.
type TxFunc func(ctx context.Context, users UserRepository, orgs OrganisationRepository) error

// Transactor runs a unit of work spanning several repositories atomically.
type Transactor interface {
	WithTransaction(ctx context.Context, fn TxFunc) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a GORM-backed transactor.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithTransaction commits when fn returns nil and rolls back otherwise.
func (t *gormTransactor) WithTransaction(ctx context.Context, fn TxFunc) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &userRepository{db: tx}, &organisationRepository{db: tx})
	})
}
