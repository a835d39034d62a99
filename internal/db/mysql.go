package db

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"orgapi/internal/model"
)

// NewMySQL returns a connected GORM DB instance.
// Driver errors are translated so a unique-index violation surfaces as gorm.ErrDuplicatedKey.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema for every model.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&model.Organisation{}, "Members", &model.Membership{}); err != nil {
		return fmt.Errorf("setup organisation members: %w", err)
	}
	if err := db.SetupJoinTable(&model.User{}, "Organisations", &model.Membership{}); err != nil {
		return fmt.Errorf("setup user organisations: %w", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Organisation{},
		&model.Membership{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table, join table first.
func Reset(db *gorm.DB) {
	tables := []interface{}{
		&model.Membership{},
		&model.Organisation{},
		&model.User{},
	}
	for _, table := range tables {
		if err := db.Migrator().DropTable(table); err != nil {
			slog.Warn("failed to drop table (may not exist)", "error", err)
		}
	}
}
