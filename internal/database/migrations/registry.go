// Package migrations provides database migration management for tvqos.
package migrations

import (
	"github.com/tvqos/tvqos/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create input_sources and snapshot_records tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.InputSource{},
				&models.SnapshotRecord{},
			)
		},
		Down: func(tx *gorm.DB) error {
			if err := tx.Migrator().DropTable(&models.SnapshotRecord{}); err != nil {
				return err
			}
			return tx.Migrator().DropTable(&models.InputSource{})
		},
	}
}
