package database

import (
	"estate/server/internal/models"

	"gorm.io/gorm"
)

func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PropertyType{},
		&models.Tag{},
		&models.Partner{},
		&models.User{},
		&models.Property{},
		&models.Offer{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	// Create spatial index on coordinates
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_coordinates
		ON properties(latitude, longitude);
	`).Error
}
