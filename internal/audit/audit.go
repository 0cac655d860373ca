package audit

import (
	"fmt"

	"estate/server/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      *uint
	EntityType  string
	EntityID    uint
	PropertyID  uint
	Action      models.AuditAction
	Field       string
	OldValue    string
	NewValue    string
	Description string
}

// WriteLog stores an audit row using tx, so the row commits or rolls back
// together with the change it describes.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		UserID:      opts.UserID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		PropertyID:  opts.PropertyID,
		Action:      opts.Action,
		Field:       opts.Field,
		OldValue:    opts.OldValue,
		NewValue:    opts.NewValue,
		Description: opts.Description,
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// PropertyHistory returns the events of a property and its offers, oldest first.
func PropertyHistory(db *gorm.DB, propertyID uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("property_id = ?", propertyID).
		Order("id asc").
		Find(&logs).Error
	return logs, err
}
