package models

import "time"

type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionDelete     AuditAction = "delete"
	AuditActionTransition AuditAction = "transition"
)

// AuditLog records lifecycle events of properties and offers.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Acting user, when known
	UserID *uint `json:"user_id"`

	// "property" or "offer"
	EntityType string `gorm:"size:50;index:idx_audit_entity" json:"entity_type"`
	EntityID   uint   `gorm:"index:idx_audit_entity" json:"entity_id"`

	// Property the event belongs to, so a listing's history includes its offers
	PropertyID uint `gorm:"index" json:"property_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Field       string      `gorm:"size:50" json:"field,omitempty"`
	OldValue    string      `gorm:"size:50" json:"old_value,omitempty"`
	NewValue    string      `gorm:"size:50" json:"new_value,omitempty"`
	Description string      `gorm:"size:255" json:"description"`
}
