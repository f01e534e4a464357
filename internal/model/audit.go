package model

import "time"

// AuditLog records a back-office action. ID is a ULID so entries sort by time.
type AuditLog struct {
	ID        string    `gorm:"primarykey;size:26" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ActorID  string `gorm:"size:64;not null;index" json:"actor_id"`
	Role     string `gorm:"size:20;not null" json:"role"`
	Action   string `gorm:"size:64;not null" json:"action"`
	Entity   string `gorm:"size:40;not null;index:idx_audit_entity" json:"entity"`
	EntityID string `gorm:"size:64;not null;index:idx_audit_entity" json:"entity_id"`
	Details  string `gorm:"type:text" json:"details,omitempty"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Category{}, &Generator{}, &Part{},
		&Coupon{}, &Order{}, &OrderItem{},
		&ServiceRequest{}, &Listing{},
		&Review{}, &WishlistItem{},
		&SettingRow{}, &AuditLog{},
	}
}
