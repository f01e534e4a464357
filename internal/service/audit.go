package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"genmart/internal/model"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// writeAudit appends an audit entry using tx so the entry commits or rolls
// back together with the change it describes.
func writeAudit(tx *gorm.DB, now time.Time, actor Actor, action, entity, entityID string, details any) error {
	entry := model.AuditLog{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CreatedAt: now,
		ActorID:   actor.UserID,
		Role:      string(actor.Role),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = string(b)
	}
	return tx.Create(&entry).Error
}

// AuditService reads the back-office audit trail.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// List returns entries newest first, optionally restricted to one entity kind.
func (s *AuditService) List(ctx context.Context, entity string, page Page) (PageResult[model.AuditLog], error) {
	q := s.db.WithContext(ctx).Model(&model.AuditLog{})
	if entity = strings.TrimSpace(entity); entity != "" {
		q = q.Where("entity = ?", entity)
	}
	return findPage[model.AuditLog](q, page, "id DESC")
}
