package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AuditLog records one sync mutation. Rows are only ever appended.
type AuditLog struct {
	ID            int         `gorm:"primary_key" json:"id"`
	ActorId       int         `gorm:"index;not null" json:"actor_id"`
	ActorName     string      `gorm:"size:100" json:"actor_name"`
	Action        AuditAction `gorm:"size:20;not null" json:"action"`
	ClientId      int         `gorm:"index" json:"client_id"`
	WpUserId      int         `gorm:"index" json:"wp_user_id"`
	FieldName     string      `gorm:"size:64" json:"field_name"`
	OldValue      string      `gorm:"type:text" json:"old_value"`
	NewValue      string      `gorm:"type:text" json:"new_value"`
	Source        SyncSource  `gorm:"size:20" json:"source"`
	CorrelationId string      `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "sync_audit_logs"
}

type AuditLogStore struct {
	db *gorm.DB
}

func NewAuditLogStore(db *gorm.DB) *AuditLogStore {
	return &AuditLogStore{db: db}
}

func (s *AuditLogStore) Append(ctx context.Context, entry *AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// List returns the newest entries first. clientId 0 lists every client.
func (s *AuditLogStore) List(ctx context.Context, clientId int, limit int) ([]AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var entries []AuditLog
	q := s.db.WithContext(ctx).Model(&AuditLog{})
	if clientId > 0 {
		q = q.Where("client_id = ?", clientId)
	}
	if err := q.Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
