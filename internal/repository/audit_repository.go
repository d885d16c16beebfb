package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"role-service/internal/models"
)

// AuditRepository handles database operations for the security audit trail
// and user-visible notifications written by the side-effect dispatcher.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog persists a security audit entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, entry *models.SecurityAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateNotification persists a user-visible notification
func (r *AuditRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// DeleteReadNotificationsBefore deletes read notifications older than the
// cutoff. Used by the retention scheduler; audit logs are never deleted here.
func (r *AuditRepository) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
