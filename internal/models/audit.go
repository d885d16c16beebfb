package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditSeverity represents the severity/importance of the audit event
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "LOW"
	SeverityMedium   AuditSeverity = "MEDIUM"
	SeverityHigh     AuditSeverity = "HIGH"
	SeverityCritical AuditSeverity = "CRITICAL"
)

// Audit event types emitted by this service.
const (
	AuditEventRoleSwitch = "ROLE_SWITCH"
)

// SecurityAuditLog is a structured security-audit entry. Role switches are
// recorded at LOW severity with before/after roles and request metadata.
type SecurityAuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	EventType string         `gorm:"type:varchar(50);not null;index" json:"event_type"`
	Severity  AuditSeverity  `gorm:"type:varchar(20);default:'LOW';index" json:"severity"`
	OldValue  datatypes.JSON `gorm:"type:jsonb" json:"old_value"`
	NewValue  datatypes.JSON `gorm:"type:jsonb" json:"new_value"`
	IPAddress string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string         `gorm:"type:text" json:"user_agent"`
	RequestID string         `gorm:"type:varchar(100);index" json:"request_id"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	Timestamp time.Time      `gorm:"index;not null" json:"timestamp"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (SecurityAuditLog) TableName() string {
	return "security_audit_logs"
}

// BeforeCreate hook to set timestamp
func (a *SecurityAuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return nil
}

// Notification is a user-visible notification record created as a
// fire-and-forget side effect of a committed role switch.
type Notification struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      string     `gorm:"type:varchar(50);not null" json:"type"`
	Title     string     `gorm:"type:varchar(255);not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	ReadAt    *time.Time `gorm:"index" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate hook to generate UUID
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// RequestMetadata carries boundary-level request context into the audit trail.
type RequestMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id"`
}
