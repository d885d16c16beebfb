package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityProfile mirrors the profile subsystem's row. This service only ever
// reads it; all writes belong to the profile subsystem.
type IdentityProfile struct {
	UserID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"user_id"`
	FirstName        string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName         string     `gorm:"type:varchar(100)" json:"last_name"`
	Phone            string     `gorm:"type:varchar(30)" json:"phone"`
	PhoneVerified    bool       `gorm:"default:false" json:"phone_verified"`
	Email            string     `gorm:"type:varchar(255)" json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	Address          string     `gorm:"type:text" json:"address"`
	ONECIVerified    bool       `gorm:"column:oneci_verified;default:false" json:"oneci_verified"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (IdentityProfile) TableName() string {
	return "identity_profiles"
}

// EmailVerified reports whether the e-mail address has been confirmed.
func (p *IdentityProfile) EmailVerified() bool {
	return p.EmailConfirmedAt != nil
}

// VerificationFlags are the identity-verification facts consumed by the
// prerequisite validator. They are derived from the profile row and cached
// independently of it.
type VerificationFlags struct {
	IdentityVerified bool `json:"identity_verified"` // external ID check (ONECI)
	PhoneVerified    bool `json:"phone_verified"`
	EmailVerified    bool `json:"email_verified"`
}

// Flags derives the verification flags from the profile row.
func (p *IdentityProfile) Flags() VerificationFlags {
	return VerificationFlags{
		IdentityVerified: p.ONECIVerified,
		PhoneVerified:    p.PhoneVerified,
		EmailVerified:    p.EmailVerified(),
	}
}
