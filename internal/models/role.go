package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the active capability-set a user account operates under.
// Wire values match the marketplace API (francophone role names).
type Role string

const (
	RoleTenant            Role = "locataire"
	RoleLandlord          Role = "proprietaire"
	RoleAgency            Role = "agence"
	RoleAdmin             Role = "admin_ansut"
	RoleTrustedThirdParty Role = "tiers_de_confiance"
)

// AllRoles is the closed role enumeration in canonical order.
var AllRoles = []Role{
	RoleTenant,
	RoleLandlord,
	RoleAgency,
	RoleAdmin,
	RoleTrustedThirdParty,
}

// ParseRole validates a wire value against the closed enumeration.
// Invalid values are unrepresentable past this boundary.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsValid reports whether the role belongs to the closed enumeration.
func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// RequiresIdentityUpgrade reports whether switching into this role is gated
// on identity-verification prerequisites.
func (r Role) RequiresIdentityUpgrade() bool {
	switch r {
	case RoleLandlord, RoleAgency, RoleTrustedThirdParty:
		return true
	}
	return false
}

// RequiresAdminClaim reports whether switching into this role additionally
// requires the caller's token to carry the admin claim.
func (r Role) RequiresAdminClaim() bool {
	return r == RoleAdmin
}

// SwitchRecord is one entry of a user's append-only switch history.
type SwitchRecord struct {
	PreviousRole Role      `json:"previous_role"`
	NewRole      Role      `json:"new_role"`
	SwitchedAt   time.Time `json:"switched_at"`
}

// UserRoleState is the single persisted row per user owned by this service.
// It is mutated only through the transition executor.
type UserRoleState struct {
	UserID                 uuid.UUID      `gorm:"type:uuid;primary_key" json:"user_id"`
	CurrentRole            Role           `gorm:"type:varchar(30);not null;default:'locataire'" json:"current_role"`
	DailySwitchCount       int            `gorm:"not null;default:0" json:"daily_switch_count"`
	AvailableSwitchesToday int            `gorm:"not null;default:3" json:"available_switches_today"`
	LastSwitchAt           *time.Time     `gorm:"index" json:"last_switch_at,omitempty"`
	LastRoleChangeDate     *time.Time     `gorm:"type:date" json:"last_role_change_date,omitempty"`
	SwitchHistory          datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"switch_history"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (UserRoleState) TableName() string {
	return "user_role_states"
}

// BeforeCreate hook to seed the history column
func (s *UserRoleState) BeforeCreate(tx *gorm.DB) error {
	if len(s.SwitchHistory) == 0 {
		s.SwitchHistory = datatypes.JSON([]byte("[]"))
	}
	return nil
}

// History decodes the jsonb switch history column.
func (s *UserRoleState) History() ([]SwitchRecord, error) {
	if len(s.SwitchHistory) == 0 {
		return nil, nil
	}
	var records []SwitchRecord
	if err := json.Unmarshal(s.SwitchHistory, &records); err != nil {
		return nil, fmt.Errorf("failed to decode switch history: %w", err)
	}
	return records, nil
}

// AppendHistory appends a record to the jsonb switch history column.
// The history is append-only; retention is an external concern.
func (s *UserRoleState) AppendHistory(rec SwitchRecord) error {
	records, err := s.History()
	if err != nil {
		return err
	}
	records = append(records, rec)
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode switch history: %w", err)
	}
	s.SwitchHistory = datatypes.JSON(data)
	return nil
}

// SameUTCDay reports whether the last role change happened on the given UTC
// calendar day. A nil change date never matches.
func (s *UserRoleState) SameUTCDay(now time.Time) bool {
	if s.LastRoleChangeDate == nil {
		return false
	}
	y1, m1, d1 := s.LastRoleChangeDate.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
