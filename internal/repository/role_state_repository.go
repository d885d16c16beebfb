package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"role-service/internal/models"
)

// RoleStateRepository handles database operations for user role states
type RoleStateRepository struct {
	db               *gorm.DB
	maxDailySwitches int
}

// NewRoleStateRepository creates a new role state repository
func NewRoleStateRepository(db *gorm.DB, maxDailySwitches int) *RoleStateRepository {
	return &RoleStateRepository{db: db, maxDailySwitches: maxDailySwitches}
}

// GetOrCreate retrieves the role state row for a user, creating it with the
// default role and a full daily quota on first access.
func (r *RoleStateRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserRoleState, error) {
	var state models.UserRoleState

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&state).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.UserRoleState{
			UserID:                 userID,
			CurrentRole:            models.RoleTenant,
			DailySwitchCount:       0,
			AvailableSwitchesToday: r.maxDailySwitches,
		}
		if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}

	if err != nil {
		return nil, err
	}

	return &state, nil
}

// ResetDailyQuota persists a lazy UTC-day rollover reset of the quota
// counters. The cooldown gate is untouched: rollover resets the count, not
// last_switch_at.
func (r *RoleStateRepository) ResetDailyQuota(ctx context.Context, state *models.UserRoleState, now time.Time) error {
	today := now.UTC().Truncate(24 * time.Hour)

	err := r.db.WithContext(ctx).Model(&models.UserRoleState{}).
		Where("user_id = ?", state.UserID).
		Updates(map[string]interface{}{
			"daily_switch_count":       0,
			"available_switches_today": r.maxDailySwitches,
			"last_role_change_date":    today,
		}).Error
	if err != nil {
		return err
	}

	state.DailySwitchCount = 0
	state.AvailableSwitchesToday = r.maxDailySwitches
	state.LastRoleChangeDate = &today
	return nil
}

// ApplySwitch atomically applies a validated role transition: role, cooldown
// timestamp, quota counters and the appended history record go out in a
// single conditional UPDATE keyed on the previously read last_switch_at, so a
// concurrent switch that already committed makes this one fail with
// ErrStateConflict instead of oversubscribing the quota.
func (r *RoleStateRepository) ApplySwitch(ctx context.Context, state *models.UserRoleState, newRole models.Role, now time.Time) error {
	previousRole := state.CurrentRole
	today := now.UTC().Truncate(24 * time.Hour)

	remaining := state.AvailableSwitchesToday - 1
	if remaining < 0 {
		remaining = 0
	}

	if err := state.AppendHistory(models.SwitchRecord{
		PreviousRole: previousRole,
		NewRole:      newRole,
		SwitchedAt:   now,
	}); err != nil {
		return err
	}

	query := r.db.WithContext(ctx).Model(&models.UserRoleState{}).
		Where("user_id = ?", state.UserID)
	if state.LastSwitchAt == nil {
		query = query.Where("last_switch_at IS NULL")
	} else {
		query = query.Where("last_switch_at = ?", *state.LastSwitchAt)
	}

	result := query.Updates(map[string]interface{}{
		"current_role":             newRole,
		"last_switch_at":           now,
		"daily_switch_count":       state.DailySwitchCount + 1,
		"available_switches_today": remaining,
		"last_role_change_date":    today,
		"switch_history":           state.SwitchHistory,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrStateConflict
	}

	state.CurrentRole = newRole
	state.LastSwitchAt = &now
	state.DailySwitchCount++
	state.AvailableSwitchesToday = remaining
	state.LastRoleChangeDate = &today
	return nil
}
