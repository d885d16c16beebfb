package services

import (
	"context"
	"time"

	"role-service/internal/metrics"
	"role-service/internal/models"
)

// SwitchRateLimiter enforces the cooldown window and the rolling daily quota
// over the persisted role state row. The check is optimistic: the actual
// counter decrement happens in the transition executor, guarded there by a
// conditional write.
type SwitchRateLimiter struct {
	store    RoleStateStore
	cooldown time.Duration
	maxDaily int
	now      func() time.Time
}

// NewSwitchRateLimiter creates a new switch rate limiter
func NewSwitchRateLimiter(store RoleStateStore, cooldown time.Duration, maxDaily int) *SwitchRateLimiter {
	return &SwitchRateLimiter{
		store:    store,
		cooldown: cooldown,
		maxDaily: maxDaily,
		now:      time.Now,
	}
}

// Check evaluates both gates for the given state. Cooldown is checked first
// because it is the more common and more actionable rejection. A UTC day
// rollover lazily resets the quota counters (persisted through the store)
// without touching the cooldown gate.
func (l *SwitchRateLimiter) Check(ctx context.Context, state *models.UserRoleState) (models.QuotaStatus, error) {
	now := l.now()
	status := models.QuotaStatus{
		Allowed:       true,
		NextResetTime: NextUTCDayStart(now),
	}

	// Cooldown gate
	if state.LastSwitchAt != nil {
		cooldownEnd := state.LastSwitchAt.Add(l.cooldown)
		if now.Before(cooldownEnd) {
			metrics.RateLimitsHit.WithLabelValues("cooldown").Inc()
			status.Allowed = false
			status.Reason = models.ErrorCooldown
			status.CooldownEndTime = &cooldownEnd
			status.RemainingSwitches = state.AvailableSwitchesToday
			return status, nil
		}
	}

	// Daily-quota gate
	if !state.SameUTCDay(now) {
		if err := l.store.ResetDailyQuota(ctx, state, now); err != nil {
			return models.QuotaStatus{}, err
		}
		status.RemainingSwitches = l.maxDaily
		return status, nil
	}

	if state.AvailableSwitchesToday <= 0 {
		metrics.RateLimitsHit.WithLabelValues("daily_limit").Inc()
		status.Allowed = false
		status.Reason = models.ErrorDailyLimit
		status.RemainingSwitches = 0
		return status, nil
	}

	status.RemainingSwitches = state.AvailableSwitchesToday
	return status, nil
}

// Status reports the limiter's view of a state without persisting a rollover
// reset, for the read-only status endpoint.
func (l *SwitchRateLimiter) Status(state *models.UserRoleState) models.QuotaStatus {
	now := l.now()
	status := models.QuotaStatus{
		Allowed:       true,
		NextResetTime: NextUTCDayStart(now),
	}

	if state.LastSwitchAt != nil {
		cooldownEnd := state.LastSwitchAt.Add(l.cooldown)
		if now.Before(cooldownEnd) {
			status.Allowed = false
			status.Reason = models.ErrorCooldown
			status.CooldownEndTime = &cooldownEnd
		}
	}

	if !state.SameUTCDay(now) {
		status.RemainingSwitches = l.maxDaily
		return status
	}

	status.RemainingSwitches = state.AvailableSwitchesToday
	if status.RemainingSwitches <= 0 && status.Allowed {
		status.Allowed = false
		status.Reason = models.ErrorDailyLimit
	}
	return status
}

// NextUTCDayStart returns the start of the next UTC calendar day.
func NextUTCDayStart(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}
