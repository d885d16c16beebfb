package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"role-service/internal/models"
)

// memStateStore is an in-memory RoleStateStore mirroring the repository's
// persistence semantics.
type memStateStore struct {
	mu           sync.Mutex
	states       map[uuid.UUID]*models.UserRoleState
	maxDaily     int
	failGet      bool
	failApply    bool
	conflictOnce bool
}

func newMemStateStore(maxDaily int) *memStateStore {
	return &memStateStore{
		states:   make(map[uuid.UUID]*models.UserRoleState),
		maxDaily: maxDaily,
	}
}

func (s *memStateStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserRoleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGet {
		return nil, errors.New("store unavailable")
	}

	if state, ok := s.states[userID]; ok {
		return state, nil
	}

	state := &models.UserRoleState{
		UserID:                 userID,
		CurrentRole:            models.RoleTenant,
		AvailableSwitchesToday: s.maxDaily,
	}
	s.states[userID] = state
	return state, nil
}

func (s *memStateStore) ResetDailyQuota(ctx context.Context, state *models.UserRoleState, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.UTC().Truncate(24 * time.Hour)
	state.DailySwitchCount = 0
	state.AvailableSwitchesToday = s.maxDaily
	state.LastRoleChangeDate = &today
	return nil
}

func (s *memStateStore) ApplySwitch(ctx context.Context, state *models.UserRoleState, newRole models.Role, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failApply {
		return errors.New("write failed")
	}
	if s.conflictOnce {
		s.conflictOnce = false
		return models.ErrStateConflict
	}

	if err := state.AppendHistory(models.SwitchRecord{
		PreviousRole: state.CurrentRole,
		NewRole:      newRole,
		SwitchedAt:   now,
	}); err != nil {
		return err
	}

	today := now.UTC().Truncate(24 * time.Hour)
	state.CurrentRole = newRole
	state.LastSwitchAt = &now
	state.DailySwitchCount++
	state.AvailableSwitchesToday--
	if state.AvailableSwitchesToday < 0 {
		state.AvailableSwitchesToday = 0
	}
	state.LastRoleChangeDate = &today
	return nil
}

// memProfileStore is an in-memory ProfileStore.
type memProfileStore struct {
	profile *models.IdentityProfile
	fail    bool
}

func (s *memProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.IdentityProfile, error) {
	if s.fail || s.profile == nil {
		return nil, fmt.Errorf("%w: no profile for user %s", models.ErrProfileLookupFailed, userID)
	}
	return s.profile, nil
}

func (s *memProfileStore) GetVerificationFlags(ctx context.Context, userID uuid.UUID) (models.VerificationFlags, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return models.VerificationFlags{}, err
	}
	return profile.Flags(), nil
}

// recordDispatcher records dispatch calls synchronously.
type recordDispatcher struct {
	mu    sync.Mutex
	calls []models.SwitchRecord
}

func (d *recordDispatcher) Dispatch(userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, models.SwitchRecord{PreviousRole: previousRole, NewRole: newRole})
}

func (d *recordDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// failingAuditStore always fails, for dispatcher isolation tests.
type failingAuditStore struct{}

func (failingAuditStore) CreateAuditLog(ctx context.Context, entry *models.SecurityAuditLog) error {
	return errors.New("audit sink down")
}

func (failingAuditStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return errors.New("notification sink down")
}
