package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"role-service/internal/models"
)

// RoleStateStore is the persistence boundary for user role states.
// Implemented by repository.RoleStateRepository.
type RoleStateStore interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.UserRoleState, error)
	ResetDailyQuota(ctx context.Context, state *models.UserRoleState, now time.Time) error
	ApplySwitch(ctx context.Context, state *models.UserRoleState, newRole models.Role, now time.Time) error
}

// ProfileStore is the read-only boundary to the profile subsystem.
// Implemented by repository.ProfileRepository.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.IdentityProfile, error)
	GetVerificationFlags(ctx context.Context, userID uuid.UUID) (models.VerificationFlags, error)
}

// SideEffectDispatcher records the post-commit side effects of a switch.
// Implementations must never propagate failures to the caller.
type SideEffectDispatcher interface {
	Dispatch(userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata)
}
