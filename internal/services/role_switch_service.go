package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"role-service/internal/metrics"
	"role-service/internal/models"
)

// RoleSwitchService orchestrates a role switch: prerequisite validation, rate
// limiting, the atomic transition and the fire-and-forget side effects.
type RoleSwitchService struct {
	states     RoleStateStore
	profiles   ProfileStore
	validator  *PrerequisiteValidator
	limiter    *SwitchRateLimiter
	dispatcher SideEffectDispatcher
	logger     *logrus.Entry
}

// NewRoleSwitchService creates a new role switch service
func NewRoleSwitchService(
	states RoleStateStore,
	profiles ProfileStore,
	validator *PrerequisiteValidator,
	limiter *SwitchRateLimiter,
	dispatcher SideEffectDispatcher,
	logger *logrus.Logger,
) *RoleSwitchService {
	return &RoleSwitchService{
		states:     states,
		profiles:   profiles,
		validator:  validator,
		limiter:    limiter,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "services.role_switch"),
	}
}

// Switch applies a validated role transition for the user. Failures are
// returned as *models.SwitchError carrying the closed taxonomy; rate-limit
// and validation rejections are expected and logged below error severity.
func (s *RoleSwitchService) Switch(ctx context.Context, userID uuid.UUID, target models.Role, isAdmin bool, meta models.RequestMetadata) (*models.SwitchRoleData, error) {
	state, err := s.states.GetOrCreate(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":        userID,
			"attempted_role": target,
		}).Error("Failed to load role state")
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de charger le rôle actuel")
	}

	previousRole := state.CurrentRole

	// No-op transitions are rejected regardless of rate-limit or
	// prerequisite state.
	if target == previousRole {
		return nil, models.NewSwitchError(models.ErrorInvalidRole,
			fmt.Sprintf("Le rôle %s est déjà actif", target))
	}

	if target.RequiresAdminClaim() && !isAdmin {
		return nil, models.NewSwitchError(models.ErrorValidationFailed,
			"Ce rôle est réservé aux administrateurs")
	}

	if target.RequiresIdentityUpgrade() {
		if err := s.checkPrerequisites(ctx, userID, target); err != nil {
			return nil, err
		}
	}

	status, err := s.limiter.Check(ctx, state)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":        userID,
			"attempted_role": target,
		}).Error("Failed to evaluate rate limit")
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de vérifier le quota de changements")
	}
	if !status.Allowed {
		return nil, rateLimitError(status)
	}

	if err := s.states.ApplySwitch(ctx, state, target, s.limiter.now()); err != nil {
		if errors.Is(err, models.ErrStateConflict) {
			// A concurrent switch won the conditional write. Reload,
			// re-check the gates and retry once.
			return s.retrySwitch(ctx, userID, target, meta)
		}
		metrics.SwitchesTotal.WithLabelValues(string(previousRole), string(target), "failure").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":        userID,
			"attempted_role": target,
		}).Error("Failed to apply role transition")
		return nil, models.NewSwitchError(models.ErrorDatabase, "Le changement de rôle a échoué")
	}

	metrics.SwitchesTotal.WithLabelValues(string(previousRole), string(target), "success").Inc()
	s.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"previous_role": previousRole,
		"new_role":      target,
		"remaining":     state.AvailableSwitchesToday,
	}).Info("Role switched")

	// Post-commit side effects never block or undo the transition.
	s.dispatcher.Dispatch(userID, previousRole, target, meta)

	return &models.SwitchRoleData{
		PreviousRole:      previousRole,
		NewRole:           target,
		RemainingSwitches: state.AvailableSwitchesToday,
		NextResetTime:     status.NextResetTime,
	}, nil
}

func (s *RoleSwitchService) retrySwitch(ctx context.Context, userID uuid.UUID, target models.Role, meta models.RequestMetadata) (*models.SwitchRoleData, error) {
	state, err := s.states.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de recharger le rôle actuel")
	}

	previousRole := state.CurrentRole
	if target == previousRole {
		return nil, models.NewSwitchError(models.ErrorInvalidRole,
			fmt.Sprintf("Le rôle %s est déjà actif", target))
	}

	status, err := s.limiter.Check(ctx, state)
	if err != nil {
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de vérifier le quota de changements")
	}
	if !status.Allowed {
		return nil, rateLimitError(status)
	}

	if err := s.states.ApplySwitch(ctx, state, target, s.limiter.now()); err != nil {
		metrics.SwitchesTotal.WithLabelValues(string(previousRole), string(target), "failure").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":        userID,
			"attempted_role": target,
		}).Error("Failed to apply role transition on retry")
		return nil, models.NewSwitchError(models.ErrorDatabase, "Le changement de rôle a échoué")
	}

	metrics.SwitchesTotal.WithLabelValues(string(previousRole), string(target), "success").Inc()
	s.dispatcher.Dispatch(userID, previousRole, target, meta)

	return &models.SwitchRoleData{
		PreviousRole:      previousRole,
		NewRole:           target,
		RemainingSwitches: state.AvailableSwitchesToday,
		NextResetTime:     status.NextResetTime,
	}, nil
}

func (s *RoleSwitchService) checkPrerequisites(ctx context.Context, userID uuid.UUID, target models.Role) error {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrProfileLookupFailed) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":        userID,
				"attempted_role": target,
			}).Error("Profile lookup failed")
			return models.NewSwitchError(models.ErrorDatabase, "Impossible de charger le profil")
		}
		return models.NewSwitchError(models.ErrorDatabase, "Impossible de charger le profil")
	}

	flags, err := s.profiles.GetVerificationFlags(ctx, userID)
	if err != nil {
		return models.NewSwitchError(models.ErrorDatabase, "Impossible de charger les vérifications d'identité")
	}

	result := s.validator.Validate(target, profile, flags)
	if !result.Eligible {
		metrics.ValidationFailures.Inc()
		s.logger.WithFields(logrus.Fields{
			"user_id":        userID,
			"attempted_role": target,
			"missing":        result.MissingRequirements,
			"completion":     result.CompletionPercentage,
		}).Warn("Role upgrade prerequisites unmet")
		return &models.SwitchError{
			Type:    models.ErrorValidationFailed,
			Message: "Les conditions de passage à ce rôle ne sont pas remplies",
			Details: map[string]interface{}{
				"missingRequirements":  result.MissingRequirements,
				"completionPercentage": result.CompletionPercentage,
			},
		}
	}

	return nil
}

// Status returns the caller's current role and quota view for the switch UI.
func (s *RoleSwitchService) Status(ctx context.Context, userID uuid.UUID) (*models.RoleStatusData, error) {
	state, err := s.states.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de charger le rôle actuel")
	}

	status := s.limiter.Status(state)
	return &models.RoleStatusData{
		CurrentRole:       state.CurrentRole,
		RemainingSwitches: status.RemainingSwitches,
		CooldownEndTime:   status.CooldownEndTime,
		NextResetTime:     status.NextResetTime,
	}, nil
}

// History returns a page of the caller's switch history, newest first.
func (s *RoleSwitchService) History(ctx context.Context, userID uuid.UUID, limit, offset int) (*models.HistoryData, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	state, err := s.states.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, models.NewSwitchError(models.ErrorDatabase, "Impossible de charger l'historique")
	}

	records, err := state.History()
	if err != nil {
		return nil, models.NewSwitchError(models.ErrorDatabase, "Historique illisible")
	}

	// Newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	total := len(records)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &models.HistoryData{
		History: records[offset:end],
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func rateLimitError(status models.QuotaStatus) *models.SwitchError {
	switch status.Reason {
	case models.ErrorCooldown:
		return &models.SwitchError{
			Type:    models.ErrorCooldown,
			Message: "Veuillez patienter avant de changer de rôle à nouveau",
			Details: map[string]interface{}{
				"cooldownEndTime": status.CooldownEndTime,
			},
		}
	default:
		return &models.SwitchError{
			Type:    models.ErrorDailyLimit,
			Message: "Quota quotidien de changements de rôle atteint",
			Details: map[string]interface{}{
				"nextResetTime": status.NextResetTime,
			},
		}
	}
}
