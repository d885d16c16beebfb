package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"role-service/internal/models"
)

// ProfileRepository reads identity profiles owned by the profile subsystem.
// Verification flags are cached in Redis with a short TTL because they are
// read on every gated switch attempt but change rarely; a miss or cache
// failure falls through to Postgres.
type ProfileRepository struct {
	db     *gorm.DB
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// NewProfileRepository creates a new profile repository. The redis client is
// optional; a nil client disables caching.
func NewProfileRepository(db *gorm.DB, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.WithField("component", "repository.profile"),
	}
}

// GetProfile retrieves the identity profile for a user. A missing or
// unreadable row is reported as ErrProfileLookupFailed so callers can
// distinguish it from an ineligible profile.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.IdentityProfile, error) {
	var profile models.IdentityProfile

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no profile for user %s", models.ErrProfileLookupFailed, userID)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrProfileLookupFailed, err)
	}

	return &profile, nil
}

// GetVerificationFlags retrieves the identity-verification flags for a user,
// preferring the cache.
func (r *ProfileRepository) GetVerificationFlags(ctx context.Context, userID uuid.UUID) (models.VerificationFlags, error) {
	if flags, ok := r.cachedFlags(ctx, userID); ok {
		return flags, nil
	}

	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return models.VerificationFlags{}, err
	}

	flags := profile.Flags()
	r.cacheFlags(ctx, userID, flags)
	return flags, nil
}

// InvalidateFlags drops the cached flags for a user, e.g. after the profile
// subsystem reports a verification change.
func (r *ProfileRepository) InvalidateFlags(ctx context.Context, userID uuid.UUID) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, flagsCacheKey(userID)).Err(); err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate flags cache")
	}
}

func (r *ProfileRepository) cachedFlags(ctx context.Context, userID uuid.UUID) (models.VerificationFlags, bool) {
	if r.redis == nil {
		return models.VerificationFlags{}, false
	}

	data, err := r.redis.Get(ctx, flagsCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WithError(err).Warn("Flags cache read failed, falling back to database")
		}
		return models.VerificationFlags{}, false
	}

	var flags models.VerificationFlags
	if err := json.Unmarshal(data, &flags); err != nil {
		return models.VerificationFlags{}, false
	}
	return flags, true
}

func (r *ProfileRepository) cacheFlags(ctx context.Context, userID uuid.UUID, flags models.VerificationFlags) {
	if r.redis == nil {
		return
	}

	data, err := json.Marshal(flags)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, flagsCacheKey(userID), data, r.ttl).Err(); err != nil {
		r.logger.WithError(err).Warn("Flags cache write failed")
	}
}

func flagsCacheKey(userID uuid.UUID) string {
	return "roles:flags:" + userID.String()
}
