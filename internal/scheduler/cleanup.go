package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"role-service/internal/config"
	"role-service/internal/repository"
)

// CleanupScheduler periodically purges read notifications past the retention
// window. The audit trail and switch history are never touched.
type CleanupScheduler struct {
	repo    *repository.AuditRepository
	config  config.RetentionConfig
	logger  *logrus.Entry
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewCleanupScheduler creates a new cleanup scheduler
func NewCleanupScheduler(repo *repository.AuditRepository, cfg config.RetentionConfig, logger *logrus.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		repo:   repo,
		config: cfg,
		logger: logger.WithField("component", "scheduler.cleanup"),
	}
}

// Start starts the cleanup scheduler
func (s *CleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !s.config.CleanupEnabled {
		s.logger.Info("Notification cleanup is disabled")
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())

	schedule := s.config.CleanupSchedule
	if schedule == "" {
		schedule = "0 0 3 * * *"
	}
	// Accept 5-field cron specs by prefixing the seconds field
	if len(strings.Fields(schedule)) == 5 {
		schedule = "0 " + schedule
	}

	if _, err := s.cron.AddFunc(schedule, s.runCleanup); err != nil {
		s.logger.WithError(err).Error("Failed to schedule cleanup job")
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.WithFields(logrus.Fields{
		"schedule":       schedule,
		"retention_days": s.config.RetentionDays,
	}).Info("Notification cleanup scheduler started")

	return nil
}

// Stop stops the cleanup scheduler
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Notification cleanup scheduler stopped")
}

func (s *CleanupScheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	deleted, err := s.repo.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Notification cleanup failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Notification cleanup completed")
}
