package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"gorm.io/datatypes"

	"role-service/internal/metrics"
	"role-service/internal/models"
)

// AuditStore is the persistence boundary for audit and notification rows.
// Implemented by repository.AuditRepository.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.SecurityAuditLog) error
	CreateNotification(ctx context.Context, notification *models.Notification) error
}

// Notifier delivers a role-change message through the external
// notification-service. Implemented by providers.NotificationProvider.
type Notifier interface {
	SendRoleChangeEmail(email string, previousRole, newRole models.Role) error
}

// RoleEventPublisher publishes role switch events on the message bus.
// Implemented by events.Publisher.
type RoleEventPublisher interface {
	PublishRoleSwitched(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role, at time.Time) error
}

const dispatchTimeout = 10 * time.Second

// Dispatcher records the side effects of a committed role switch: a
// user-visible notification row, a security audit entry, a bus event and an
// e-mail through the notification-service. All of it is fire-and-forget;
// failures are logged at warn severity and never reach the caller or undo
// the transition.
type Dispatcher struct {
	audit     AuditStore
	profiles  ProfileStore
	notifier  Notifier
	publisher RoleEventPublisher
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Entry
}

// NewDispatcher creates a new side-effect dispatcher. The publisher and
// notifier are optional; nil disables the corresponding sink.
func NewDispatcher(audit AuditStore, profiles ProfileStore, notifier Notifier, publisher RoleEventPublisher, logger *logrus.Logger) *Dispatcher {
	entry := logger.WithField("component", "services.dispatcher")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-service",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			entry.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Dispatcher{
		audit:     audit,
		profiles:  profiles,
		notifier:  notifier,
		publisher: publisher,
		breaker:   breaker,
		logger:    entry,
	}
}

// Dispatch schedules the side effects of a committed switch. Returns
// immediately; the work runs on its own goroutine with its own timeout.
func (d *Dispatcher) Dispatch(userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata) {
	go d.run(userID, previousRole, newRole, meta)
}

func (d *Dispatcher) run(userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	now := time.Now()

	d.recordNotification(ctx, userID, previousRole, newRole)
	d.recordAudit(ctx, userID, previousRole, newRole, meta, now)
	d.publishEvent(ctx, userID, previousRole, newRole, now)
	d.sendEmail(ctx, userID, previousRole, newRole)
}

func (d *Dispatcher) recordNotification(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role) {
	notification := &models.Notification{
		UserID: userID,
		Type:   "role_switch",
		Title:  "Changement de rôle effectué",
		Body:   fmt.Sprintf("Votre rôle est passé de %s à %s.", previousRole, newRole),
	}
	if err := d.audit.CreateNotification(ctx, notification); err != nil {
		metrics.DispatchFailures.WithLabelValues("notification").Inc()
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to record notification")
	}
}

func (d *Dispatcher) recordAudit(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role, meta models.RequestMetadata, now time.Time) {
	oldValue, _ := json.Marshal(map[string]string{"role": string(previousRole)})
	newValue, _ := json.Marshal(map[string]string{"role": string(newRole)})

	entry := &models.SecurityAuditLog{
		UserID:    userID,
		EventType: models.AuditEventRoleSwitch,
		Severity:  models.SeverityLow,
		OldValue:  datatypes.JSON(oldValue),
		NewValue:  datatypes.JSON(newValue),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
		Timestamp: now,
	}
	if err := d.audit.CreateAuditLog(ctx, entry); err != nil {
		metrics.DispatchFailures.WithLabelValues("audit").Inc()
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to record audit entry")
	}
}

func (d *Dispatcher) publishEvent(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role, now time.Time) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishRoleSwitched(ctx, userID, previousRole, newRole, now); err != nil {
		metrics.DispatchFailures.WithLabelValues("events").Inc()
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to publish role switch event")
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role) {
	if d.notifier == nil {
		return
	}

	profile, err := d.profiles.GetProfile(ctx, userID)
	if err != nil || profile.Email == "" {
		return
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.notifier.SendRoleChangeEmail(profile.Email, previousRole, newRole)
	})
	if err != nil {
		metrics.DispatchFailures.WithLabelValues("provider").Inc()
		d.logger.WithError(err).WithField("user_id", userID).Warn("Failed to deliver role change email")
	}
}
